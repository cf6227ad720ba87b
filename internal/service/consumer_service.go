package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
	ragmemory "github.com/Voldemort0731/fiwb-mvp/pkg/rag/memory"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub         *gochannel.GoChannel
	synthesisTopic string
	assetTopic     string
	synthesizer    *ragmemory.Synthesizer
	memoryStore    *memorystore.Client
	usageTracker   *usage.Tracker
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	synthesisTopic string,
	assetTopic string,
	synthesizer *ragmemory.Synthesizer,
	memoryStore *memorystore.Client,
	usageTracker *usage.Tracker,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		synthesisTopic: synthesisTopic,
		assetTopic:     assetTopic,
		synthesizer:    synthesizer,
		memoryStore:    memoryStore,
		usageTracker:   usageTracker,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	synthesisMessages, err := cs.pubSub.Subscribe(ctx, cs.synthesisTopic)
	if err != nil {
		return err
	}
	assetMessages, err := cs.pubSub.Subscribe(ctx, cs.assetTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range synthesisMessages {
			cs.processSynthesis(ctx, msg)
		}
	}()
	go func() {
		for msg := range assetMessages {
			cs.processAsset(ctx, msg)
		}
	}()

	return nil
}

// processSynthesis distills a finished exchange into memory. The synthesizer
// swallows its own failures, so every message is Acked exactly once.
func (cs *consumerService) processSynthesis(ctx context.Context, msg *message.Message) {
	var payload dto.PublishMemorySynthesisMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal synthesis message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Synthesizing memory for thread %s", payload.ThreadId)

	history := make([]rag.Turn, 0, len(payload.History))
	for _, turn := range payload.History {
		history = append(history, rag.Turn{Role: turn.Role, Content: turn.Content})
	}

	extra := map[string]interface{}{}
	if payload.ThreadId != "" {
		extra["thread_id"] = payload.ThreadId
	}

	cs.synthesizer.Synthesize(ctx, ragmemory.Input{
		UserEmail: payload.UserEmail,
		Query:     payload.Query,
		Response:  payload.Response,
		History:   history,
		Extra:     extra,
	})
	msg.Ack()
}

func (cs *consumerService) processAsset(ctx context.Context, msg *message.Message) {
	var payload dto.PublishChatAssetMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal chat asset message: %v", err)
		msg.Ack()
		return
	}

	if payload.Content == "" {
		msg.Ack()
		return
	}

	log.Printf("[INFO] Indexing chat asset %q for thread %s", payload.FileName, payload.ThreadId)

	metadata := map[string]interface{}{
		"user_id":   payload.UserEmail,
		"type":      rag.TypeChatAttachment,
		"thread_id": payload.ThreadId,
		"file_name": payload.FileName,
	}
	_, err := cs.memoryStore.AddDocument(ctx, payload.Content, metadata, payload.FileName, "File uploaded during chat")
	if err != nil {
		log.Printf("[ERROR] Failed to index chat asset %q: %v", payload.FileName, err)
		msg.Nack() // transport failures are retriable
		return
	}

	cs.usageTracker.LogDocumentIndexed(ctx, payload.UserEmail)
	msg.Ack()
}
