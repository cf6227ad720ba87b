package google

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/lms"
	"github.com/Voldemort0731/fiwb-mvp/pkg/textextract"
)

const (
	classroomBaseURL = "https://classroom.googleapis.com/v1"
	driveBaseURL     = "https://www.googleapis.com/drive/v3"
)

// Factory builds per-user Classroom and Drive clients that refresh the user's
// OAuth token transparently.
type Factory struct {
	oauthConfig *oauth2.Config
	extractor   *textextract.Extractor
	logger      logger.ILogger
}

func NewFactory(clientID, clientSecret string, extractor *textextract.Extractor, log logger.ILogger) *Factory {
	return &Factory{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleoauth.Endpoint,
		},
		extractor: extractor,
		logger:    log,
	}
}

func (f *Factory) httpClient(accessToken, refreshToken string) *http.Client {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if refreshToken != "" {
		// stored access tokens may be stale; let the source refresh early
		token.Expiry = time.Now().Add(5 * time.Minute)
	}
	client := oauth2.NewClient(context.Background(), f.oauthConfig.TokenSource(context.Background(), token))
	client.Timeout = 30 * time.Second
	return client
}

func (f *Factory) Classroom(accessToken, refreshToken string) lms.ClassroomClient {
	return &classroomClient{
		http:   f.httpClient(accessToken, refreshToken),
		logger: f.logger,
	}
}

func (f *Factory) Drive(accessToken, refreshToken string) lms.DriveClient {
	return &driveClient{
		http:      f.httpClient(accessToken, refreshToken),
		extractor: f.extractor,
		logger:    f.logger,
	}
}
