package textextract

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
)

// Extractor pulls plain text out of uploaded files. PDF parsing is CPU heavy,
// so concurrent extractions are capped with a semaphore.
type Extractor struct {
	sem    chan struct{}
	logger logger.ILogger
}

func NewExtractor(maxConcurrent int, log logger.ILogger) *Extractor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Extractor{
		sem:    make(chan struct{}, maxConcurrent),
		logger: log,
	}
}

// Extract returns the text content of the file, or empty for unsupported or
// unparseable inputs. A failed parse is logged, not surfaced; a missing
// attachment body must not fail the request that carried it.
func (e *Extractor) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return e.fromPDF(fileName, data), nil
	case ".txt", ".md":
		return normalizePlainText(string(data)), nil
	default:
		return "", nil
	}
}

func (e *Extractor) fromPDF(fileName string, data []byte) string {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Error("textextract", "failed to open pdf", map[string]interface{}{
			"file":  fileName,
			"error": err.Error(),
		})
		return ""
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		e.logger.Error("textextract", "failed to extract pdf text", map[string]interface{}{
			"file":  fileName,
			"error": err.Error(),
		})
		return ""
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		e.logger.Error("textextract", "failed to read pdf text", map[string]interface{}{
			"file":  fileName,
			"error": err.Error(),
		})
		return ""
	}

	return normalizePlainText(buf.String())
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
