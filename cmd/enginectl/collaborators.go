package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flowlayer/enginecore/internal/app/services/actions"
	"github.com/flowlayer/enginecore/pkg/logger"
)

// consoleMessages is a MessageHandler that logs the outgoing message
// instead of delivering it anywhere; enginectl has no messaging backend to
// wire to.
type consoleMessages struct {
	log *logger.Logger
}

func (m consoleMessages) Send(ctx context.Context, channel, recipient, message, templateName string) error {
	m.log.WithField("channel", channel).WithField("recipient", recipient).Info(message)
	return nil
}

// logrusLogger adapts *logger.Logger to actions.Logger.
type logrusLogger struct {
	log *logger.Logger
}

func (l logrusLogger) Log(ctx context.Context, level, message string, data map[string]any) {
	entry := l.log.WithField("data", data)
	switch strings.ToLower(level) {
	case "debug":
		entry.Debug(message)
	case "warn", "warning":
		entry.Warn(message)
	case "error":
		entry.Error(message)
	default:
		entry.Info(message)
	}
}

// httpClient is a real net/http-backed actions.HTTPClient; the codebase
// carries no third-party HTTP client, so a direct *http.Client is the
// library-equivalent choice here.
type httpClient struct {
	client *http.Client
}

func newHTTPClient() httpClient {
	return httpClient{client: &http.Client{Timeout: 10 * time.Second}}
}

func (h httpClient) Request(ctx context.Context, method, url string, headers map[string]any, body any) (actions.HTTPResponse, error) {
	var bodyReader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return actions.HTTPResponse{}, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = strings.NewReader(string(data))
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return actions.HTTPResponse{}, fmt.Errorf("build request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, fmt.Sprint(value))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return actions.HTTPResponse{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)

	return actions.HTTPResponse{StatusCode: resp.StatusCode, Body: decoded}, nil
}
