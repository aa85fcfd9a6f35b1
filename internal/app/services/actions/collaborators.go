// Package actions implements the Action Executor (component G): a single
// entrypoint that dispatches a workflow.Action by its Kind, mutating the
// execution's context for actions carrying a saveResultTo/equivalent sink,
// and delegating side effects it cannot perform itself (messaging, HTTP,
// logging) to pluggable collaborators (§6).
package actions

import "context"

// MessageHandler is the sendMessage action's collaborator (§6).
type MessageHandler interface {
	Send(ctx context.Context, channel, recipient, message, templateName string) error
}

// HTTPResponse is the result of an HTTPClient.Request call.
type HTTPResponse struct {
	StatusCode int            `json:"statusCode"`
	Headers    map[string]any `json:"headers,omitempty"`
	Body       any            `json:"body,omitempty"`
}

// HTTPClient is the httpCall action's collaborator (§6).
type HTTPClient interface {
	Request(ctx context.Context, method, url string, headers map[string]any, body any) (HTTPResponse, error)
}

// Logger is the log action's collaborator (§6).
type Logger interface {
	Log(ctx context.Context, level, message string, data map[string]any)
}
