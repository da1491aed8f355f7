package channel

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ancjainil/Crisis-management/internal/domain"
)

// PushClient implements Adapter against a push-notification service.
type PushClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPushClient creates a push adapter with the given send timeout.
func NewPushClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *PushClient {
	return &PushClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Kind returns domain.ChannelPush.
func (c *PushClient) Kind() domain.ChannelKind {
	return domain.ChannelPush
}

// Send posts one notification. contactRef is the device registration token.
// The ref doubles as the collapse key so a retried send replaces, rather
// than stacks with, an earlier delivery of the same alert.
func (c *PushClient) Send(ctx context.Context, contactRef, message, ref string) error {
	payload := map[string]string{
		"device_token": contactRef,
		"body":         message,
		"collapse_key": ref,
		"priority":     "high",
	}
	return postJSON(ctx, c.httpClient, c.baseURL+"/v1/push", c.token, payload)
}
