package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ancjainil/Crisis-management/internal/domain"
)

// SMSGateway implements Adapter against a telephony gateway's REST API.
type SMSGateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSMSGateway creates an SMS adapter. The timeout bounds every send; a
// timed-out request surfaces as a transient failure.
func NewSMSGateway(baseURL, token string, timeout time.Duration, logger *slog.Logger) *SMSGateway {
	return &SMSGateway{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Kind returns domain.ChannelSMS.
func (g *SMSGateway) Kind() domain.ChannelKind {
	return domain.ChannelSMS
}

// Send posts one message to the gateway. contactRef is the provider-side
// handle for the destination number.
func (g *SMSGateway) Send(ctx context.Context, contactRef, message, ref string) error {
	payload := map[string]string{
		"to":         contactRef,
		"body":       message,
		"client_ref": ref,
	}
	return postJSON(ctx, g.httpClient, g.baseURL+"/v1/messages", g.token, payload)
}

// postJSON issues an authenticated POST and maps the response status onto
// the three-outcome contract: 2xx success, 4xx permanent (except 408/429),
// everything else transient.
func postJSON(ctx context.Context, client *http.Client, url, token string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return Permanent("encode payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Permanent("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		// Timeouts and connection errors are transient.
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("provider throttled: status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Permanent("provider rejected: status %d: %s", resp.StatusCode, detail)
	default:
		return fmt.Errorf("provider error: status %d", resp.StatusCode)
	}
}
