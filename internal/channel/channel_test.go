package channel_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancjainil/Crisis-management/internal/channel"
	"github.com/ancjainil/Crisis-management/internal/domain"
	"github.com/ancjainil/Crisis-management/internal/observability"
)

func newGatewayServer(t *testing.T, status int, capture *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.WriteHeader(status)
	}))
}

func TestSMSGateway_Send(t *testing.T) {
	var got map[string]string
	srv := newGatewayServer(t, http.StatusOK, &got)
	defer srv.Close()

	gw := channel.NewSMSGateway(srv.URL, "test-token", time.Second, observability.NewLogger("error", "text"))
	require.Equal(t, domain.ChannelSMS, gw.Kind())

	err := gw.Send(context.Background(), "+15551234567", "Evacuate now", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", got["to"])
	assert.Equal(t, "Evacuate now", got["body"])
	assert.Equal(t, "ref-1", got["client_ref"])
}

func TestSMSGateway_Send_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		permanent bool
	}{
		{name: "created", status: http.StatusCreated},
		{name: "rate limited is transient", status: http.StatusTooManyRequests, wantErr: true},
		{name: "request timeout is transient", status: http.StatusRequestTimeout, wantErr: true},
		{name: "bad number is permanent", status: http.StatusBadRequest, wantErr: true, permanent: true},
		{name: "unauthorized is permanent", status: http.StatusUnauthorized, wantErr: true, permanent: true},
		{name: "server error is transient", status: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newGatewayServer(t, tt.status, nil)
			defer srv.Close()

			gw := channel.NewSMSGateway(srv.URL, "test-token", time.Second, observability.NewLogger("error", "text"))
			err := gw.Send(context.Background(), "+15551234567", "msg", "ref")

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, channel.IsPermanent(err))
		})
	}
}

func TestSMSGateway_Send_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	gw := channel.NewSMSGateway(srv.URL, "test-token", 20*time.Millisecond, observability.NewLogger("error", "text"))
	err := gw.Send(context.Background(), "+15551234567", "msg", "ref")
	require.Error(t, err)
	assert.False(t, channel.IsPermanent(err))
}

func TestPushClient_Send(t *testing.T) {
	var got map[string]string
	srv := newGatewayServer(t, http.StatusOK, &got)
	defer srv.Close()

	pc := channel.NewPushClient(srv.URL, "test-token", time.Second, observability.NewLogger("error", "text"))
	require.Equal(t, domain.ChannelPush, pc.Kind())

	err := pc.Send(context.Background(), "device-token-1", "Evacuate now", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "device-token-1", got["device_token"])
	assert.Equal(t, "Evacuate now", got["body"])
	assert.Equal(t, "ref-1", got["collapse_key"])
	assert.Equal(t, "high", got["priority"])
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, channel.IsPermanent(channel.Permanent("bad contact ref")))
	assert.False(t, channel.IsPermanent(errors.New("connection reset")))
	assert.False(t, channel.IsPermanent(nil))

	wrapped := errors.Join(errors.New("attempt 2"), channel.Permanent("rejected"))
	assert.True(t, channel.IsPermanent(wrapped))
}
