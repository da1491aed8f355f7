// Package channel defines the notification provider contract and the HTTP
// gateway clients that implement it. Providers are black boxes behind a
// three-outcome interface: success, transient failure, permanent failure.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/ancjainil/Crisis-management/internal/domain"
)

// Adapter sends one rendered message to one contact over one channel kind.
// The error encodes the outcome: nil is success, a *PermanentError will
// never succeed without changed input, and anything else (including
// timeouts and rate limits) is transient and worth retrying.
//
// ref is an idempotency reference for the attempt stream; providers that
// support it dedupe redeliveries on their side.
type Adapter interface {
	Kind() domain.ChannelKind
	Send(ctx context.Context, contactRef, message, ref string) error
}

// PermanentError is a provider failure that retrying cannot fix, such as an
// invalid contact handle or rejected content.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return "permanent delivery failure: " + e.Reason
}

// Permanent builds a *PermanentError with a formatted reason.
func Permanent(format string, args ...any) error {
	return &PermanentError{Reason: fmt.Sprintf(format, args...)}
}

// IsPermanent reports whether err is (or wraps) a permanent failure.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
