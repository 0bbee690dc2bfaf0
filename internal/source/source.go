// Package source defines the contract between the ingestion pipeline
// and the remote mailbox it reads from.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSourceUnavailable indicates a transient connection or protocol
// failure talking to the mail source. The current poll cycle aborts;
// the next one retries.
var ErrSourceUnavailable = errors.New("mail source unavailable")

// AuthError indicates that authentication has failed for the source.
// It is returned by clients when the server rejects credentials.
type AuthError struct {
	Username string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Username, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// RawMessage is one unseen message as reported by the source. UID is
// the message's stable identifier within its folder and is the
// pipeline's dedup key.
type RawMessage struct {
	UID        uint32
	From       string
	Subject    string
	ReceivedAt time.Time
	Body       string
}

// Source is the narrow mailbox contract the pipeline depends on.
// Implementations must tolerate being called repeatedly with
// overlapping results; the pipeline, not the source, is the dedup
// authority.
type Source interface {
	// FetchNew returns unseen messages from the configured folder with
	// UIDs strictly greater than sinceUID, in source-reported order.
	// since constrains the server-side search to messages received on
	// or after it; pass the zero time for no constraint. Connection or
	// auth failures wrap ErrSourceUnavailable or return an AuthError.
	FetchNew(ctx context.Context, sinceUID uint32, since time.Time) ([]RawMessage, error)

	// MarkSeen flips the read flag on the remote message. It is
	// best-effort: a failure must not abort ingestion of other
	// messages.
	MarkSeen(ctx context.Context, uid uint32) error

	// ValidateConnection verifies credentials and folder access,
	// returning a human-readable identity string on success.
	ValidateConnection(ctx context.Context) (string, error)
}
