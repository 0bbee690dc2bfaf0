package imap

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/peytonb/inboxtasks/internal/source"
)

// Adapter implements source.Source over an IMAP mailbox folder.
type Adapter struct {
	client *Client
	folder string
}

// NewAdapter creates a mail source adapter for the given folder.
func NewAdapter(host, port, username, password string, tls bool, folder string) *Adapter {
	return &Adapter{
		client: NewClient(host, port, username, password, tls),
		folder: folder,
	}
}

// FetchNew returns unseen messages newer than sinceUID in ascending
// UID order. Repeated calls with overlapping results are expected; the
// caller owns dedup.
func (a *Adapter) FetchNew(
	ctx context.Context,
	sinceUID uint32,
	since time.Time,
) ([]source.RawMessage, error) {
	messages, err := a.client.FetchMessages(ctx, a.folder, sinceUID, since)
	if err != nil {
		return nil, fmt.Errorf("fetching from %s: %w", a.folder, err)
	}

	raws := make([]source.RawMessage, 0, len(messages))
	for _, m := range messages {
		raws = append(raws, source.RawMessage{
			UID:        m.Envelope.UID,
			From:       m.Envelope.From,
			Subject:    m.Envelope.Subject,
			ReceivedAt: m.Envelope.Date,
			Body:       m.TextBody,
		})
	}

	return raws, nil
}

// MarkSeen flips the \Seen flag on the remote message. Best-effort.
func (a *Adapter) MarkSeen(ctx context.Context, uid uint32) error {
	return a.client.MarkSeen(ctx, a.folder, uid)
}

// ValidateConnection verifies IMAP credentials by connecting,
// authenticating, and selecting the folder. Returns the username on
// success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	if err := a.client.CheckFolder(ctx, a.folder); err != nil {
		return "", fmt.Errorf("validating mail connection: %w", err)
	}
	return a.client.username, nil
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
