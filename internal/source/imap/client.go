// Package imap implements the mail source contract over IMAP using
// go-imap v2.
package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/peytonb/inboxtasks/internal/source"
)

// Client wraps go-imap v2 for connecting to and querying IMAP servers.
// Each operation dials a fresh connection and logs out when done.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewClient creates a new IMAP client configuration.
func NewClient(host, port, username, password string, tls bool) *Client {
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// connect dials the IMAP server, authenticates, and returns the
// connected client plus a release func the caller must invoke when
// done. The context bounds the whole session: its deadline becomes the
// connection deadline and cancellation closes the socket, so pending
// command waits unblock instead of hanging the poll loop.
func (c *Client) connect(ctx context.Context) (*imapclient.Client, func(), error) {
	addr := c.host + ":" + c.port

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: connecting to IMAP %s: %v", source.ErrSourceUnavailable, addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	tlsConfig := &tls.Config{ServerName: c.host}

	var client *imapclient.Client
	if c.tls {
		client = imapclient.New(tls.Client(conn, tlsConfig), nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{
			TLSConfig: tlsConfig,
		})
		if err != nil {
			close(stop)
			_ = conn.Close()
			return nil, nil, fmt.Errorf("%w: STARTTLS with %s: %v", source.ErrSourceUnavailable, addr, err)
		}
	}

	release := func() {
		_ = client.Logout().Wait()
		close(stop)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		release()
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("%w: logging in to IMAP %s: %v", source.ErrSourceUnavailable, addr, err)
		}
		return nil, nil, &source.AuthError{
			Username: c.username,
			Message:  fmt.Sprintf("authentication failed: %v", err),
		}
	}

	return client, release, nil
}

// FetchMessages selects folder, searches for messages received on or
// after since (zero time means no constraint) with UIDs strictly
// greater than sinceUID, and returns them with envelope and plain-text
// body, sorted by ascending UID.
func (c *Client) FetchMessages(
	ctx context.Context,
	folder string,
	sinceUID uint32,
	since time.Time,
) ([]Message, error) {
	client, release, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("%w: selecting %s: %v", source.ErrSourceUnavailable, folder, err)
	}

	criteria := &imap.SearchCriteria{}
	if !since.IsZero() {
		criteria.Since = since
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: searching messages: %v", source.ErrSourceUnavailable, err)
	}

	// Filter the watermark client-side; servers disagree on UID-range
	// search semantics.
	var uids []imap.UID
	for _, uid := range searchData.AllUIDs() {
		if uint32(uid) > sinceUID {
			uids = append(uids, uid)
		}
	}
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var messages []Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		m := Message{Envelope: envelopeFromBuffer(buf)}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			m.TextBody = extractTextBody(raw)
		}
		messages = append(messages, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("%w: fetching messages: %v", source.ErrSourceUnavailable, err)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Envelope.UID < messages[j].Envelope.UID
	})

	return messages, nil
}

// MarkSeen adds the \Seen flag to the message with the given UID.
func (c *Client) MarkSeen(ctx context.Context, folder string, uid uint32) error {
	client, release, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("%w: selecting %s: %v", source.ErrSourceUnavailable, folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))
	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	return storeCmd.Close()
}

// CheckFolder verifies credentials by connecting and selecting folder.
func (c *Client) CheckFolder(ctx context.Context, folder string) error {
	client, release, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("%w: selecting %s: %v", source.ErrSourceUnavailable, folder, err)
	}

	return nil
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if addr := from.Addr(); addr != "" {
				env.From = addr
			} else {
				env.From = from.Name
			}
		}
	}

	return env
}

// extractTextBody parses a raw RFC 2822 message using go-message and
// returns the first text/plain part. When no plain part exists it
// falls back to a stripped rendering of the text/html part, and
// finally to the raw bytes.
func extractTextBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	if htmlBody != "" {
		return stripHTML(htmlBody)
	}
	return string(raw)
}
