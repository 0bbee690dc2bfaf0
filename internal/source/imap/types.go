package imap

import "time"

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	UID     uint32
	From    string
	Subject string
	Date    time.Time
}

// Message holds the envelope plus the extracted plain-text body of a
// fetched message.
type Message struct {
	Envelope Envelope
	TextBody string
}
