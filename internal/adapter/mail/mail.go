// Package mail wraps the outbound (SES) and inbound (IMAP) email
// capabilities behind narrow interfaces so the inquiry lifecycle can be
// tested without a mail account.
package mail

import "context"

// Sender dispatches one message. The Message-ID is caller-supplied so the
// inquiry can be matched against future replies.
type Sender interface {
	Send(ctx context.Context, to, subject, body, messageID string) error
}

// Reply is an inbound message that references one of our outbound ids.
type Reply struct {
	InReplyTo  string
	References string
	From       string
	Subject    string
	Body       string
}

// Mailbox scans the inbox for unseen replies to known outbound message ids.
type Mailbox interface {
	FetchReplies(ctx context.Context, knownMessageIDs map[string]bool) ([]Reply, error)
}
