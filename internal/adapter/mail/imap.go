package mail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// IMAPMailbox scans the INBOX for unseen messages whose In-Reply-To or
// References headers name one of our outbound Message-IDs. Matched
// messages are flagged seen so each reply is surfaced at most once;
// unrelated mail keeps its unseen flag.
type IMAPMailbox struct {
	addr     string
	user     string
	password string
}

func NewIMAPMailbox(host string, port int, user, password string) *IMAPMailbox {
	return &IMAPMailbox{
		addr:     fmt.Sprintf("%s:%d", host, port),
		user:     user,
		password: password,
	}
}

func (m *IMAPMailbox) FetchReplies(ctx context.Context, knownMessageIDs map[string]bool) ([]Reply, error) {
	if len(knownMessageIDs) == 0 {
		return nil, nil
	}

	c, err := client.DialTLS(m.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial failed: %w", err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			slog.DebugContext(ctx, "imap logout failed", "error", err)
		}
	}()

	if err := c.Login(m.user, m.password); err != nil {
		return nil, fmt.Errorf("imap login failed: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("imap select failed: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var replies []Reply
	matched := new(imap.SeqSet)
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		reply, ok := parseReply(r, knownMessageIDs)
		if !ok {
			continue
		}
		replies = append(replies, reply)
		matched.AddNum(msg.SeqNum)
	}
	if err := <-done; err != nil {
		return replies, fmt.Errorf("imap fetch failed: %w", err)
	}

	// Mark only matched replies seen; unrelated mail stays unseen.
	if !matched.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := c.Store(matched, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			slog.WarnContext(ctx, "failed to mark replies seen", "error", err)
		}
	}

	return replies, nil
}

func parseReply(r io.Reader, knownMessageIDs map[string]bool) (Reply, bool) {
	msg, err := netmail.ReadMessage(r)
	if err != nil {
		return Reply{}, false
	}

	inReplyTo := strings.TrimSpace(msg.Header.Get("In-Reply-To"))
	references := strings.TrimSpace(msg.Header.Get("References"))

	if !matchesKnown(inReplyTo, references, knownMessageIDs) {
		return Reply{}, false
	}

	body := extractTextBody(msg)

	return Reply{
		InReplyTo:  inReplyTo,
		References: references,
		From:       msg.Header.Get("From"),
		Subject:    msg.Header.Get("Subject"),
		Body:       body,
	}, true
}

func matchesKnown(inReplyTo, references string, known map[string]bool) bool {
	for mid := range known {
		if mid == "" {
			continue
		}
		if strings.Contains(inReplyTo, mid) || strings.Contains(references, mid) {
			return true
		}
	}
	return false
}

func extractTextBody(msg *netmail.Message) string {
	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(msg.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			if partType == "text/plain" || partType == "" {
				data, _ := io.ReadAll(part)
				return string(data)
			}
		}
		return ""
	}

	data, _ := io.ReadAll(msg.Body)
	return string(data)
}
