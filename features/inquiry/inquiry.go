package inquiry

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("inquiry not found")
	ErrDuplicate = errors.New("an inquiry for this provider and service is already out")
	ErrNoEmail   = errors.New("provider has no reachable email address")
)

// Status is the inquiry lifecycle state. Transitions only move forward:
// sent → replied on a matched reply, sent → failed on delivery failure.
type Status string

const (
	StatusSent    Status = "sent"
	StatusReplied Status = "replied"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusReplied, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving to next is a permitted forward
// transition. Replied and failed are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusSent && (next == StatusReplied || next == StatusFailed)
}

type Inquiry struct {
	ID                string     `json:"id"`
	ProviderID        string     `json:"provider_id"`
	ProviderName      string     `json:"provider_name"`
	ServiceType       string     `json:"service_type"`
	EmailTo           string     `json:"email_to"`
	Subject           string     `json:"subject"`
	Body              string     `json:"body"`
	MessageID         string     `json:"message_id"`
	Status            Status     `json:"status"`
	ReplyBody         string     `json:"reply_body,omitempty"`
	ExtractedPrice    float64    `json:"extracted_price,omitempty"`
	ExtractedCurrency string     `json:"extracted_currency,omitempty"`
	SentAt            time.Time  `json:"sent_at"`
	RepliedAt         *time.Time `json:"replied_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, inq *Inquiry) error
	// ListOutstanding returns inquiries still awaiting a reply.
	ListOutstanding(ctx context.Context) ([]Inquiry, error)
	ListByProvider(ctx context.Context, providerID string) ([]Inquiry, error)
	// HasActive reports whether a sent or replied inquiry already exists
	// for the pair; used to dedupe outbound sends.
	HasActive(ctx context.Context, providerID, serviceType string) (bool, error)
	// MarkReplied transitions sent → replied. A row not in sent state is
	// left untouched and reported false.
	MarkReplied(ctx context.Context, id, replyBody string, price float64, currency string) (bool, error)
	// LatestStatusByProvider returns the newest inquiry status per
	// provider for one service type.
	LatestStatusByProvider(ctx context.Context, providerIDs []string, serviceType string) (map[string]string, error)
}
