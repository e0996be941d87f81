package inquiry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"rateright/backend/features/observation"
	"rateright/backend/features/provider"
	"rateright/backend/features/servicetype"
	"rateright/backend/internal/adapter/gemini"
	"rateright/backend/internal/adapter/mail"
)

var ErrValidation = errors.New("validation error")

// Drafter writes the inquiry email body. Implemented by the gemini
// extractor, with a template fallback inside the adapter.
type Drafter interface {
	DraftInquiry(ctx context.Context, providerName, serviceName, senderName string) string
}

// ReplyExtractor pulls a price out of an unstructured reply body.
type ReplyExtractor interface {
	ExtractPrice(ctx context.Context, text, serviceDesc string) (*gemini.PriceHit, error)
}

// Service drives the send → await-reply → extract-price lifecycle.
type Service struct {
	repo         Repository
	providers    provider.Repository
	types        servicetype.Repository
	observations observation.Repository
	sender       mail.Sender
	mailbox      mail.Mailbox
	drafter      Drafter
	extractor    ReplyExtractor
	logger       *slog.Logger

	fromDomain string
	httpClient *http.Client
}

func NewService(
	repo Repository,
	providers provider.Repository,
	types servicetype.Repository,
	observations observation.Repository,
	sender mail.Sender,
	mailbox mail.Mailbox,
	drafter Drafter,
	extractor ReplyExtractor,
	fromEmail string,
	logger *slog.Logger,
) *Service {
	domain := "rateright.local"
	if _, after, ok := strings.Cut(fromEmail, "@"); ok && after != "" {
		domain = after
	}
	return &Service{
		repo:         repo,
		providers:    providers,
		types:        types,
		observations: observations,
		sender:       sender,
		mailbox:      mailbox,
		drafter:      drafter,
		extractor:    extractor,
		logger:       logger,
		fromDomain:   domain,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send composes and dispatches one price inquiry. Duplicate sends for a
// (provider, service) pair with an inquiry already out are rejected; a
// delivery failure is persisted as a failed inquiry so it is never
// silently retried.
func (s *Service) Send(ctx context.Context, providerID, serviceSlug, requesterName string) (*Inquiry, error) {
	if s.sender == nil {
		return nil, fmt.Errorf("%w: outbound mail is not configured", ErrValidation)
	}
	if requesterName == "" {
		requesterName = "a prospective customer"
	}

	active, err := s.repo.HasActive(ctx, providerID, serviceSlug)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrDuplicate
	}

	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown provider %q", ErrValidation, providerID)
		}
		return nil, err
	}
	st, err := s.types.GetBySlug(ctx, serviceSlug)
	if err != nil {
		if errors.Is(err, servicetype.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown service type %q", ErrValidation, serviceSlug)
		}
		return nil, err
	}

	recipient := p.Email
	if recipient == "" {
		recipient = s.scrapeContactEmail(ctx, p.Website)
	}
	if recipient == "" {
		return nil, ErrNoEmail
	}

	body := gemini.TemplateInquiryBody(p.Name, st.Name, requesterName)
	if s.drafter != nil {
		body = s.drafter.DraftInquiry(ctx, p.Name, st.Name, requesterName)
	}

	inq := &Inquiry{
		ProviderID:   p.ID,
		ProviderName: p.Name,
		ServiceType:  st.Slug,
		EmailTo:      recipient,
		Subject:      fmt.Sprintf("Inquiry about %s pricing", st.Name),
		Body:         body,
		MessageID:    fmt.Sprintf("<%s@%s>", uuid.NewString(), s.fromDomain),
		Status:       StatusSent,
		SentAt:       time.Now().UTC(),
	}

	if err := s.sender.Send(ctx, recipient, inq.Subject, inq.Body, inq.MessageID); err != nil {
		inq.Status = StatusFailed
		if insErr := s.repo.Insert(ctx, inq); insErr != nil {
			s.logger.ErrorContext(ctx, "failed to record failed inquiry", "error", insErr)
		}
		return nil, fmt.Errorf("send inquiry: %w", err)
	}
	if err := s.repo.Insert(ctx, inq); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "inquiry sent", "provider_id", p.ID, "service_type", st.Slug, "message_id", inq.MessageID)
	return inq, nil
}

// CheckReplies scans the inbox for replies to outstanding inquiries and
// turns extractable prices into observations. Safe to re-run: an inquiry
// already replied is never processed twice.
func (s *Service) CheckReplies(ctx context.Context) (int, error) {
	if s.mailbox == nil {
		return 0, nil
	}

	outstanding, err := s.repo.ListOutstanding(ctx)
	if err != nil {
		return 0, err
	}
	if len(outstanding) == 0 {
		return 0, nil
	}

	known := make(map[string]bool, len(outstanding))
	byMessageID := make(map[string]*Inquiry, len(outstanding))
	for i := range outstanding {
		known[outstanding[i].MessageID] = true
		byMessageID[outstanding[i].MessageID] = &outstanding[i]
	}

	replies, err := s.mailbox.FetchReplies(ctx, known)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, reply := range replies {
		inq := matchInquiry(byMessageID, reply)
		if inq == nil {
			continue
		}
		if s.processReply(ctx, inq, reply) {
			processed++
		}
	}
	return processed, nil
}

func matchInquiry(byMessageID map[string]*Inquiry, reply mail.Reply) *Inquiry {
	for id, inq := range byMessageID {
		if strings.Contains(reply.InReplyTo, id) || strings.Contains(reply.References, id) {
			return inq
		}
	}
	return nil
}

// processReply reports whether the reply advanced the inquiry. A reply
// whose body yields no price leaves the inquiry in sent state.
func (s *Service) processReply(ctx context.Context, inq *Inquiry, reply mail.Reply) bool {
	if !inq.Status.CanTransitionTo(StatusReplied) {
		return false
	}

	var hit *gemini.PriceHit
	if s.extractor != nil {
		var err error
		hit, err = s.extractor.ExtractPrice(ctx, reply.Body, s.serviceDescription(ctx, inq.ServiceType))
		if err != nil {
			s.logger.WarnContext(ctx, "reply price extraction failed", "inquiry_id", inq.ID, "error", err)
			return false
		}
	}
	if hit == nil {
		s.logger.InfoContext(ctx, "reply had no extractable price", "inquiry_id", inq.ID)
		return false
	}

	transitioned, err := s.repo.MarkReplied(ctx, inq.ID, reply.Body, hit.Price, hit.Currency)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark inquiry replied", "inquiry_id", inq.ID, "error", err)
		return false
	}
	if !transitioned {
		// someone else processed this reply first
		return false
	}
	inq.Status = StatusReplied

	p, err := s.providers.GetByID(ctx, inq.ProviderID)
	if err != nil {
		s.logger.ErrorContext(ctx, "provider lookup failed for reply observation", "inquiry_id", inq.ID, "error", err)
		return true
	}
	obs := &observation.Observation{
		ProviderID:  inq.ProviderID,
		ServiceType: inq.ServiceType,
		Category:    p.Category,
		Price:       hit.Price,
		Currency:    hit.Currency,
		SourceType:  observation.SourceEmailReply,
		Location:    p.Location,
		ObservedAt:  time.Now().UTC(),
	}
	if err := s.observations.Insert(ctx, obs); err != nil {
		s.logger.ErrorContext(ctx, "failed to record reply observation", "inquiry_id", inq.ID, "error", err)
	}
	return true
}

// serviceDescription renders the stored slug as the display name the
// extractor prompt expects. The slug itself is the fallback for a type
// no longer in the catalogue.
func (s *Service) serviceDescription(ctx context.Context, slug string) string {
	st, err := s.types.GetBySlug(ctx, slug)
	if err != nil {
		return slug
	}
	if st.Description != "" {
		return st.Name + ": " + st.Description
	}
	return st.Name
}

func (s *Service) ListByProvider(ctx context.Context, providerID string) ([]Inquiry, error) {
	if providerID == "" {
		return nil, fmt.Errorf("%w: provider_id is required", ErrValidation)
	}
	return s.repo.ListByProvider(ctx, providerID)
}

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// scrapeContactEmail tries the provider's website for a published address
// when the stored record has none. Best-effort only.
func (s *Service) scrapeContactEmail(ctx context.Context, website string) string {
	if website == "" {
		return ""
	}
	for _, path := range []string{"", "/contact", "/contact-us"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(website, "/")+path, nil)
		if err != nil {
			return ""
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			continue
		}
		if m := emailRe.FindString(string(body)); m != "" && !strings.HasSuffix(m, ".png") {
			return m
		}
	}
	return ""
}
