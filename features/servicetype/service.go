package servicetype

import (
	"context"
	"fmt"
	"log/slog"

	"rateright/backend/internal/adapter/gemini"
	"rateright/backend/internal/textutil"
)

// VectorWriter is the write side of the semantic index.
type VectorWriter interface {
	Put(ctx context.Context, slug, name, category string, vector []float32) error
}

// Service maintains the catalogue: inserting new service types and keeping
// the semantic index in step with the relational rows.
type Service struct {
	repo   Repository
	embed  Embedder
	index  VectorWriter
	logger *slog.Logger
}

func NewService(repo Repository, embed Embedder, index VectorWriter, logger *slog.Logger) *Service {
	return &Service{repo: repo, embed: embed, index: index, logger: logger}
}

// EnsureExists registers a service type under its slugified name, embedding
// it into the semantic index when the embed client is available. Embedding
// failures are logged and left for the backfill pass.
func (s *Service) EnsureExists(ctx context.Context, name, category, description string) (*ServiceType, error) {
	st := &ServiceType{
		Slug:        textutil.Slugify(name),
		Name:        name,
		Category:    category,
		Description: description,
	}
	inserted, err := s.repo.Upsert(ctx, st)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return s.repo.GetBySlug(ctx, st.Slug)
	}

	if err := s.embedOne(ctx, st); err != nil {
		s.logger.WarnContext(ctx, "embedding deferred to backfill", "slug", st.Slug, "error", err)
	}
	return st, nil
}

// BackfillEmbeddings embeds service types that were inserted while the
// embedding pipeline was down. Safe to call repeatedly.
func (s *Service) BackfillEmbeddings(ctx context.Context, batch int) error {
	pending, err := s.repo.ListUnembedded(ctx, batch)
	if err != nil {
		return err
	}
	for i := range pending {
		if err := s.embedOne(ctx, &pending[i]); err != nil {
			return fmt.Errorf("backfill %s: %w", pending[i].Slug, err)
		}
	}
	return nil
}

func (s *Service) embedOne(ctx context.Context, st *ServiceType) error {
	if s.embed == nil || s.index == nil {
		return fmt.Errorf("embedding pipeline unavailable")
	}
	vector, err := s.embed.Embed(ctx, gemini.SearchText(st.Name, st.Category, st.Description))
	if err != nil {
		return err
	}
	if err := s.index.Put(ctx, st.Slug, st.Name, st.Category, vector); err != nil {
		return err
	}
	return s.repo.MarkEmbedded(ctx, st.Slug)
}
