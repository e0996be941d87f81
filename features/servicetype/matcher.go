package servicetype

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	weav "rateright/backend/internal/adapter/weaviate"
)

// Embedder turns query text into a vector. Implemented by the gemini adapter.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticIndex is the nearVector lookup side of the weaviate store.
type SemanticIndex interface {
	SearchNear(ctx context.Context, vector []float32, certainty float64, limit int) ([]weav.SemanticMatch, error)
}

// Matcher resolves free-text queries to known service types by running a
// lexical trigram search and a semantic vector search in parallel and
// merging the results. The semantic lane is best-effort: embedding or index
// failures degrade the resolution to text-only instead of failing it.
type Matcher struct {
	repo      Repository
	embedder  Embedder
	index     SemanticIndex
	logger    *slog.Logger
	certainty float64
	threshold float64
	limit     int
}

func NewMatcher(repo Repository, embedder Embedder, index SemanticIndex, logger *slog.Logger, certainty, threshold float64, limit int) *Matcher {
	return &Matcher{
		repo:      repo,
		embedder:  embedder,
		index:     index,
		logger:    logger,
		certainty: certainty,
		threshold: threshold,
		limit:     limit,
	}
}

// Resolve returns matches ordered by score descending. The second return
// reports whether the semantic lane was unavailable and only lexical
// results were considered.
func (m *Matcher) Resolve(ctx context.Context, query string) ([]Match, bool, error) {
	var (
		lexical  []Match
		semantic []weav.SemanticMatch
		textOnly bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		lexical, err = m.repo.SearchLexical(gctx, query, m.threshold, m.limit)
		return err
	})

	g.Go(func() error {
		if m.embedder == nil || m.index == nil {
			textOnly = true
			return nil
		}
		vector, err := m.embedder.Embed(gctx, query)
		if err != nil {
			m.logger.WarnContext(gctx, "query embedding failed, falling back to text match", "error", err)
			textOnly = true
			return nil
		}
		semantic, err = m.index.SearchNear(gctx, vector, m.certainty, m.limit)
		if err != nil {
			m.logger.WarnContext(gctx, "semantic search failed, falling back to text match", "error", err)
			textOnly = true
			return nil
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	merged := mergeMatches(lexical, semantic)
	if len(merged) > m.limit {
		merged = merged[:m.limit]
	}
	return merged, textOnly, nil
}

// mergeMatches deduplicates by slug keeping the higher-scoring hit, then
// orders by score descending with slug as a deterministic tie-break.
func mergeMatches(lexical []Match, semantic []weav.SemanticMatch) []Match {
	bySlug := make(map[string]Match, len(lexical)+len(semantic))
	for _, m := range lexical {
		bySlug[m.Slug] = m
	}
	for _, s := range semantic {
		m := Match{Slug: s.Slug, Name: s.Name, MatchSource: MatchSourceVector, Score: s.Score}
		if prev, ok := bySlug[s.Slug]; !ok || m.Score > prev.Score {
			bySlug[s.Slug] = m
		}
	}

	out := make([]Match, 0, len(bySlug))
	for _, m := range bySlug {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}
