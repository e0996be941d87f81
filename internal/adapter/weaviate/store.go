// Package weaviate holds the semantic index over service types. Vectors are
// produced externally (gemini embedder) and stored with vectorizer "none";
// objects are keyed by a slug-derived UUID so re-embedding is an upsert.
package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const className = "ServiceType"

// SemanticMatch is one nearVector hit.
type SemanticMatch struct {
	Slug  string
	Name  string
	Score float64
}

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// EnsureSchema creates the ServiceType class when missing and backfills any
// missing properties on an existing class.
func (s *Store) EnsureSchema(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{Name: "slug", DataType: []string{"string"}},
		{Name: "name", DataType: []string{"text"}},
		{Name: "category", DataType: []string{"string"}},
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "A service type with an externally generated embedding",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return s.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	}

	class, err := s.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for _, p := range class.Properties {
		existing[p.Name] = true
	}
	for _, p := range properties {
		if !existing[p.Name] {
			if err := s.client.Schema().PropertyCreator().
				WithClassName(className).WithProperty(p).Do(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Put upserts the vector for one service type. The object ID is derived
// from the slug, so repeated embedding replaces rather than duplicates.
func (s *Store) Put(ctx context.Context, slug, name, category string, vector []float32) error {
	obj := &models.Object{
		Class: className,
		ID:    strfmt.UUID(objectID(slug)),
		Properties: map[string]interface{}{
			"slug":     slug,
			"name":     name,
			"category": category,
		},
		Vector: vector,
	}
	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("weaviate batch error: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// SearchNear returns service types whose vectors are within the certainty
// threshold of the query vector, best first.
func (s *Store) SearchNear(ctx context.Context, vector []float32, certainty float64, limit int) ([]SemanticMatch, error) {
	near := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector).
		WithCertainty(float32(certainty))

	fields := []graphql.Field{
		{Name: "slug"},
		{Name: "name"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(near).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var matches []SemanticMatch
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return matches, nil
	}
	hits, ok := data[className].([]interface{})
	if !ok {
		return matches, nil
	}
	for _, h := range hits {
		props, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		m := SemanticMatch{}
		if slug, ok := props["slug"].(string); ok {
			m.Slug = slug
		}
		if name, ok := props["name"].(string); ok {
			m.Name = name
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			switch v := additional["certainty"].(type) {
			case float64:
				m.Score = v
			case string:
				m.Score, _ = strconv.ParseFloat(v, 64)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func objectID(slug string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("service_type:"+slug)).String()
}
