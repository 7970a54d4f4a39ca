// Package vector holds the semantic side of the user memory index.
package vector

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	chromem "github.com/philippgille/chromem-go"
)

const (
	FieldTopic    = "topic"
	FieldInsights = "insights"

	metaUserName = "user_name"
)

// Store keeps one collection per embedded field so topic and insights
// similarity are scored independently.
type Store struct {
	db       *chromem.DB
	topics   *chromem.Collection
	insights *chromem.Collection
}

// NewStore opens the index. An empty persistPath keeps it in memory.
func NewStore(persistPath string, embedder ports.Embedder) (*Store, error) {
	var db *chromem.DB
	if persistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(persistPath, "memory.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	topics, err := db.GetOrCreateCollection("user_topics", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create topic collection: %w", err)
	}
	insights, err := db.GetOrCreateCollection("user_insights", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create insights collection: %w", err)
	}
	return &Store{db: db, topics: topics, insights: insights}, nil
}

// Add indexes both fields of memory, reusing stored embeddings when present.
func (s *Store) Add(ctx context.Context, memory domain.UserMemory) error {
	meta := map[string]string{metaUserName: memory.UserName}
	if err := s.topics.AddDocument(ctx, chromem.Document{
		ID:        memory.ID,
		Content:   memory.TopicText,
		Embedding: memory.TopicEmbedding,
		Metadata:  meta,
	}); err != nil {
		return fmt.Errorf("add topic %s: %w", memory.ID, err)
	}
	if err := s.insights.AddDocument(ctx, chromem.Document{
		ID:        memory.ID,
		Content:   memory.InsightsText,
		Embedding: memory.InsightsEmbedding,
		Metadata:  meta,
	}); err != nil {
		return fmt.Errorf("add insights %s: %w", memory.ID, err)
	}
	return nil
}

// Query searches both fields for userName's records. Hits are unmerged;
// the same record may appear once per field.
func (s *Store) Query(ctx context.Context, userName, text string, k int) ([]ports.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	where := map[string]string{metaUserName: userName}

	var hits []ports.VectorHit
	for _, c := range []struct {
		field string
		col   *chromem.Collection
	}{{FieldTopic, s.topics}, {FieldInsights, s.insights}} {
		n := k
		if count := c.col.Count(); n > count {
			n = count
		}
		if n == 0 {
			continue
		}
		results, err := c.col.Query(ctx, text, n, where, nil)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", c.field, err)
		}
		for _, r := range results {
			hits = append(hits, ports.VectorHit{ID: r.ID, Field: c.field, Score: r.Similarity})
		}
	}
	return hits, nil
}

func (s *Store) Count() int {
	return s.topics.Count()
}
