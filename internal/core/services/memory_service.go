package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	memoryLookupLimit = 50
	defaultMemoryK    = 4
)

type memoryService struct {
	repo     ports.MemoryRepository
	index    ports.VectorIndex
	embedder ports.Embedder
	defaultK int
	logger   *logger.Logger
}

// NewMemoryService combines the keyword store (user lookup and the records
// themselves) with the vector index (semantic ranking).
func NewMemoryService(repo ports.MemoryRepository, index ports.VectorIndex, embedder ports.Embedder, cfg config.MemoryConfig, log *logger.Logger) ports.MemoryService {
	k := cfg.DefaultK
	if k <= 0 {
		k = defaultMemoryK
	}
	return &memoryService{
		repo:     repo,
		index:    index,
		embedder: embedder,
		defaultK: k,
		logger:   log,
	}
}

// FindUser runs a keyword search and keeps only case-insensitive exact
// name matches, since the keyword search may return other users.
func (s *memoryService) FindUser(ctx context.Context, name string) domain.UserLookup {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.UserLookup{Status: domain.LookupNotFound, Message: "Invalid user name: Name cannot be empty"}
	}

	candidates, err := s.repo.SearchByUserName(ctx, name, memoryLookupLimit)
	if err != nil {
		s.logger.Errorw("memory_find_user_failed", "user_name", name, "error", err)
		return domain.UserLookup{Status: domain.LookupError, Message: "Error searching for user: " + err.Error()}
	}
	if len(candidates) == 0 {
		return domain.UserLookup{Status: domain.LookupNotFound, Message: fmt.Sprintf("User '%s' not found in the database", name)}
	}

	var matched []domain.UserMemory
	for _, c := range candidates {
		if c.ID == "" || c.UserName == "" {
			s.logger.Warnw("memory_record_malformed", "id", c.ID)
			continue
		}
		if strings.EqualFold(c.UserName, name) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return domain.UserLookup{Status: domain.LookupNotFound, Message: fmt.Sprintf("No exact match found for user '%s'", name)}
	}
	return domain.UserLookup{Status: domain.LookupFound, Records: matched}
}

// Query answers question from the user's own records. Both embedded fields
// are searched; a record found through both keeps its better score.
func (s *memoryService) Query(ctx context.Context, userName, question string, k int) domain.MemoryAnswer {
	if k <= 0 {
		k = s.defaultK
	}
	lookup := s.FindUser(ctx, userName)
	switch lookup.Status {
	case domain.LookupError:
		return domain.MemoryAnswer{Status: domain.LookupError, Message: lookup.Message}
	case domain.LookupNotFound:
		if strings.TrimSpace(userName) == "" {
			return domain.MemoryAnswer{Status: domain.LookupNotFound, Message: lookup.Message}
		}
		return domain.MemoryAnswer{Status: domain.LookupNotFound, Message: fmt.Sprintf("User '%s' not found in the database", strings.TrimSpace(userName))}
	}

	answer := domain.MemoryAnswer{Status: domain.LookupFound, UserInfo: lookup.Records}

	// stored names may differ in case from the requested one
	names := make(map[string]struct{})
	for _, r := range lookup.Records {
		names[r.UserName] = struct{}{}
	}

	best := make(map[string]float32)
	for name := range names {
		hits, err := s.index.Query(ctx, name, question, k)
		if err != nil {
			s.logger.Errorw("memory_query_failed", "user_name", name, "error", err)
			return domain.MemoryAnswer{Status: domain.LookupError, Message: "Error retrieving user information: " + err.Error()}
		}
		for _, h := range hits {
			if cur, ok := best[h.ID]; !ok || h.Score > cur {
				best[h.ID] = h.Score
			}
		}
	}
	if len(best) == 0 {
		answer.Message = "No specific information found for the given query"
		return answer
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if best[ids[i]] != best[ids[j]] {
			return best[ids[i]] > best[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > k {
		ids = ids[:k]
	}

	records, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Errorw("memory_hydrate_failed", "error", err)
		return domain.MemoryAnswer{Status: domain.LookupError, Message: "Error retrieving user information: " + err.Error()}
	}
	byID := make(map[string]domain.UserMemory, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			s.logger.Warnw("memory_index_orphan", "id", id)
			continue
		}
		answer.Results = append(answer.Results, domain.ScoredMemory{Memory: r, Score: best[id]})
	}

	if len(answer.Results) == 0 {
		answer.Message = "No relevant information found for the given query"
		return answer
	}
	top := answer.Results[0].Memory
	answer.TopChoice = &domain.TopChoice{
		UserID:       top.ID,
		UserName:     top.UserName,
		TopicText:    top.TopicText,
		InsightsText: top.InsightsText,
	}
	return answer
}

// Insert stores a new memory. Duplicates are not detected.
func (s *memoryService) Insert(ctx context.Context, userName, topic, insights string) (*domain.UserMemory, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, ErrEmptyUserName
	}

	var topicVec, insightsVec []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.embedder.Embed(gctx, topic)
		if err != nil {
			return fmt.Errorf("embed topic: %w", err)
		}
		topicVec = v
		return nil
	})
	g.Go(func() error {
		v, err := s.embedder.Embed(gctx, insights)
		if err != nil {
			return fmt.Errorf("embed insights: %w", err)
		}
		insightsVec = v
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Errorw("memory_embed_failed", "user_name", userName, "error", err)
		return nil, err
	}

	memory := &domain.UserMemory{
		ID:                uuid.NewString(),
		CreatedAt:         time.Now(),
		UserName:          userName,
		TopicText:         topic,
		InsightsText:      insights,
		TopicEmbedding:    topicVec,
		InsightsEmbedding: insightsVec,
	}
	if err := s.repo.Create(ctx, memory); err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}
	if err := s.index.Add(ctx, *memory); err != nil {
		// a row the index cannot rank would be found by FindUser but never by Query
		if derr := s.repo.Delete(context.WithoutCancel(ctx), memory.ID); derr != nil {
			s.logger.Errorw("memory_rollback_failed", "id", memory.ID, "error", derr)
		}
		return nil, fmt.Errorf("index memory %s: %w", memory.ID, err)
	}
	return memory, nil
}
