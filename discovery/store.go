package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tripmesh/tripmesh/types"
)

// Store defines the persistence interface for agent registry data.
// Implementations can back the registry with different storage backends
// (in-memory, redis). Stores hold serialized state only; locking and
// record-copy discipline live in the Registry.
type Store interface {
	Save(ctx context.Context, record *AgentRecord) error
	Load(ctx context.Context, agentID string) (*AgentRecord, error)
	LoadAll(ctx context.Context) ([]*AgentRecord, error)
	Delete(ctx context.Context, agentID string) error
	Close() error
}

// MemoryStore is a Store backed by an in-memory map. It is the default
// backend and never fails.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*AgentRecord
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*AgentRecord)}
}

func (s *MemoryStore) Save(_ context.Context, record *AgentRecord) error {
	if record == nil || record.AgentID == "" {
		return types.NewError(types.ErrValidation, "agent record must carry an agent_id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.AgentID] = record.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, agentID string) (*AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[agentID]
	if !ok {
		return nil, types.NewErrorf(types.ErrAgentNotFound, "agent %s not registered", agentID).WithAgentID(agentID)
	}
	return record.Clone(), nil
}

func (s *MemoryStore) LoadAll(_ context.Context) ([]*AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*AgentRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record.Clone())
	}
	return records, nil
}

func (s *MemoryStore) Delete(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, agentID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// redisKeyPrefix namespaces registry keys in a shared redis instance.
const redisKeyPrefix = "tripmesh:agents"

// RedisStore is a Store backed by redis, for deployments where several
// coordination-plane replicas share one registry view. Records are stored
// as JSON values under tripmesh:agents:<id> with a set index for LoadAll.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore and verifies connectivity.
func NewRedisStore(ctx context.Context, opts *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) key(agentID string) string {
	return redisKeyPrefix + ":" + agentID
}

func (s *RedisStore) Save(ctx context.Context, record *AgentRecord) error {
	if record == nil || record.AgentID == "" {
		return types.NewError(types.ErrValidation, "agent record must carry an agent_id")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(record.AgentID), payload, 0)
	pipe.SAdd(ctx, redisKeyPrefix, record.AgentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save agent record: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, agentID string) (*AgentRecord, error) {
	payload, err := s.client.Get(ctx, s.key(agentID)).Bytes()
	if err == redis.Nil {
		return nil, types.NewErrorf(types.ErrAgentNotFound, "agent %s not registered", agentID).WithAgentID(agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load agent record: %w", err)
	}
	var record AgentRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal agent record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]*AgentRecord, error) {
	ids, err := s.client.SMembers(ctx, redisKeyPrefix).Result()
	if err != nil {
		return nil, fmt.Errorf("list agent ids: %w", err)
	}
	records := make([]*AgentRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.Load(ctx, id)
		if types.IsCode(err, types.ErrAgentNotFound) {
			// Index entry outlived its record; self-heal.
			s.client.SRem(ctx, redisKeyPrefix, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RedisStore) Delete(ctx context.Context, agentID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(agentID))
	pipe.SRem(ctx, redisKeyPrefix, agentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete agent record: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
