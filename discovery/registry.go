package discovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/types"
)

// RegistryConfig holds configuration for the agent registry.
type RegistryConfig struct {
	// StalenessThreshold is how long a record may go without a successful
	// probe before Sweep removes it.
	StalenessThreshold time.Duration `json:"staleness_threshold" yaml:"staleness_threshold"`
}

// DefaultRegistryConfig returns a RegistryConfig with sensible defaults.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		StalenessThreshold: 5 * time.Minute,
	}
}

// Registry holds the last-known state of each specialist agent. All
// mutations are serialized through the registry's lock and are visible
// immediately to subsequent reads; records handed out are copies, so a
// reader may observe a record mid-staleness-window but never a partial
// write. One writer per agent at a time is guaranteed by the lock.
type Registry struct {
	mu     sync.RWMutex
	store  Store
	config *RegistryConfig
	logger *zap.Logger
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store, config *RegistryConfig, logger *zap.Logger) *Registry {
	if config == nil {
		config = DefaultRegistryConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "agent_registry")),
	}
}

// storeFault wraps a backing-store failure. Registry faults are the only
// errors that abort a whole discovery cycle.
func storeFault(op string, err error) error {
	return types.NewErrorf(types.ErrRegistryFault, "registry store %s failed", op).WithCause(err)
}

// Register inserts or replaces a record by agent ID.
func (r *Registry) Register(ctx context.Context, record *AgentRecord) error {
	if record == nil || record.AgentID == "" {
		return types.NewError(types.ErrValidation, "agent record must carry an agent_id")
	}
	if record.Endpoint == "" {
		return types.NewErrorf(types.ErrValidation, "agent %s has no endpoint", record.AgentID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := record.Clone()
	if cp.Status == "" {
		cp.Status = StatusUnknown
	}
	if cp.LastSeen.IsZero() {
		cp.LastSeen = time.Now()
	}
	if err := r.store.Save(ctx, cp); err != nil {
		if types.IsCode(err, types.ErrValidation) {
			return err
		}
		return storeFault("save", err)
	}

	r.logger.Info("agent registered",
		zap.String("agent_id", cp.AgentID),
		zap.String("endpoint", cp.Endpoint),
		zap.Int("capabilities", len(cp.Capabilities)),
	)
	return nil
}

// Get retrieves a copy of the record for the given agent ID.
func (r *Registry) Get(ctx context.Context, agentID string) (*AgentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, err := r.store.Load(ctx, agentID)
	if err != nil {
		if types.IsCode(err, types.ErrAgentNotFound) {
			return nil, err
		}
		return nil, storeFault("load", err)
	}
	return record, nil
}

// List returns copies of all registered records.
func (r *Registry) List(ctx context.Context) ([]*AgentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, err := r.store.LoadAll(ctx)
	if err != nil {
		return nil, storeFault("load_all", err)
	}
	return records, nil
}

// Remove deletes the record for the given agent ID.
func (r *Registry) Remove(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(ctx, agentID); err != nil {
		return storeFault("delete", err)
	}
	r.logger.Info("agent removed", zap.String("agent_id", agentID))
	return nil
}

// Sweep removes records whose LastSeen exceeds the staleness threshold
// and returns the number of records removed.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.store.LoadAll(ctx)
	if err != nil {
		return 0, storeFault("load_all", err)
	}

	cutoff := time.Now().Add(-r.config.StalenessThreshold)
	removed := 0
	for _, record := range records {
		if record.LastSeen.Before(cutoff) {
			if err := r.store.Delete(ctx, record.AgentID); err != nil {
				return removed, storeFault("delete", err)
			}
			removed++
			r.logger.Info("stale agent swept",
				zap.String("agent_id", record.AgentID),
				zap.Time("last_seen", record.LastSeen),
			)
		}
	}
	return removed, nil
}

// SetProbeResult applies the outcome of a liveness check to the agent's
// record. A successful probe refreshes status, latency, capabilities and
// LastSeen; a failed probe only downgrades the status to unreachable so
// the record stays distinguishable from "never seen". Unknown agents are
// ignored: the record may have been swept mid-probe.
func (r *Registry) SetProbeResult(ctx context.Context, result ProbeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.store.Load(ctx, result.AgentID)
	if err != nil {
		if types.IsCode(err, types.ErrAgentNotFound) {
			return nil
		}
		return storeFault("load", err)
	}

	record.Status = result.Status
	if result.Healthy() {
		record.LatencyMS = result.LatencyMS
		record.LastSeen = result.CheckedAt
		if len(result.Capabilities) > 0 {
			record.Capabilities = result.Capabilities
		}
	} else {
		r.logger.Warn("agent unreachable",
			zap.String("agent_id", result.AgentID),
			zap.String("reason", result.Message),
		)
	}

	if err := r.store.Save(ctx, record); err != nil {
		return storeFault("save", err)
	}
	return nil
}

// Close releases the backing store.
func (r *Registry) Close() error {
	return r.store.Close()
}
