package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotThreshold is the number of events between two snapshots of an
// aggregate. Carts and orders rarely reach it; it bounds replay for the
// long-lived ones.
const SnapshotThreshold = 10

// Snapshot is the serialized state of an aggregate at Version
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SnapshotDue reports whether an aggregate at version should be snapshotted
func SnapshotDue(version int) bool {
	return version > 0 && version%SnapshotThreshold == 0
}

// NewSnapshot serializes state taken at version
func NewSnapshot(aggregateID, aggregateType string, version int, state any) (*Snapshot, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s %s: %w", aggregateType, aggregateID, err)
	}
	return &Snapshot{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       version,
		State:         data,
		CreatedAt:     time.Now(),
	}, nil
}

// Restore decodes the snapshot state into v
func (s *Snapshot) Restore(v any) error {
	if err := json.Unmarshal(s.State, v); err != nil {
		return fmt.Errorf("failed to restore %s %s at version %d: %w", s.AggregateType, s.AggregateID, s.Version, err)
	}
	return nil
}
