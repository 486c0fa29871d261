// Package aggregate rebuilds event-sourced aggregates from the event store.
package aggregate

import (
	"context"
	"fmt"

	"github.com/example/parfum-commerce/internal/infrastructure/store"
)

// Aggregate is implemented by Cart and Order
type Aggregate interface {
	GetID() string
	GetVersion() int
	SetVersion(int)
	ApplyEvent(store.Event) error
}

// LoadAggregate restores the latest snapshot of id, if any, and replays the
// events recorded after it. found is false when id has no history at all.
func LoadAggregate[T Aggregate](
	ctx context.Context,
	eventStore store.EventStoreInterface,
	id string,
	newAggregate func() T,
) (agg T, found bool, err error) {
	agg = newAggregate()

	snapshot, err := eventStore.GetSnapshot(ctx, id)
	if err != nil {
		return agg, false, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var events []store.Event
	if snapshot != nil {
		if err := snapshot.Restore(agg); err != nil {
			return agg, false, err
		}
		events = eventStore.GetEventsFromVersion(ctx, id, snapshot.Version)
	} else {
		events = eventStore.GetEvents(id)
	}

	for _, event := range events {
		if snapshot != nil && event.Version <= snapshot.Version {
			continue
		}
		if err := agg.ApplyEvent(event); err != nil {
			return agg, false, fmt.Errorf("failed to apply %s v%d: %w", event.EventType, event.Version, err)
		}
	}

	return agg, snapshot != nil || len(events) > 0, nil
}

// MaybeCreateSnapshot saves the aggregate state every store.SnapshotThreshold
// versions
func MaybeCreateSnapshot(
	ctx context.Context,
	eventStore store.EventStoreInterface,
	agg Aggregate,
	aggregateType string,
) error {
	if !store.SnapshotDue(agg.GetVersion()) {
		return nil
	}

	snapshot, err := store.NewSnapshot(agg.GetID(), aggregateType, agg.GetVersion(), agg)
	if err != nil {
		return err
	}
	if err := eventStore.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
