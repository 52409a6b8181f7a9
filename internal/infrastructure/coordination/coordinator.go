// Package coordination serializes writes per savings group. A group's
// ledger is the serialization unit: appends and officer rotations for one
// group run one at a time, while different groups proceed in parallel.
package coordination

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
)

const defaultShards = 64

// GroupCoordinator provides per-group exclusive sections. Locks are
// sharded by a hash of the group ID, so throughput scales across groups
// while writes within one group stay linearized.
type GroupCoordinator struct {
	shards []chan struct{}
}

// NewGroupCoordinator creates a coordinator with the given shard count
func NewGroupCoordinator(shards int) *GroupCoordinator {
	if shards <= 0 {
		shards = defaultShards
	}
	c := &GroupCoordinator{shards: make([]chan struct{}, shards)}
	for i := range c.shards {
		ch := make(chan struct{}, 1)
		ch <- struct{}{}
		c.shards[i] = ch
	}
	return c
}

func (c *GroupCoordinator) shard(groupID uuid.UUID) chan struct{} {
	h := fnv.New32a()
	h.Write(groupID[:])
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// WithGroup runs fn while holding the group's exclusive slot. Waiting
// respects context cancellation; fn must not start long external I/O
// (notifications, statement delivery) while the slot is held.
func (c *GroupCoordinator) WithGroup(ctx context.Context, groupID uuid.UUID, fn func(ctx context.Context) error) error {
	slot := c.shard(groupID)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-slot:
	}
	defer func() { slot <- struct{}{} }()
	return fn(ctx)
}

// TryWithGroup runs fn only if the slot is immediately free, returning
// false when another writer holds it.
func (c *GroupCoordinator) TryWithGroup(groupID uuid.UUID, fn func() error) (bool, error) {
	slot := c.shard(groupID)
	select {
	case <-slot:
	default:
		return false, nil
	}
	defer func() { slot <- struct{}{} }()
	return true, fn()
}
