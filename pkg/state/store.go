/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package state

import (
	"hash/fnv"
	"runtime"
	"sync"

	"github.com/carverauto/fleetstate/pkg/models"
)

// MutatorFunc mutates a device record in place and reports whether it
// changed anything. Mutators run under the record's lock, so mutations to
// a single device never interleave.
type MutatorFunc func(st *models.DeviceState) bool

// SeedFunc produces the initial record for a device seen for the first time.
type SeedFunc func() models.DeviceState

// Store is the in-memory device state store, sharded to reduce lock
// contention and scoped to the partitions this node currently owns.
type Store struct {
	partitionCount int32
	shards         []*storeShard
	shardCount     int

	ownedMu sync.RWMutex
	owned   map[int32]struct{}
}

// storeShard holds a slice of the device keyspace and its own lock.
type storeShard struct {
	mu      sync.RWMutex
	entries map[string]*deviceEntry
}

// deviceEntry wraps one device's record with its serialization lock.
type deviceEntry struct {
	mu        sync.Mutex
	partition int32
	// evicted flips once the record has left the store. A mutation racing
	// with partition handoff observes it under the entry lock and fails
	// with ErrNotOwned instead of writing into a dropped record.
	evicted bool
	dirty   bool
	version uint64
	state   models.DeviceState
}

const (
	minStoreShards = 4
	maxStoreShards = 16
)

// NewStore creates a store for a keyspace split into partitionCount
// partitions. No partition is owned initially.
func NewStore(partitionCount int32) *Store {
	shards := runtime.GOMAXPROCS(0)
	if shards < minStoreShards {
		shards = minStoreShards
	}

	if shards > maxStoreShards {
		shards = maxStoreShards
	}

	s := &Store{
		partitionCount: partitionCount,
		shards:         make([]*storeShard, shards),
		shardCount:     shards,
		owned:          make(map[int32]struct{}),
	}

	for i := 0; i < shards; i++ {
		s.shards[i] = &storeShard{entries: make(map[string]*deviceEntry)}
	}

	return s
}

// PartitionFor maps a device ID onto its partition.
func (s *Store) PartitionFor(deviceID string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))

	return int32(h.Sum32() % uint32(s.partitionCount)) // #nosec G115 - partitionCount is validated positive
}

// IsOwned reports whether this node currently owns the partition.
func (s *Store) IsOwned(partition int32) bool {
	s.ownedMu.RLock()
	defer s.ownedMu.RUnlock()

	_, ok := s.owned[partition]

	return ok
}

// Own marks a partition as owned by this node.
func (s *Store) Own(partition int32) {
	s.ownedMu.Lock()
	defer s.ownedMu.Unlock()

	s.owned[partition] = struct{}{}
}

// OwnedPartitions returns a snapshot of the currently owned partition set.
func (s *Store) OwnedPartitions() []int32 {
	s.ownedMu.RLock()
	defer s.ownedMu.RUnlock()

	partitions := make([]int32, 0, len(s.owned))
	for p := range s.owned {
		partitions = append(partitions, p)
	}

	return partitions
}

// Get returns a copy of the device's record. It fails with ErrNotOwned
// for devices outside the owned partitions and ErrDeviceStateNotFound for
// owned devices with no record yet.
func (s *Store) Get(deviceID string) (models.DeviceState, error) {
	if !s.IsOwned(s.PartitionFor(deviceID)) {
		return models.DeviceState{}, ErrNotOwned
	}

	entry := s.lookup(deviceID)
	if entry == nil {
		return models.DeviceState{}, ErrDeviceStateNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.evicted {
		return models.DeviceState{}, ErrNotOwned
	}

	return entry.state, nil
}

// Apply runs a mutator against the device's record under its lock,
// creating the record from seed when absent. A nil seed requires an
// existing record. It returns the post-mutation snapshot, the record's
// version, and whether the mutator changed anything.
func (s *Store) Apply(deviceID string, seed SeedFunc, mutate MutatorFunc) (models.DeviceState, uint64, bool, error) {
	if !s.IsOwned(s.PartitionFor(deviceID)) {
		return models.DeviceState{}, 0, false, ErrNotOwned
	}

	entry, err := s.lookupOrCreate(deviceID, seed)
	if err != nil {
		return models.DeviceState{}, 0, false, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.evicted {
		return models.DeviceState{}, 0, false, ErrNotOwned
	}

	changed := mutate(&entry.state)
	if changed {
		entry.dirty = true
		entry.version++
	}

	return entry.state, entry.version, changed, nil
}

// Seed inserts a rehydrated record unless the device already has one.
// Records arriving from persistence never clobber records already built
// up from live events, and never land in a partition that was handed
// off while the load was in flight.
func (s *Store) Seed(st models.DeviceState) {
	shard := s.shardFor(st.DeviceID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if !s.IsOwned(st.Partition) {
		return
	}

	if _, exists := shard.entries[st.DeviceID]; exists {
		return
	}

	shard.entries[st.DeviceID] = &deviceEntry{
		partition: st.Partition,
		state:     st,
	}
}

// Remove drops a single device's record, returning the final snapshot if
// one existed.
func (s *Store) Remove(deviceID string) (models.DeviceState, bool) {
	shard := s.shardFor(deviceID)

	shard.mu.Lock()
	entry, ok := shard.entries[deviceID]
	delete(shard.entries, deviceID)
	shard.mu.Unlock()

	if !ok {
		return models.DeviceState{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.evicted = true

	return entry.state, true
}

// EvictPartition disowns a partition and drops all of its records,
// returning the snapshots that still carry unflushed mutations so the
// caller can persist them. Ownership is revoked first: mutations arriving
// during the handoff either complete before their record is collected or
// fail with ErrNotOwned, never vanish silently.
func (s *Store) EvictPartition(partition int32) []models.DeviceState {
	s.ownedMu.Lock()
	delete(s.owned, partition)
	s.ownedMu.Unlock()

	var dirty []models.DeviceState

	for _, shard := range s.shards {
		shard.mu.Lock()

		for id, entry := range shard.entries {
			if entry.partition != partition {
				continue
			}

			delete(shard.entries, id)

			entry.mu.Lock()

			entry.evicted = true
			if entry.dirty {
				dirty = append(dirty, entry.state)
			}

			entry.mu.Unlock()
		}

		shard.mu.Unlock()
	}

	return dirty
}

// MarkClean clears the dirty flag if the record has not been mutated
// since the given version was persisted.
func (s *Store) MarkClean(deviceID string, version uint64) {
	entry := s.lookup(deviceID)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.version == version {
		entry.dirty = false
	}
}

// DirtyStates returns snapshots of every record that still carries
// unflushed mutations.
func (s *Store) DirtyStates() []models.DeviceState {
	var dirty []models.DeviceState

	for _, shard := range s.shards {
		shard.mu.RLock()
		entries := make([]*deviceEntry, 0, len(shard.entries))

		for _, entry := range shard.entries {
			entries = append(entries, entry)
		}

		shard.mu.RUnlock()

		for _, entry := range entries {
			entry.mu.Lock()

			if entry.dirty && !entry.evicted {
				dirty = append(dirty, entry.state)
			}

			entry.mu.Unlock()
		}
	}

	return dirty
}

// OwnedDeviceIDs returns a snapshot of all device IDs currently held for
// owned partitions. Callers iterating the snapshot must tolerate devices
// being evicted before they get to them.
func (s *Store) OwnedDeviceIDs() []string {
	ids := make([]string, 0, s.approxLen())

	for _, shard := range s.shards {
		shard.mu.RLock()

		for id := range shard.entries {
			ids = append(ids, id)
		}

		shard.mu.RUnlock()
	}

	return ids
}

func (s *Store) approxLen() int {
	n := 0
	for _, shard := range s.shards {
		n += len(shard.entries)
	}

	return n
}

func (s *Store) shardFor(deviceID string) *storeShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))

	return s.shards[int(h.Sum32()%uint32(s.shardCount))] // #nosec G115 - shardCount is bounded
}

func (s *Store) lookup(deviceID string) *deviceEntry {
	shard := s.shardFor(deviceID)

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	return shard.entries[deviceID]
}

func (s *Store) lookupOrCreate(deviceID string, seed SeedFunc) (*deviceEntry, error) {
	shard := s.shardFor(deviceID)

	shard.mu.RLock()
	entry := shard.entries[deviceID]
	shard.mu.RUnlock()

	if entry != nil {
		return entry, nil
	}

	if seed == nil {
		return nil, ErrDeviceStateNotFound
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if entry = shard.entries[deviceID]; entry != nil {
		return entry, nil
	}

	st := seed()

	// Ownership is re-checked under the shard lock: EvictPartition marks
	// only entries that already exist, so an insert racing a handoff would
	// otherwise create a record the eviction can never collect.
	if !s.IsOwned(st.Partition) {
		return nil, ErrNotOwned
	}

	entry = &deviceEntry{
		partition: st.Partition,
		state:     st,
	}
	shard.entries[deviceID] = entry

	return entry, nil
}
