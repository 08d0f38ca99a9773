package statemachine

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
	"go.etcd.io/bbolt"

	"github.com/kvcluster/raftkv/pkg/metrics"
	"github.com/kvcluster/raftkv/pkg/raftkverrors"
	"github.com/kvcluster/raftkv/pkg/raftlog"
	"github.com/kvcluster/raftkv/pkg/storage"
)

// snapshotKey is the fixed scalar key the stored snapshot lives under in
// the "store" bucket.
const snapshotKey = "snapshot"

// Store is the replicated state machine: the KV map behind a
// sync.RWMutex. Apply takes the writer role; Get takes the reader role.
// The Raft engine guarantees Apply is always called single-threaded and
// sequentially, so Store only arbitrates against concurrent readers,
// never concurrent writers.
type Store struct {
	mu sync.RWMutex

	data StateMachineData

	// snapshotIdx disambiguates otherwise-identical snapshot ids within
	// this process's lifetime and is never persisted across restart.
	snapshotIdx uint64

	engine *storage.Engine
}

var (
	_ raft.FSM         = (*Store)(nil)
	_ raft.BatchingFSM = (*Store)(nil)
)

// New constructs a Store over engine, hydrating from any persisted
// snapshot at startup. The Raft engine replays the log suffix past the
// snapshot's position once it takes over.
func New(engine *storage.Engine) (*Store, error) {
	s := &Store{
		engine: engine,
		data:   StateMachineData{KVs: make(map[string]string)},
	}

	stored, err := s.readPersistedSnapshot()
	if err != nil {
		return nil, err
	}
	if stored != nil {
		kvs, err := DecodeSnapshot(stored.Data)
		if err != nil {
			return nil, fmt.Errorf("decode persisted snapshot: %w", err)
		}
		s.data.KVs = kvs
		s.data.LastAppliedLogID = stored.Meta.LastLogID
		s.data.LastMembership = stored.Meta.LastMembership
	}
	return s, nil
}

// AppliedState reports the applied watermark and current membership.
// Cheap: a snapshot of in-memory fields under the reader role.
func (s *Store) AppliedState() (*raftlog.LogID, *StoredMembership) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.LastAppliedLogID, s.data.LastMembership
}

// Get looks up key under the reader role. This is a local-only read: it
// may be stale on followers.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.KVs[key]
	return v, ok
}

// Len reports the number of keys currently held, for metrics collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.KVs)
}

// ApplyOne applies a single committed entry and returns its Response, the
// unbatched apply path. Used directly by tests and by Apply below.
func (s *Store) ApplyOne(logID raftlog.LogID, cmd Command) Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(logID, cmd)
}

func (s *Store) applyLocked(logID raftlog.LogID, cmd Command) Response {
	s.data.LastAppliedLogID = &logID

	switch cmd.Type {
	case CommandNormal:
		if cmd.Set == nil {
			return Response{}
		}
		s.data.KVs[cmd.Set.Key] = cmd.Set.Value
		v := cmd.Set.Value
		return Response{Value: &v}
	case CommandMembership:
		if cmd.Membership == nil {
			return Response{}
		}
		s.data.LastMembership = &StoredMembership{LogID: logID, Config: *cmd.Membership}
		return Response{}
	case CommandBlank:
		return Response{}
	default:
		return Response{}
	}
}

// decodeLog converts a raft.Log into the (LogID, Command) pair applyLocked
// expects. Non-command log types (e.g. raft.LogConfiguration,
// raft.LogNoop) never reach the FSM's Apply, but raft.LogBarrier does and
// carries no payload, so it's treated the same as CommandBlank.
func decodeLog(l *raft.Log) (raftlog.LogID, Command, error) {
	id := raftlog.LogID{Term: l.Term, Index: l.Index}
	if l.Type != raft.LogCommand || len(l.Data) == 0 {
		return id, Command{Type: CommandBlank}, nil
	}
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return id, Command{}, fmt.Errorf("decode command at index %d: %w", l.Index, err)
	}
	return id, cmd, nil
}

// Apply implements raft.FSM. It is only ever invoked by the Raft engine
// for committed entries, single-threaded and in order, so the returned
// interface{} (a Response) is deterministic given identical entry
// sequences.
func (s *Store) Apply(l *raft.Log) interface{} {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ApplyDuration)

	id, cmd, err := decodeLog(l)
	if err != nil {
		return err
	}
	return s.ApplyOne(id, cmd)
}

// ApplyBatch implements raft.BatchingFSM, applying every entry in order
// under a single lock acquisition and returning one Response per entry,
// in entry order.
func (s *Store) ApplyBatch(logs []*raft.Log) []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]interface{}, len(logs))
	for i, l := range logs {
		id, cmd, err := decodeLog(l)
		if err != nil {
			out[i] = err
			continue
		}
		out[i] = s.applyLocked(id, cmd)
	}
	return out
}

// GetSnapshotBuilder increments snapshotIdx and returns a builder over
// the current state.
// Clone-on-build is acceptable because Apply is serialized with builder
// construction by the same mutex.
func (s *Store) GetSnapshotBuilder() *Builder {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotIdx++

	kvs := make(map[string]string, len(s.data.KVs))
	for k, v := range s.data.KVs {
		kvs[k] = v
	}

	return &Builder{
		store:      s,
		idx:        s.snapshotIdx,
		kvs:        kvs,
		lastLogID:  s.data.LastAppliedLogID,
		lastMember: s.data.LastMembership,
	}
}

// Builder is the snapshot-building capability: a point-in-time copy of
// the KV map plus enough metadata to name and persist the resulting
// StoredSnapshot.
type Builder struct {
	store      *Store
	idx        uint64
	kvs        map[string]string
	lastLogID  *raftlog.LogID
	lastMember *StoredMembership
}

// Build serializes the captured state, persists it under the fixed
// "snapshot" key, and returns the StoredSnapshot. Called either directly
// or via Store.BuildSnapshot.
func (b *Builder) Build() (*StoredSnapshot, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SnapshotBuildDuration)

	data, err := EncodeSnapshot(b.kvs)
	if err != nil {
		return nil, raftkverrors.New(raftkverrors.WriteSnapshot, raftkverrors.SubjectSnapshot, raftkverrors.VerbWrite, err)
	}

	meta := SnapshotMeta{
		LastLogID:      b.lastLogID,
		LastMembership: b.lastMember,
		SnapshotID:     snapshotID(b.lastLogID, b.idx),
	}
	stored := &StoredSnapshot{Meta: meta, Data: data}

	if err := b.store.persistSnapshot(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// snapshotID computes "{leader_id}-{index}-{snapshot_idx}", or
// "--{snapshot_idx}" when no entry has been applied yet.
func snapshotID(lastLogID *raftlog.LogID, idx uint64) string {
	if lastLogID == nil {
		return fmt.Sprintf("--%d", idx)
	}
	return fmt.Sprintf("%s-%d-%d", lastLogID.LeaderID, lastLogID.Index, idx)
}

// BuildSnapshot is the convenience form of GetSnapshotBuilder followed
// by Build, for callers that don't need the intermediate capability.
func (s *Store) BuildSnapshot() (*StoredSnapshot, error) {
	return s.GetSnapshotBuilder().Build()
}

// BeginReceivingSnapshot returns an empty growable byte sink, the
// destination raft.FSM.Restore's io.ReadCloser is copied into before
// InstallSnapshot is called.
func (s *Store) BeginReceivingSnapshot() *SnapshotSink {
	return &SnapshotSink{}
}

// InstallSnapshot deserializes bytes into a fresh KV map and atomically
// swaps it in alongside the accompanying meta, persisting the result
// under "snapshot".
func (s *Store) InstallSnapshot(meta SnapshotMeta, data []byte) error {
	kvs, err := DecodeSnapshot(data)
	if err != nil {
		return raftkverrors.NewSnapshot(raftkverrors.ReadSnapshot, raftkverrors.VerbRead, meta.SnapshotID, err)
	}

	s.mu.Lock()
	s.data.KVs = kvs
	s.data.LastAppliedLogID = meta.LastLogID
	s.data.LastMembership = meta.LastMembership
	s.mu.Unlock()

	return s.persistSnapshot(&StoredSnapshot{Meta: meta, Data: data})
}

// GetCurrentSnapshot returns the persisted StoredSnapshot, if any.
func (s *Store) GetCurrentSnapshot() (*StoredSnapshot, error) {
	return s.readPersistedSnapshot()
}

func (s *Store) persistSnapshot(stored *StoredSnapshot) error {
	envelope, err := json.Marshal(stored)
	if err != nil {
		return raftkverrors.NewSnapshot(raftkverrors.WriteSnapshot, raftkverrors.VerbWrite, stored.Meta.SnapshotID, err)
	}
	err = s.engine.Update(storage.BucketStore, func(b *bbolt.Bucket) error {
		return b.Put([]byte(snapshotKey), envelope)
	})
	if err != nil {
		return raftkverrors.NewSnapshot(raftkverrors.WriteSnapshot, raftkverrors.VerbWrite, stored.Meta.SnapshotID, err)
	}
	return nil
}

func (s *Store) readPersistedSnapshot() (*StoredSnapshot, error) {
	var envelope []byte
	err := s.engine.View(storage.BucketStore, func(b *bbolt.Bucket) error {
		v := b.Get([]byte(snapshotKey))
		if v != nil {
			envelope = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, raftkverrors.New(raftkverrors.ReadSnapshot, raftkverrors.SubjectSnapshot, raftkverrors.VerbRead, err)
	}
	if envelope == nil {
		return nil, nil
	}

	var stored StoredSnapshot
	if err := json.Unmarshal(envelope, &stored); err != nil {
		return nil, raftkverrors.New(raftkverrors.ReadSnapshot, raftkverrors.SubjectSnapshot, raftkverrors.VerbRead, err)
	}
	return &stored, nil
}

// Snapshot implements raft.FSM, adapting BuildSnapshot to the
// raft.FSMSnapshot interface the library expects.
func (s *Store) Snapshot() (raft.FSMSnapshot, error) {
	stored, err := s.BuildSnapshot()
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{stored: stored}, nil
}

// Restore implements raft.FSM, reading the full snapshot byte stream and
// installing it wholesale. Raft only ever calls this with a complete
// snapshot, never a partial one.
func (s *Store) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	sink := s.BeginReceivingSnapshot()
	if _, err := io.Copy(sink, rc); err != nil {
		return fmt.Errorf("read snapshot stream: %w", err)
	}

	var stored StoredSnapshot
	if err := json.Unmarshal(sink.Bytes(), &stored); err != nil {
		return fmt.Errorf("decode snapshot envelope: %w", err)
	}
	return s.InstallSnapshot(stored.Meta, stored.Data)
}
