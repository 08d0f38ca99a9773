package cluster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/raft"
	bbolt "go.etcd.io/bbolt"

	"github.com/kvcluster/raftkv/pkg/raftkverrors"
	"github.com/kvcluster/raftkv/pkg/storage"
)

// raftSnapshotKey is the scalar key the raft-facing snapshot envelope
// (raft.SnapshotMeta plus the bytes Persist wrote) is stored under.
// Distinct from statemachine's own "snapshot" key, which holds just the
// StoredSnapshot a fresh Store hydrates itself from on startup: this one
// gives raft's InstallSnapshot RPC and restart recovery a SnapshotStore
// to call List/Open against, persisted through the shared embedded
// engine instead of a directory of files.
const raftSnapshotKey = "raft_snapshot"

type persistedRaftSnapshot struct {
	Meta raft.SnapshotMeta
	Data []byte
}

// boltSnapshotStore implements raft.SnapshotStore over the shared
// storage.Engine. Only the single most recent snapshot is ever retained
// (the state machine keeps exactly one stored snapshot under a fixed
// key), so List never returns more than one entry.
type boltSnapshotStore struct {
	engine *storage.Engine
}

func newSnapshotStore(engine *storage.Engine) raft.SnapshotStore {
	return &boltSnapshotStore{engine: engine}
}

var _ raft.SnapshotStore = (*boltSnapshotStore)(nil)

// Create starts a new snapshot, returning a sink fsmSnapshot.Persist
// writes the serialized state machine into.
func (s *boltSnapshotStore) Create(version raft.SnapshotVersion, index, term uint64, configuration raft.Configuration, configurationIndex uint64, trans raft.Transport) (raft.SnapshotSink, error) {
	id := fmt.Sprintf("%d-%d-%d", term, index, time.Now().UnixNano())
	return &boltSnapshotSink{
		store: s,
		meta: raft.SnapshotMeta{
			Version:            version,
			ID:                 id,
			Index:              index,
			Term:               term,
			Configuration:      configuration,
			ConfigurationIndex: configurationIndex,
		},
	}, nil
}

// List returns the persisted snapshot's metadata, if any.
func (s *boltSnapshotStore) List() ([]*raft.SnapshotMeta, error) {
	stored, err := s.read()
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	meta := stored.Meta
	return []*raft.SnapshotMeta{&meta}, nil
}

// Open returns the persisted snapshot's bytes as a ReadCloser, for
// raft's InstallSnapshot RPC and restart recovery path.
func (s *boltSnapshotStore) Open(id string) (*raft.SnapshotMeta, io.ReadCloser, error) {
	stored, err := s.read()
	if err != nil {
		return nil, nil, err
	}
	if stored == nil || stored.Meta.ID != id {
		return nil, nil, fmt.Errorf("snapshot %s not found", id)
	}
	meta := stored.Meta
	return &meta, io.NopCloser(bytes.NewReader(stored.Data)), nil
}

func (s *boltSnapshotStore) persist(meta raft.SnapshotMeta, data []byte) error {
	envelope, err := json.Marshal(&persistedRaftSnapshot{Meta: meta, Data: data})
	if err != nil {
		return raftkverrors.NewSnapshot(raftkverrors.WriteSnapshot, raftkverrors.VerbWrite, meta.ID, err)
	}
	err = s.engine.Update(storage.BucketStore, func(b *bbolt.Bucket) error {
		return b.Put([]byte(raftSnapshotKey), envelope)
	})
	if err != nil {
		return raftkverrors.NewSnapshot(raftkverrors.WriteSnapshot, raftkverrors.VerbWrite, meta.ID, err)
	}
	return nil
}

func (s *boltSnapshotStore) read() (*persistedRaftSnapshot, error) {
	var envelope []byte
	err := s.engine.View(storage.BucketStore, func(b *bbolt.Bucket) error {
		v := b.Get([]byte(raftSnapshotKey))
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
	var stored persistedRaftSnapshot
	if err := json.Unmarshal(envelope, &stored); err != nil {
		return nil, raftkverrors.New(raftkverrors.ReadSnapshot, raftkverrors.SubjectSnapshot, raftkverrors.VerbRead, err)
	}
	return &stored, nil
}

// boltSnapshotSink implements raft.SnapshotSink, buffering the bytes
// fsmSnapshot.Persist writes and persisting them on Close.
type boltSnapshotSink struct {
	store *boltSnapshotStore
	meta  raft.SnapshotMeta
	buf   bytes.Buffer
}

func (s *boltSnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *boltSnapshotSink) ID() string { return s.meta.ID }

func (s *boltSnapshotSink) Cancel() error { return nil }

func (s *boltSnapshotSink) Close() error {
	s.meta.Size = int64(s.buf.Len())
	return s.store.persist(s.meta, s.buf.Bytes())
}
