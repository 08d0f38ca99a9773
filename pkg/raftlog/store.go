// Package raftlog provides durable, ordered storage of Raft log entries
// plus the vote, committed watermark, and purge watermark scalars, over
// the shared embedded engine (pkg/storage).
package raftlog

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hashicorp/raft"
	"go.etcd.io/bbolt"

	"github.com/kvcluster/raftkv/pkg/raftkverrors"
	"github.com/kvcluster/raftkv/pkg/storage"
)

// Store implements raft.LogStore and raft.StableStore over a shared
// storage.Engine. One Store instance serves both interfaces for a single
// Raft node.
type Store struct {
	engine *storage.Engine

	// mu serializes multi-transaction sequences (purge, truncate) against
	// appends; a single bbolt transaction only covers one call.
	mu sync.Mutex
}

var (
	_ raft.LogStore    = (*Store)(nil)
	_ raft.StableStore = (*Store)(nil)
)

// New wraps engine as a Raft log/stable store.
func New(engine *storage.Engine) *Store {
	return &Store{engine: engine}
}

// FirstIndex returns the lowest index present in the log, or 0 if empty.
func (s *Store) FirstIndex() (uint64, error) {
	var first uint64
	err := s.engine.View(storage.BucketLogs, func(b *bbolt.Bucket) error {
		k, _ := b.Cursor().First()
		if k != nil {
			first = indexFromKey(k)
		}
		return nil
	})
	if err != nil {
		return 0, raftkverrors.New(raftkverrors.ReadLogs, raftkverrors.SubjectLog, raftkverrors.VerbRead, err)
	}
	return first, nil
}

// LastIndex returns the highest index present in the log, or 0 if empty.
func (s *Store) LastIndex() (uint64, error) {
	var last uint64
	err := s.engine.View(storage.BucketLogs, func(b *bbolt.Bucket) error {
		k, _ := b.Cursor().Last()
		if k != nil {
			last = indexFromKey(k)
		}
		return nil
	})
	if err != nil {
		return 0, raftkverrors.New(raftkverrors.ReadLogs, raftkverrors.SubjectLog, raftkverrors.VerbRead, err)
	}
	return last, nil
}

// GetLog retrieves the entry at index into out.
func (s *Store) GetLog(index uint64, out *raft.Log) error {
	var found bool
	err := s.engine.View(storage.BucketLogs, func(b *bbolt.Bucket) error {
		data := b.Get(indexKey(index))
		if data == nil {
			return nil
		}
		found = true
		return decodeEntry(data, out)
	})
	if err != nil {
		return raftkverrors.New(raftkverrors.ReadLogs, raftkverrors.SubjectLog, raftkverrors.VerbRead, err)
	}
	if !found {
		return raft.ErrLogNotFound
	}
	return nil
}

// StoreLog appends a single entry. See StoreLogs for the durability
// contract.
func (s *Store) StoreLog(l *raft.Log) error {
	return s.StoreLogs([]*raft.Log{l})
}

// StoreLogs appends entries under their big-endian index keys in a single
// bbolt transaction. bbolt commits (and fsyncs) the whole batch atomically,
// so the caller observes durability only once this returns nil: completion
// is never signaled before durability is established, and a whole batch
// flushes together. Entries are trusted to be contiguous with the
// existing tail; the Raft engine enforces that.
func (s *Store) StoreLogs(logs []*raft.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.engine.Update(storage.BucketLogs, func(b *bbolt.Bucket) error {
		for _, l := range logs {
			data, err := encodeEntry(l)
			if err != nil {
				return fmt.Errorf("encode entry %d: %w", l.Index, err)
			}
			if err := b.Put(indexKey(l.Index), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return raftkverrors.New(raftkverrors.WriteLogs, raftkverrors.SubjectLog, raftkverrors.VerbWrite, err)
	}
	return nil
}

// DeleteRange removes every entry with min <= index <= max. Raft calls
// this both to truncate an uncommitted suffix a new leader overrides
// (a range ending at the tail) and to compact the committed prefix
// after a snapshot (a range starting at the head, with trailing entries
// retained). The compaction case records the purge watermark before the
// entries go away; otherwise the boundary would be lost across restarts.
func (s *Store) DeleteRange(min, max uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.firstIndexLocked()
	if err != nil {
		return err
	}
	last, err := s.lastIndexLocked()
	if err != nil {
		return err
	}
	if first != 0 && min <= first && max < last {
		var entry raft.Log
		if err := s.GetLog(max, &entry); err == nil {
			if err := s.saveLastPurgedLocked(LogID{Term: entry.Term, Index: entry.Index}); err != nil {
				return err
			}
		}
	}
	return s.deleteRangeLocked(min, max)
}

func (s *Store) deleteRangeLocked(min, max uint64) error {
	err := s.engine.Update(storage.BucketLogs, func(b *bbolt.Bucket) error {
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(indexKey(min)); k != nil; k, _ = c.Next() {
			idx := indexFromKey(k)
			if idx > max {
				break
			}
			// Copy: cursor-returned slices are only valid within the tx.
			cp := make([]byte, len(k))
			copy(cp, k)
			keys = append(keys, cp)
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return raftkverrors.New(raftkverrors.WriteLogs, raftkverrors.SubjectLog, raftkverrors.VerbWrite, err)
	}
	return nil
}

// Truncate discards every entry with index >= from.Index. It
// is DeleteRange expressed as "from here to the tail", named separately so
// callers read intent without reasoning about what max=^uint64(0) means.
func (s *Store) Truncate(from LogID) error {
	last, err := s.LastIndex()
	if err != nil {
		return err
	}
	if last < from.Index {
		return nil
	}
	return s.DeleteRange(from.Index, last)
}

// Purge removes every entry with index <= logID.Index and persists
// last_purged_log_id. DeleteRange records the watermark only for a
// prefix range that leaves trailing entries; Purge always records it
// (including when the whole log is purged) so GetLogState can report it,
// keeping the persisted prefix boundary consistent across restarts.
func (s *Store) Purge(logID LogID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.firstIndexLocked()
	if err != nil {
		return err
	}
	if first != 0 {
		if err := s.deleteRangeLocked(first, logID.Index); err != nil {
			return err
		}
	}

	return s.saveLastPurgedLocked(logID)
}

func (s *Store) saveLastPurgedLocked(logID LogID) error {
	data, err := json.Marshal(&logID)
	if err != nil {
		return raftkverrors.New(raftkverrors.WriteLogs, raftkverrors.SubjectStore, raftkverrors.VerbWrite, err)
	}
	err = s.engine.Update(storage.BucketStore, func(b *bbolt.Bucket) error {
		return b.Put([]byte(keyLastPurgedLog), data)
	})
	if err != nil {
		return raftkverrors.New(raftkverrors.StorageWrite, raftkverrors.SubjectStore, raftkverrors.VerbWrite, err)
	}
	return nil
}

func (s *Store) lastIndexLocked() (uint64, error) {
	var last uint64
	err := s.engine.View(storage.BucketLogs, func(b *bbolt.Bucket) error {
		k, _ := b.Cursor().Last()
		if k != nil {
			last = indexFromKey(k)
		}
		return nil
	})
	if err != nil {
		return 0, raftkverrors.New(raftkverrors.ReadLogs, raftkverrors.SubjectLog, raftkverrors.VerbRead, err)
	}
	return last, nil
}

func (s *Store) firstIndexLocked() (uint64, error) {
	var first uint64
	err := s.engine.View(storage.BucketLogs, func(b *bbolt.Bucket) error {
		k, _ := b.Cursor().First()
		if k != nil {
			first = indexFromKey(k)
		}
		return nil
	})
	if err != nil {
		return 0, raftkverrors.New(raftkverrors.ReadLogs, raftkverrors.SubjectLog, raftkverrors.VerbRead, err)
	}
	return first, nil
}

// LastPurgedLogID returns the most recently persisted purge watermark, or
// nil if purge has never been called.
func (s *Store) LastPurgedLogID() (*LogID, error) {
	var id *LogID
	err := s.engine.View(storage.BucketStore, func(b *bbolt.Bucket) error {
		data := b.Get([]byte(keyLastPurgedLog))
		if data == nil {
			return nil
		}
		var decoded LogID
		if err := json.Unmarshal(data, &decoded); err != nil {
			return err
		}
		id = &decoded
		return nil
	})
	if err != nil {
		return nil, raftkverrors.New(raftkverrors.ReadLogs, raftkverrors.SubjectStore, raftkverrors.VerbRead, err)
	}
	return id, nil
}

// GetLogState reports the purge watermark and the last log id, where the
// last log id is the greater of the log tail and the purge watermark.
func (s *Store) GetLogState() (LogState, error) {
	purged, err := s.LastPurgedLogID()
	if err != nil {
		return LogState{}, err
	}

	last, err := s.LastIndex()
	if err != nil {
		return LogState{}, err
	}

	state := LogState{LastPurgedLogID: purged}
	if last == 0 {
		state.LastLogID = purged
		return state, nil
	}

	var entry raft.Log
	if err := s.GetLog(last, &entry); err != nil {
		return LogState{}, raftkverrors.New(raftkverrors.ReadLogs, raftkverrors.SubjectLog, raftkverrors.VerbRead, err)
	}
	tail := &LogID{Term: entry.Term, Index: entry.Index}

	if purged != nil && purged.Index > tail.Index {
		state.LastLogID = purged
	} else {
		state.LastLogID = tail
	}
	return state, nil
}

// Set implements raft.StableStore's generic scalar store. hashicorp/raft
// uses this (and SetUint64 below) internally to persist its own current
// term / last-vote-candidate keys; both land in the same "store" bucket
// as this core's own scalars, without hashicorp/raft needing to know
// it's bbolt underneath.
func (s *Store) Set(key, val []byte) error {
	err := s.engine.Update(storage.BucketStore, func(b *bbolt.Bucket) error {
		return b.Put(key, val)
	})
	if err != nil {
		return raftkverrors.New(raftkverrors.WriteVote, raftkverrors.SubjectStore, raftkverrors.VerbWrite, err)
	}
	return nil
}

// Get implements raft.StableStore's generic scalar read.
func (s *Store) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.engine.View(storage.BucketStore, func(b *bbolt.Bucket) error {
		data := b.Get(key)
		if data != nil {
			val = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, raftkverrors.New(raftkverrors.StorageRead, raftkverrors.SubjectStore, raftkverrors.VerbRead, err)
	}
	if val == nil {
		return nil, fmt.Errorf("not found")
	}
	return val, nil
}

// SetUint64 implements raft.StableStore's typed scalar store.
func (s *Store) SetUint64(key []byte, val uint64) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.Set(key, b)
}

// GetUint64 implements raft.StableStore's typed scalar read.
func (s *Store) GetUint64(key []byte) (uint64, error) {
	data, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	var val uint64
	if err := json.Unmarshal(data, &val); err != nil {
		return 0, err
	}
	return val, nil
}

// SaveVote persists vote under the fixed "vote" scalar key. Monotonic: a
// newer vote replaces an older one and ReadVote must never see a
// regression, which callers enforce by only ever calling SaveVote with a
// vote they've already checked is >= the current one (raft itself
// maintains this invariant for its own writes through Set/SetUint64;
// SaveVote/ReadVote exist for the core's own direct testability of the
// same durability guarantee).
func (s *Store) SaveVote(v Vote) error {
	data, err := json.Marshal(&v)
	if err != nil {
		return raftkverrors.New(raftkverrors.WriteVote, raftkverrors.SubjectVote, raftkverrors.VerbWrite, err)
	}
	err = s.engine.Update(storage.BucketStore, func(b *bbolt.Bucket) error {
		return b.Put([]byte(keyVote), data)
	})
	if err != nil {
		return raftkverrors.New(raftkverrors.WriteVote, raftkverrors.SubjectVote, raftkverrors.VerbWrite, err)
	}
	return nil
}

// ReadVote returns the most recently persisted vote, or (Vote{}, false) if
// none has ever been saved.
func (s *Store) ReadVote() (Vote, bool, error) {
	var vote Vote
	var found bool
	err := s.engine.View(storage.BucketStore, func(b *bbolt.Bucket) error {
		data := b.Get([]byte(keyVote))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &vote)
	})
	if err != nil {
		return Vote{}, false, raftkverrors.New(raftkverrors.StorageRead, raftkverrors.SubjectVote, raftkverrors.VerbRead, err)
	}
	return vote, found, nil
}

// SaveCommitted persists the committed watermark. Advisory only: the
// Raft engine recovers without it, but a fresh restart can skip
// re-deriving it from the log when present.
func (s *Store) SaveCommitted(id LogID) error {
	data, err := json.Marshal(&id)
	if err != nil {
		return raftkverrors.New(raftkverrors.StorageWrite, raftkverrors.SubjectStore, raftkverrors.VerbWrite, err)
	}
	err = s.engine.Update(storage.BucketStore, func(b *bbolt.Bucket) error {
		return b.Put([]byte(keyCommitted), data)
	})
	if err != nil {
		return raftkverrors.New(raftkverrors.StorageWrite, raftkverrors.SubjectStore, raftkverrors.VerbWrite, err)
	}
	return nil
}

// ReadCommitted returns the persisted committed watermark, or nil if one
// has never been saved.
func (s *Store) ReadCommitted() (*LogID, error) {
	var id *LogID
	err := s.engine.View(storage.BucketStore, func(b *bbolt.Bucket) error {
		data := b.Get([]byte(keyCommitted))
		if data == nil {
			return nil
		}
		var decoded LogID
		if err := json.Unmarshal(data, &decoded); err != nil {
			return err
		}
		id = &decoded
		return nil
	})
	if err != nil {
		return nil, raftkverrors.New(raftkverrors.StorageRead, raftkverrors.SubjectStore, raftkverrors.VerbRead, err)
	}
	return id, nil
}

// TryGetLogEntries returns the entries whose index falls in [min, max],
// in ascending order. It scans forward from min and stops once max is
// crossed, surfacing a decode failure as ReadLogs.
func (s *Store) TryGetLogEntries(min, max uint64) ([]raft.Log, error) {
	var out []raft.Log
	err := s.engine.View(storage.BucketLogs, func(b *bbolt.Bucket) error {
		c := b.Cursor()
		for k, v := c.Seek(indexKey(min)); k != nil; k, v = c.Next() {
			idx := indexFromKey(k)
			if idx > max {
				break
			}
			var entry raft.Log
			if err := decodeEntry(v, &entry); err != nil {
				return err
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, raftkverrors.New(raftkverrors.ReadLogs, raftkverrors.SubjectLog, raftkverrors.VerbRead, err)
	}
	return out, nil
}
