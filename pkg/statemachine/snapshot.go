package statemachine

import (
	"bytes"
	"encoding/json"

	"github.com/hashicorp/raft"
)

// fsmSnapshot adapts a StoredSnapshot to the raft.FSMSnapshot interface
// the consensus engine hands to its snapshot sink.
type fsmSnapshot struct {
	stored *StoredSnapshot
}

// Persist writes the snapshot envelope to sink and closes it, calling
// Cancel on any failure.
func (f *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		envelope, err := json.Marshal(f.stored)
		if err != nil {
			return err
		}
		if _, err := sink.Write(envelope); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release is a no-op: the captured StoredSnapshot holds no resources
// beyond a byte slice.
func (f *fsmSnapshot) Release() {}

// SnapshotSink is the empty growable byte sink BeginReceivingSnapshot
// returns. It implements io.Writer so callers
// can io.Copy a restore stream into it before handing the accumulated
// bytes to InstallSnapshot.
type SnapshotSink struct {
	buf bytes.Buffer
}

func (s *SnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }

// Bytes returns the accumulated snapshot bytes.
func (s *SnapshotSink) Bytes() []byte { return s.buf.Bytes() }
