package raftlog

import (
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvcluster/raftkv/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	engine, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return New(engine)
}

func appendEntries(t *testing.T, s *Store, from, to uint64) {
	t.Helper()
	var logs []*raft.Log
	for i := from; i <= to; i++ {
		logs = append(logs, &raft.Log{Index: i, Term: 1, Type: raft.LogCommand, Data: []byte("v")})
	}
	require.NoError(t, s.StoreLogs(logs))
}

// Appending a contiguous run then reading any subrange back must return
// exactly that slice.
func TestTryGetLogEntries_ReturnsAppendedSlice(t *testing.T) {
	s := newTestStore(t)
	appendEntries(t, s, 1, 10)

	entries, err := s.TryGetLogEntries(3, 7)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.EqualValues(t, 3+i, e.Index)
	}
}

func TestFirstLastIndex_EmptyLog(t *testing.T) {
	s := newTestStore(t)
	first, err := s.FirstIndex()
	require.NoError(t, err)
	assert.Zero(t, first)

	last, err := s.LastIndex()
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestGetLog_NotFound(t *testing.T) {
	s := newTestStore(t)
	var out raft.Log
	err := s.GetLog(1, &out)
	assert.ErrorIs(t, err, raft.ErrLogNotFound)
}

// After a purge, the watermark reports the purged position, the purged
// prefix is unreadable, and the tail past it is untouched.
func TestPurge_UpdatesWatermarkAndDropsPrefix(t *testing.T) {
	s := newTestStore(t)
	appendEntries(t, s, 1, 10)

	require.NoError(t, s.Purge(LogID{Term: 1, Index: 7}))

	state, err := s.GetLogState()
	require.NoError(t, err)
	require.NotNil(t, state.LastPurgedLogID)
	assert.EqualValues(t, 7, state.LastPurgedLogID.Index)
	require.NotNil(t, state.LastLogID)
	assert.EqualValues(t, 10, state.LastLogID.Index)

	remaining, err := s.TryGetLogEntries(0, 7)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	rest, err := s.TryGetLogEntries(8, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

// Truncating at an index drops that entry and everything after it while
// leaving the prefix unchanged.
func TestTruncate_DropsSuffixKeepsPrefix(t *testing.T) {
	s := newTestStore(t)
	appendEntries(t, s, 1, 10)

	require.NoError(t, s.Truncate(LogID{Index: 5}))

	after, err := s.TryGetLogEntries(1, 10)
	require.NoError(t, err)
	require.Len(t, after, 4)
	for i, e := range after {
		assert.EqualValues(t, i+1, e.Index)
	}

	last, err := s.LastIndex()
	require.NoError(t, err)
	assert.EqualValues(t, 4, last)
}

// ReadVote returns the most recently saved vote, including across a
// restart from the same database path.
func TestSaveVote_ReadVote_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	engine, err := storage.Open(dir)
	require.NoError(t, err)

	s := New(engine)
	require.NoError(t, s.SaveVote(Vote{Term: 1, VotedFor: "n1"}))
	require.NoError(t, s.SaveVote(Vote{Term: 2, VotedFor: "n2"}))
	require.NoError(t, engine.Close())

	reopened, err := storage.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	s2 := New(reopened)
	vote, ok, err := s2.ReadVote()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, vote.Term)
	assert.EqualValues(t, "n2", vote.VotedFor)
}

func TestReadVote_NoneSaved(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.ReadVote()
	require.NoError(t, err)
	assert.False(t, ok)
}

// Once StoreLogs has returned, the batch is durable: a reopen of the
// same database sees every appended entry.
func TestStoreLogs_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	engine, err := storage.Open(dir)
	require.NoError(t, err)

	s := New(engine)
	appendEntries(t, s, 1, 5)
	require.NoError(t, engine.Close())

	reopened, err := storage.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := New(reopened).TryGetLogEntries(1, 5)
	require.NoError(t, err)
	require.Len(t, entries, 5)
}

// Purging the whole log leaves the last log id at the watermark:
// the log's logical tail is remembered even though no entry remains.
func TestGetLogState_EmptyLogFallsBackToWatermark(t *testing.T) {
	s := newTestStore(t)
	appendEntries(t, s, 1, 10)

	require.NoError(t, s.Purge(LogID{Term: 1, Index: 10}))

	state, err := s.GetLogState()
	require.NoError(t, err)
	require.NotNil(t, state.LastLogID)
	assert.EqualValues(t, 10, state.LastLogID.Index)

	last, err := s.LastIndex()
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestSaveCommitted_ReadCommitted_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	engine, err := storage.Open(dir)
	require.NoError(t, err)

	s := New(engine)
	require.NoError(t, s.SaveCommitted(LogID{Term: 2, Index: 9}))
	require.NoError(t, engine.Close())

	reopened, err := storage.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	committed, err := New(reopened).ReadCommitted()
	require.NoError(t, err)
	require.NotNil(t, committed)
	assert.EqualValues(t, 2, committed.Term)
	assert.EqualValues(t, 9, committed.Index)
}

func TestReadCommitted_NoneSaved(t *testing.T) {
	s := newTestStore(t)
	committed, err := s.ReadCommitted()
	require.NoError(t, err)
	assert.Nil(t, committed)
}

// A DeleteRange starting at the head of the log is a prefix compaction
// and must leave the purge watermark behind, exactly as an explicit
// Purge would.
func TestDeleteRange_PrefixCompactionRecordsWatermark(t *testing.T) {
	s := newTestStore(t)
	appendEntries(t, s, 1, 10)

	require.NoError(t, s.DeleteRange(1, 6))

	state, err := s.GetLogState()
	require.NoError(t, err)
	require.NotNil(t, state.LastPurgedLogID)
	assert.EqualValues(t, 6, state.LastPurgedLogID.Index)
	assert.EqualValues(t, 1, state.LastPurgedLogID.Term)

	first, err := s.FirstIndex()
	require.NoError(t, err)
	assert.EqualValues(t, 7, first)
}

// A suffix DeleteRange is a truncation, not a purge, and must not touch
// the watermark.
func TestDeleteRange_SuffixLeavesWatermarkAlone(t *testing.T) {
	s := newTestStore(t)
	appendEntries(t, s, 1, 10)

	require.NoError(t, s.DeleteRange(5, 10))

	state, err := s.GetLogState()
	require.NoError(t, err)
	assert.Nil(t, state.LastPurgedLogID)
}

func TestStableStore_SetUint64GetUint64(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetUint64([]byte("CurrentTerm"), 42))
	val, err := s.GetUint64([]byte("CurrentTerm"))
	require.NoError(t, err)
	assert.EqualValues(t, 42, val)
}
