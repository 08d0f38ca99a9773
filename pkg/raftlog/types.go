package raftlog

import "github.com/hashicorp/raft"

// LogID identifies a single Raft log entry by (term, index), ordered
// term-then-index. LeaderID is the field snapshot ids embed as their
// leader part; a raft.Log carries no proposer, so LogIDs decoded from
// applied entries leave it empty and their snapshot ids start with "-".
type LogID struct {
	Term     uint64
	Index    uint64
	LeaderID string
}

// Less reports whether l sorts strictly before other under (term, index)
// ordering.
func (l LogID) Less(other LogID) bool {
	if l.Term != other.Term {
		return l.Term < other.Term
	}
	return l.Index < other.Index
}

// Vote is the durable record of the term and candidate a node has
// endorsed. hashicorp/raft itself persists vote term/candidate
// through StableStore.Set/SetUint64 using its own internal keys; Vote is
// a separate typed record that SaveVote/ReadVote keep under their own
// "vote" key, so callers and tests can reason about it directly instead
// of raw key/value pairs. It is not read from or written to raft's keys.
type Vote struct {
	Term      uint64
	VotedFor  raft.ServerID
	Committed bool
}

// LogState reports the purge watermark and log tail together.
type LogState struct {
	LastPurgedLogID *LogID
	LastLogID       *LogID
}
