// Package statemachine holds the replicated KV map: committed Raft log
// entries are applied to it exactly once and in order, and the snapshot
// codec in codec.go turns the map into durable snapshot bytes and back.
package statemachine

import "github.com/kvcluster/raftkv/pkg/raftlog"

// CommandType discriminates the three payload kinds: Blank (no
// state change, used as a no-op/read-barrier entry), Normal (a KV write),
// and Membership (a marker recording a committed configuration change).
// Membership exists as an explicit command because hashicorp/raft never
// calls FSM.Apply for its own LogConfiguration entries, so the state
// machine has no other way to observe a configuration change.
type CommandType string

const (
	CommandBlank      CommandType = "blank"
	CommandNormal     CommandType = "normal"
	CommandMembership CommandType = "membership"
)

// SetRequest is the Normal payload: an upsert of key to value.
type SetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MembershipConfig mirrors raft.Configuration's voter/learner address map,
// the shape pkg/cluster hands to the state machine when a configuration
// change commits.
type MembershipConfig struct {
	Voters   map[string]string `json:"voters"`
	Learners map[string]string `json:"learners"`
}

// Command is the single payload type ever appended as a raft.Log's Data,
// tagged by Type so Apply can dispatch on it. Only one of Set/Membership
// is populated, matching Type.
type Command struct {
	Type       CommandType       `json:"type"`
	Set        *SetRequest       `json:"set,omitempty"`
	Membership *MembershipConfig `json:"membership,omitempty"`
}

// Response is what applying a single entry returns: a Normal command
// returns the just-set value, Blank and Membership return no value.
type Response struct {
	Value *string
}

// StoredMembership anchors a MembershipConfig to the log entry that
// committed it, so the last known membership always traces back to a
// specific point in the replicated log.
type StoredMembership struct {
	LogID  raftlog.LogID
	Config MembershipConfig
}

// StateMachineData is the full in-memory state: the applied watermark,
// the most recent membership, and the KV map itself.
type StateMachineData struct {
	LastAppliedLogID *raftlog.LogID
	LastMembership   *StoredMembership
	KVs              map[string]string
}

// SnapshotMeta identifies a stored snapshot: the log position it was
// taken at, the membership in effect then, and a per-node-lifetime unique
// id.
type SnapshotMeta struct {
	LastLogID      *raftlog.LogID
	LastMembership *StoredMembership
	SnapshotID     string
}

// StoredSnapshot is the persisted unit: meta plus the serialized KV map.
type StoredSnapshot struct {
	Meta SnapshotMeta
	Data []byte
}
