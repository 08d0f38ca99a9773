package raftlog

import (
	"encoding/json"
	"time"

	"github.com/hashicorp/raft"
)

// entryRecord is the on-disk form of a raft.Log, serialized as JSON: a
// self-describing codec that stays stable as fields are added.
type entryRecord struct {
	Index      uint64       `json:"index"`
	Term       uint64       `json:"term"`
	Type       raft.LogType `json:"type"`
	Data       []byte       `json:"data"`
	Extensions []byte       `json:"extensions,omitempty"`
	AppendedAt time.Time    `json:"appended_at"`
}

func encodeEntry(l *raft.Log) ([]byte, error) {
	rec := entryRecord{
		Index:      l.Index,
		Term:       l.Term,
		Type:       l.Type,
		Data:       l.Data,
		Extensions: l.Extensions,
		AppendedAt: l.AppendedAt,
	}
	return json.Marshal(&rec)
}

func decodeEntry(b []byte, out *raft.Log) error {
	var rec entryRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	out.Index = rec.Index
	out.Term = rec.Term
	out.Type = rec.Type
	out.Data = rec.Data
	out.Extensions = rec.Extensions
	out.AppendedAt = rec.AppendedAt
	return nil
}
