package raftlog

import "encoding/binary"

// indexKey returns the 8-byte big-endian encoding of a log index. This
// ordering is load-bearing: it guarantees bbolt's native
// lexicographic key iteration yields ascending index order, and that a
// bucket range-delete over [from, +inf) or (-inf, to] removes a
// contiguous run of indices.
func indexKey(index uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, index)
	return b
}

func indexFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

// Scalar keys in the "store" bucket.
const (
	keyVote          = "vote"
	keyCommitted     = "committed"
	keyLastPurgedLog = "last_purged_log_id"
)
