package statemachine

import (
	"encoding/json"
	"sort"
)

// snapshotDoc is the self-describing, key-ordering-preserving document a
// deterministic codec requires: a plain map round-trips through
// encoding/json fine, but Go's map iteration order is randomized, so two
// equal maps can marshal to different byte sequences. snapshotEntry plus
// a sort pass is what makes EncodeSnapshot byte-equal for equal inputs.
type snapshotEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type snapshotDoc struct {
	Entries []snapshotEntry `json:"entries"`
}

// EncodeSnapshot serializes kvs as a sorted-key JSON document. Equal maps
// always produce identical bytes.
func EncodeSnapshot(kvs map[string]string) ([]byte, error) {
	doc := snapshotDoc{Entries: make([]snapshotEntry, 0, len(kvs))}
	for k, v := range kvs {
		doc.Entries = append(doc.Entries, snapshotEntry{Key: k, Value: v})
	}
	sort.Slice(doc.Entries, func(i, j int) bool { return doc.Entries[i].Key < doc.Entries[j].Key })
	return json.Marshal(&doc)
}

// DecodeSnapshot parses bytes produced by EncodeSnapshot (or any
// equivalent encoder of the same document shape) back into a KV map.
// Implementations must deserialize any output of EncodeSnapshot; no
// stability across versions is promised beyond that.
func DecodeSnapshot(data []byte) (map[string]string, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	kvs := make(map[string]string, len(doc.Entries))
	for _, e := range doc.Entries {
		kvs[e.Key] = e.Value
	}
	return kvs, nil
}
