// Package shard provides partition and sort key derivation for the DynamoDB tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"unicode/utf8"
)

// MaxSortKeyBytes bounds natural keys stored as index sort keys. DynamoDB
// allows 1024 bytes; longer keys are replaced by a digest.
const MaxSortKeyBytes = 512

// ProfileScope is the scope partition used for documents without a tenant.
const ProfileScope = "_global"

// EdgePK computes the sharded partition key of a tag edge (text tagged with class).
// With numShards=1, every edge of a class goes to shard "00".
// With numShards>1, edges are distributed across shards based on the text id hash.
func EdgePK(tenant, classID, textID string, numShards int) string {
	if numShards <= 1 {
		return fmt.Sprintf("%s#%s#00", tenant, classID)
	}
	h := fnv.New32a()
	h.Write([]byte(textID))
	shard := h.Sum32() % uint32(numShards)
	return fmt.Sprintf("%s#%s#%02x", tenant, classID, shard)
}

// EdgePartitions returns every partition key the edges of a class may live in.
func EdgePartitions(tenant, classID string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	pks := make([]string, numShards)
	for i := range pks {
		pks[i] = fmt.Sprintf("%s#%s#%02x", tenant, classID, i)
	}
	return pks
}

// ScopeKey computes the natural-key index partition of a schema within a tenant.
func ScopeKey(tenant, schema string) string {
	if tenant == "" {
		tenant = ProfileScope
	}
	return tenant + "#" + schema
}

// NaturalSortKey returns the index sort key of a natural key. Keys longer than
// MaxSortKeyBytes are replaced by a prefix plus a 128-bit digest, which keeps
// exact-match lookups working and ordering approximately by value.
func NaturalSortKey(key string) string {
	if len(key) <= MaxSortKeyBytes {
		return key
	}
	h := sha256.Sum256([]byte(key))
	cut := MaxSortKeyBytes - 33
	for cut > 0 && !utf8.RuneStart(key[cut]) {
		cut--
	}
	return key[:cut] + "#" + hex.EncodeToString(h[:16])
}
