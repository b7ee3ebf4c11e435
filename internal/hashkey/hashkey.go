// Package hashkey computes the uint64 keys medialib uses to bucket
// strings: the intern table's buckets and the library index's
// collection buckets.
package hashkey

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Of hashes a single string.
func Of(s string) uint64 {
	return xxhash.Sum64String(s)
}

// OfAll hashes the concatenation of parts, each preceded by its length so
// that ("ab","c") and ("a","bc") never collide.
func OfAll(parts ...string) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(strconv.Itoa(len(p)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(p)
	}
	return d.Sum64()
}
