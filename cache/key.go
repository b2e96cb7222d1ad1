package cache

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key identifies a cached query. Keys are ordered: {"tenants"} is a prefix
// of {"tenants", "detail", "t-1"}, so invalidating the former marks both.
type Key []string

// With returns a new key extending k with parts.
func (k Key) With(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// HasPrefix reports whether every element of prefix matches k in order.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

// id is the map key. Parts are length-prefixed so {"a/b"} and {"a","b"}
// never collide.
func (k Key) id() string {
	var b strings.Builder
	for _, part := range k {
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// Fingerprint reduces query parameters to a short stable key part, so list
// queries with different filters are cached separately. Map keys are sorted
// by encoding/json, which keeps the result independent of insertion order.
func Fingerprint(params any) string {
	if params == nil {
		return "-"
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "-"
	}
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}
