package request

import (
	"iter"
	"slices"
	"strings"
)

// KeyPolicy normalizes keys before comparison. Two keys are the same
// entry when their normalized forms are equal; iteration follows the
// ordering of normalized keys.
type KeyPolicy func(key string) string

var (
	// CaseInsensitive is used for headers, footers and cookies.
	CaseInsensitive KeyPolicy = strings.ToLower

	// CaseSensitive is used for arguments.
	CaseSensitive KeyPolicy = func(key string) string { return key }
)

type entry struct {
	key   string // as first inserted
	value string
}

// Values is a string map whose key comparison is set by a KeyPolicy.
// The zero value is an empty case-sensitive map ready to use.
type Values struct {
	policy KeyPolicy
	m      map[string]entry
}

// NewValues returns an empty map using policy.
func NewValues(policy KeyPolicy) *Values {
	return &Values{policy: policy, m: make(map[string]entry)}
}

func (v *Values) norm(key string) string {
	if v.policy == nil {
		return key
	}
	return v.policy(key)
}

// Get returns the value for key, or "" when absent.
func (v *Values) Get(key string) string {
	val, _ := v.Lookup(key)
	return val
}

// Lookup returns the value for key and whether it was present.
func (v *Values) Lookup(key string) (string, bool) {
	if v == nil {
		return "", false
	}
	e, ok := v.m[v.norm(key)]
	return e.value, ok
}

// Set stores value under key, replacing any entry that compares equal.
// The key spelling of the first insertion is kept.
func (v *Values) Set(key, value string) {
	if v.m == nil {
		v.m = make(map[string]entry)
	}
	n := v.norm(key)
	if e, ok := v.m[n]; ok {
		e.value = value
		v.m[n] = e
		return
	}
	v.m[n] = entry{key: key, value: value}
}

// Delete removes key.
func (v *Values) Delete(key string) {
	delete(v.m, v.norm(key))
}

// Len returns the number of entries.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.m)
}

// Keys returns the keys in normalized-key order.
func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	norms := make([]string, 0, len(v.m))
	for n := range v.m {
		norms = append(norms, n)
	}
	slices.Sort(norms)
	keys := make([]string, len(norms))
	for i, n := range norms {
		keys[i] = v.m[n].key
	}
	return keys
}

// All iterates over key/value pairs in normalized-key order.
func (v *Values) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range v.Keys() {
			if !yield(k, v.Get(k)) {
				return
			}
		}
	}
}

// Map returns a copy of the entries keyed by their original spelling.
func (v *Values) Map() map[string]string {
	out := make(map[string]string, v.Len())
	if v == nil {
		return out
	}
	for _, e := range v.m {
		out[e.key] = e.value
	}
	return out
}

// Clone returns an independent copy with the same policy.
func (v *Values) Clone() *Values {
	if v == nil {
		return nil
	}
	c := &Values{policy: v.policy, m: make(map[string]entry, len(v.m))}
	for n, e := range v.m {
		c.m[n] = e
	}
	return c
}
