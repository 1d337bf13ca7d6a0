package matching

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// KeySet is a set of field names compared case-insensitively (Unicode
// simple case folding).
type KeySet struct {
	folded map[string]struct{}
}

// NewKeySet builds a KeySet. Blank names are ignored.
func NewKeySet(keys ...string) KeySet {
	ks := KeySet{folded: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		ks.folded[fold(k)] = struct{}{}
	}
	return ks
}

// Contains reports whether key matches one of the set's names.
func (ks KeySet) Contains(key string) bool {
	if len(ks.folded) == 0 {
		return false
	}
	_, ok := ks.folded[fold(key)]
	return ok
}

// Len returns the number of distinct names.
func (ks KeySet) Len() int {
	return len(ks.folded)
}

// Keys returns the folded names, sorted.
func (ks KeySet) Keys() []string {
	out := make([]string, 0, len(ks.folded))
	for k := range ks.folded {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// cases.Caser is stateful, so a fresh one is used per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
