package planner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// ColumnSet is an immutable set of column IDs. The zero value is the empty set.
// Every mutating operation returns a new set.
type ColumnSet struct {
	bits *bitset.BitSet
}

// MakeColumnSet builds a set from the given IDs.
func MakeColumnSet(cols ...ColumnID) ColumnSet {
	var s ColumnSet
	for _, c := range cols {
		s = s.Add(c)
	}
	return s
}

// Add returns a copy of s with col added.
func (s ColumnSet) Add(col ColumnID) ColumnSet {
	if col < 0 {
		return s
	}
	var b *bitset.BitSet
	if s.bits == nil {
		b = bitset.New(uint(col) + 1)
	} else {
		b = s.bits.Clone()
	}
	b.Set(uint(col))
	return ColumnSet{bits: b}
}

// Union returns the columns in either set.
func (s ColumnSet) Union(other ColumnSet) ColumnSet {
	switch {
	case s.bits == nil:
		return other
	case other.bits == nil:
		return s
	}
	return ColumnSet{bits: s.bits.Union(other.bits)}
}

// Intersection returns the columns in both sets.
func (s ColumnSet) Intersection(other ColumnSet) ColumnSet {
	if s.bits == nil || other.bits == nil {
		return ColumnSet{}
	}
	return ColumnSet{bits: s.bits.Intersection(other.bits)}
}

// Contains reports whether col is in the set.
func (s ColumnSet) Contains(col ColumnID) bool {
	if s.bits == nil || col < 0 {
		return false
	}
	return s.bits.Test(uint(col))
}

// Len returns the number of columns in the set.
func (s ColumnSet) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// Empty reports whether the set has no columns.
func (s ColumnSet) Empty() bool {
	return s.Len() == 0
}

// SubsetOf reports whether every column of s is in other.
func (s ColumnSet) SubsetOf(other ColumnSet) bool {
	if s.Empty() {
		return true
	}
	if other.bits == nil {
		return false
	}
	return other.bits.IsSuperSet(s.bits)
}

// Equals reports whether both sets hold the same columns. Bitsets of different
// capacity can hold the same columns, so this compares by containment.
func (s ColumnSet) Equals(other ColumnSet) bool {
	return s.Len() == other.Len() && s.SubsetOf(other)
}

// Ordered returns the columns in ascending order.
func (s ColumnSet) Ordered() []ColumnID {
	if s.bits == nil {
		return nil
	}
	result := make([]ColumnID, 0, s.bits.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		result = append(result, ColumnID(i))
	}
	return result
}

// ForEach calls fn for every column in ascending order.
func (s ColumnSet) ForEach(fn func(col ColumnID)) {
	for _, c := range s.Ordered() {
		fn(c)
	}
}

// String renders the set as (1,3,7).
func (s ColumnSet) String() string {
	cols := s.Ordered()
	strs := make([]string, len(cols))
	for i, c := range cols {
		strs[i] = strconv.Itoa(int(c))
	}
	return "(" + strings.Join(strs, ",") + ")"
}

// KeySet is an immutable collection of unique keys. It is kept minimal: no
// member is a superset of another member, since any superset of a key is
// trivially a key too.
type KeySet struct {
	keys []ColumnSet
}

// MakeKeySet builds a minimal key set from keys.
func MakeKeySet(keys ...ColumnSet) KeySet {
	var ks KeySet
	for _, k := range keys {
		ks = ks.Add(k)
	}
	return ks
}

// Add returns a copy of ks that also holds key, unless a subset of key is
// already present. Members that are supersets of key are dropped.
func (ks KeySet) Add(key ColumnSet) KeySet {
	for _, existing := range ks.keys {
		if existing.SubsetOf(key) {
			return ks
		}
	}
	result := make([]ColumnSet, 0, len(ks.keys)+1)
	for _, existing := range ks.keys {
		if !key.SubsetOf(existing) {
			result = append(result, existing)
		}
	}
	result = append(result, key)
	sort.Slice(result, func(i, j int) bool {
		if result[i].Len() != result[j].Len() {
			return result[i].Len() < result[j].Len()
		}
		return result[i].String() < result[j].String()
	})
	return KeySet{keys: result}
}

// Keys returns the member keys, shortest first.
func (ks KeySet) Keys() []ColumnSet {
	return append([]ColumnSet(nil), ks.keys...)
}

// Len returns the number of keys.
func (ks KeySet) Len() int {
	return len(ks.keys)
}

// HasEmptyKey reports whether the empty column set is a key, which holds
// exactly when the relation has at most one row.
func (ks KeySet) HasEmptyKey() bool {
	return len(ks.keys) > 0 && ks.keys[0].Empty()
}

// ContainsKeyWithin reports whether some key is a subset of cols, in which case
// cols functionally determines the whole row.
func (ks KeySet) ContainsKeyWithin(cols ColumnSet) bool {
	for _, k := range ks.keys {
		if k.SubsetOf(cols) {
			return true
		}
	}
	return false
}

// String renders the set as {(1),(2,3)}.
func (ks KeySet) String() string {
	strs := make([]string, len(ks.keys))
	for i, k := range ks.keys {
		strs[i] = k.String()
	}
	return "{" + strings.Join(strs, ",") + "}"
}
