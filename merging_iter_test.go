// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shale

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/shale/db"
)

// fakeIter is a slice-backed InternalIterator for merging iterator tests.
type fakeIter struct {
	cmp   db.Compare
	keys  []db.InternalKey
	vals  [][]byte
	index int
	err   error
}

var _ db.InternalIterator = (*fakeIter)(nil)

func newFakeIter(keys []db.InternalKey, vals [][]byte) *fakeIter {
	return &fakeIter{
		cmp:   db.DefaultComparer.Compare,
		keys:  keys,
		vals:  vals,
		index: -1,
	}
}

func (f *fakeIter) SeekGE(key db.InternalKey) {
	for f.index = 0; f.index < len(f.keys); f.index++ {
		if db.InternalCompare(f.cmp, key, f.keys[f.index]) <= 0 {
			return
		}
	}
}

func (f *fakeIter) First() { f.index = 0 }
func (f *fakeIter) Last()  { f.index = len(f.keys) - 1 }

func (f *fakeIter) Next() bool {
	if f.index < len(f.keys) {
		f.index++
	}
	return f.Valid()
}

func (f *fakeIter) Prev() bool {
	if f.index >= 0 {
		f.index--
	}
	return f.Valid()
}

func (f *fakeIter) Key() db.InternalKey { return f.keys[f.index] }

func (f *fakeIter) Value() []byte {
	if f.vals == nil {
		return nil
	}
	return f.vals[f.index]
}

func (f *fakeIter) Valid() bool { return f.index >= 0 && f.index < len(f.keys) }
func (f *fakeIter) Error() error {
	return f.err
}
func (f *fakeIter) Close() error { return f.err }

// parseTestKey parses "user.KIND.seq", e.g. "a.SET.3" or "b.DEL.2".
func parseTestKey(t *testing.T, s string) db.InternalKey {
	t.Helper()
	parts := strings.Split(s, ".")
	require.Len(t, parts, 3, "bad key %q", s)
	var kind db.InternalKeyKind
	switch parts[1] {
	case "SET":
		kind = db.InternalKeyKindSet
	case "DEL":
		kind = db.InternalKeyKindDelete
	default:
		t.Fatalf("bad kind %q", parts[1])
	}
	seqNum, err := strconv.ParseUint(parts[2], 10, 64)
	require.NoError(t, err)
	return db.MakeInternalKey([]byte(parts[0]), seqNum, kind)
}

func TestMergingIterDataDriven(t *testing.T) {
	var iters []db.InternalIterator
	datadriven.RunTest(t, "testdata/merging_iter", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "define":
			iters = nil
			for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
				var keys []db.InternalKey
				var vals [][]byte
				for _, field := range strings.Fields(line) {
					kv := strings.SplitN(field, "=", 2)
					keys = append(keys, parseTestKey(t, kv[0]))
					if len(kv) == 2 {
						vals = append(vals, []byte(kv[1]))
					} else {
						vals = append(vals, nil)
					}
				}
				iters = append(iters, newFakeIter(keys, vals))
			}
			return ""

		case "iter":
			m := NewMergingIter(db.DefaultComparer.Compare, iters...)
			var buf strings.Builder
			for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
				fields := strings.Fields(line)
				switch fields[0] {
				case "first":
					m.First()
				case "last":
					m.Last()
				case "next":
					m.Next()
				case "prev":
					m.Prev()
				case "seek-ge":
					m.SeekGE(parseTestKey(t, fields[1]))
				default:
					t.Fatalf("unknown op %q", fields[0])
				}
				if m.Valid() {
					k := m.Key()
					fmt.Fprintf(&buf, "%s#%d,%s:%s\n", k.UserKey, k.SeqNum(), k.Kind(), m.Value())
				} else {
					fmt.Fprintf(&buf, ".\n")
				}
			}
			return buf.String()

		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}

func TestMergingIterDirectionFlip(t *testing.T) {
	// Children [1,3,5] and [2,3,4]: forward traversal yields 1,2,3,3,4 and
	// two Prevs after the direction reversal yield 3,3.
	makeIter := func(keys ...string) *fakeIter {
		var ikeys []db.InternalKey
		for _, k := range keys {
			ikeys = append(ikeys, db.MakeInternalKey([]byte(k), 1, db.InternalKeyKindSet))
		}
		return newFakeIter(ikeys, nil)
	}
	m := NewMergingIter(db.DefaultComparer.Compare,
		makeIter("1", "3", "5"), makeIter("2", "3", "4"))

	var got []string
	m.First()
	got = append(got, string(m.Key().UserKey))
	for i := 0; i < 4; i++ {
		require.True(t, m.Next())
		got = append(got, string(m.Key().UserKey))
	}
	require.Equal(t, []string{"1", "2", "3", "3", "4"}, got)

	got = nil
	for i := 0; i < 2; i++ {
		require.True(t, m.Prev())
		got = append(got, string(m.Key().UserKey))
	}
	require.Equal(t, []string{"3", "3"}, got)
}

func TestMergingIterSortedUnion(t *testing.T) {
	// Forward traversal emits the sorted union of the children; reverse
	// traversal emits its reversal.
	children := [][]string{
		{"a", "e", "i", "o", "u"},
		{"b", "e", "q"},
		{},
		{"c", "z"},
	}
	var all []string
	var iters []db.InternalIterator
	for _, keys := range children {
		var ikeys []db.InternalKey
		for _, k := range keys {
			ikeys = append(ikeys, db.MakeInternalKey([]byte(k), 1, db.InternalKeyKindSet))
			all = append(all, k)
		}
		iters = append(iters, newFakeIter(ikeys, nil))
	}
	sort.Strings(all)

	m := NewMergingIter(db.DefaultComparer.Compare, iters...)
	var got []string
	for m.First(); m.Valid(); m.Next() {
		got = append(got, string(m.Key().UserKey))
	}
	require.Equal(t, all, got)

	got = got[:0]
	for m.Last(); m.Valid(); m.Prev() {
		got = append(got, string(m.Key().UserKey))
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	require.Equal(t, all, got)
}

func TestMergingIterSeekGE(t *testing.T) {
	m := NewMergingIter(db.DefaultComparer.Compare,
		newFakeIter([]db.InternalKey{
			db.MakeInternalKey([]byte("b"), 2, db.InternalKeyKindSet),
			db.MakeInternalKey([]byte("d"), 2, db.InternalKeyKindSet),
		}, nil),
		newFakeIter([]db.InternalKey{
			db.MakeInternalKey([]byte("a"), 1, db.InternalKeyKindSet),
			db.MakeInternalKey([]byte("d"), 1, db.InternalKeyKindSet),
		}, nil))

	m.SeekGE(db.MakeSearchKey([]byte("c"), db.InternalKeySeqNumMax))
	var got []string
	for ; m.Valid(); m.Next() {
		got = append(got, fmt.Sprintf("%s#%d", m.Key().UserKey, m.Key().SeqNum()))
	}
	// Identical user keys surface newest first.
	require.Equal(t, []string{"d#2", "d#1"}, got)
}

func TestMergingIterNextThenPrev(t *testing.T) {
	// From any valid position, Next followed by Prev returns to the same
	// key/value pair.
	m := NewMergingIter(db.DefaultComparer.Compare,
		newFakeIter([]db.InternalKey{
			db.MakeInternalKey([]byte("a"), 3, db.InternalKeyKindSet),
			db.MakeInternalKey([]byte("c"), 3, db.InternalKeyKindSet),
			db.MakeInternalKey([]byte("e"), 3, db.InternalKeyKindSet),
		}, nil),
		newFakeIter([]db.InternalKey{
			db.MakeInternalKey([]byte("b"), 2, db.InternalKeyKindSet),
			db.MakeInternalKey([]byte("c"), 2, db.InternalKeyKindSet),
		}, nil))

	var positions []string
	for m.First(); m.Valid(); m.Next() {
		positions = append(positions, m.Key().String())
	}
	for i := 0; i+1 < len(positions); i++ {
		m.First()
		for j := 0; j < i; j++ {
			m.Next()
		}
		require.Equal(t, positions[i], m.Key().String())
		require.True(t, m.Next())
		require.Equal(t, positions[i+1], m.Key().String())
		require.True(t, m.Prev())
		require.Equal(t, positions[i], m.Key().String(), "after Next+Prev from position %d", i)
	}
}

func TestMergingIterFactory(t *testing.T) {
	// Zero children produce an always-invalid iterator.
	m := NewMergingIter(db.DefaultComparer.Compare)
	m.First()
	require.False(t, m.Valid())
	m.Last()
	require.False(t, m.Valid())
	require.NoError(t, m.Error())

	// A single child is returned unwrapped.
	f := newFakeIter([]db.InternalKey{db.MakeInternalKey([]byte("a"), 1, db.InternalKeyKindSet)}, nil)
	require.Equal(t, db.InternalIterator(f), NewMergingIter(db.DefaultComparer.Compare, f))
}
