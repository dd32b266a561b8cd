package statehash_test

import (
	"testing"

	"github.com/rawblock/landkeeper/internal/statehash"
	"github.com/rawblock/landkeeper/internal/statetree"
)

func TestOfIsDeterministicRegardlessOfMapIterationOrder(t *testing.T) {
	a := statetree.Object(map[string]statetree.SnapshotValue{
		"hp":  statetree.Int(100),
		"mp":  statetree.Int(50),
		"pos": statetree.Array([]statetree.SnapshotValue{statetree.Int(1), statetree.Int(2)}),
	})
	b := statetree.Object(map[string]statetree.SnapshotValue{
		"pos": statetree.Array([]statetree.SnapshotValue{statetree.Int(1), statetree.Int(2)}),
		"mp":  statetree.Int(50),
		"hp":  statetree.Int(100),
	})
	if statehash.Of(a) != statehash.Of(b) {
		t.Fatal("digest should be independent of map construction/iteration order")
	}
}

func TestOfDiffersOnValueChange(t *testing.T) {
	a := statetree.Object(map[string]statetree.SnapshotValue{"hp": statetree.Int(100)})
	b := statetree.Object(map[string]statetree.SnapshotValue{"hp": statetree.Int(90)})
	if statehash.Of(a) == statehash.Of(b) {
		t.Fatal("digest should change when a leaf value changes")
	}
}

func TestOfDistinguishesTypesWithSameBytes(t *testing.T) {
	// A string "1" and an int 1 must not collide even though naive
	// concatenation of their raw bytes might otherwise coincide.
	s := statetree.Str("1")
	i := statetree.Int(1)
	if statehash.Of(s) == statehash.Of(i) {
		t.Fatal("string and int values must hash differently")
	}
}
