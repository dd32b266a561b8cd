// Package statehash computes the stable content digest of a
// statetree.SnapshotValue used as reevaluation state_hash input. It
// canonicalizes a SnapshotValue into a deterministic byte stream (sorted
// object keys, explicit kind tags, fixed-width length prefixes) and hashes
// it via btcsuite/btcd's chainhash, a double-SHA256 construction, rather
// than hashing a JSON rendering, which is one canonicalization step short of
// deterministic (map key order, number formatting) without extra work.
package statehash

import (
	"encoding/binary"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/rawblock/landkeeper/internal/statetree"
)

// Digest is the stable content hash of a SnapshotValue, rendered as a hex
// string for JSON/log friendliness (mirrors chainhash.Hash.String()).
type Digest string

// Of computes the canonical digest of v.
func Of(v statetree.SnapshotValue) Digest {
	var buf []byte
	buf = appendCanonical(buf, v)
	h := chainhash.DoubleHashH(buf)
	return Digest(h.String())
}

func appendCanonical(buf []byte, v statetree.SnapshotValue) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case statetree.KindNull:
		// tag only
	case statetree.KindBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case statetree.KindInt:
		buf = appendUint64(buf, uint64(v.Int))
	case statetree.KindFloat:
		buf = appendUint64(buf, math.Float64bits(v.Float))
	case statetree.KindString:
		buf = appendLenPrefixed(buf, []byte(v.Str))
	case statetree.KindBytes:
		buf = appendLenPrefixed(buf, v.Bytes)
	case statetree.KindArray:
		buf = appendUint64(buf, uint64(len(v.Array)))
		for _, e := range v.Array {
			buf = appendCanonical(buf, e)
		}
	case statetree.KindObject:
		keys := v.SortedKeys()
		buf = appendUint64(buf, uint64(len(keys)))
		for _, k := range keys {
			buf = appendLenPrefixed(buf, []byte(k))
			buf = appendCanonical(buf, v.Object[k])
		}
	}
	return buf
}

func appendUint64(buf []byte, n uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendLenPrefixed(buf []byte, data []byte) []byte {
	buf = appendUint64(buf, uint64(len(data)))
	return append(buf, data...)
}
