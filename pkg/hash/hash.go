package hash

import "github.com/cespare/xxhash/v2"

type Key interface {
	uint64 | string | []byte | int | int64 | uint32
}

// Sum returns a stable 64-bit hash for key.
// Strings and byte slices go through xxhash; integers are passed through Mix so
// that sequential ids still spread over every bit.
func Sum[K Key](key K) uint64 {
	switch k := any(key).(type) {
	case string:
		return xxhash.Sum64String(k)
	case []byte:
		return xxhash.Sum64(k)
	case uint64:
		return Mix(k)
	case int:
		return Mix(uint64(k))
	case int64:
		return Mix(uint64(k))
	case uint32:
		return Mix(uint64(k))
	default:
		panic("Key type not supported")
	}
}

// Mix is the 64-bit finalizer from MurmurHash3.
func Mix(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// Salted derives an independent hash from h for the given seed.
// XOR alone is not enough: two hashes that share their low bits would still share them
// after XOR with the same seed, so the result is re-mixed.
func Salted(h, seed uint64) uint64 {
	return Mix(h ^ seed)
}
