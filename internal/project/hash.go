package project

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest - фиксированный 256 битный хеш (совместим с source.File.Hash)
type Digest [32]byte

// Sum hashes raw bytes.
func Sum(b []byte) Digest {
	return sha256.Sum256(b)
}

// Combine строит составной хеш: H( content || dep1 || dep2 ... ).
// Порядок deps должен быть детерминированным.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func (d Digest) IsZero() bool { return d == Digest{} }

// Short returns the first 12 hex digits, for logs.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:6])
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
