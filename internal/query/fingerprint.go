package query

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"idlc/internal/project"
)

// Fingerprinter is implemented by values that know their own digest, such
// as parsed trees whose encoding would be costly or unstable.
type Fingerprinter interface {
	Fingerprint() project.Digest
}

// Fingerprint digests v: its own Fingerprint when it has one, otherwise the
// SHA-256 of its msgpack encoding with map keys sorted. Equal values give
// equal digests across runs.
func Fingerprint(v any) (project.Digest, error) {
	if f, ok := v.(Fingerprinter); ok {
		return f.Fingerprint(), nil
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return project.Digest{}, fmt.Errorf("fingerprint %T: %w", v, err)
	}
	return project.Sum(buf.Bytes()), nil
}

// errorDigest — отпечаток отравленного результата: зависимые видят смену
// текста ошибки так же, как смену значения.
func errorDigest(err error) project.Digest {
	return project.Sum([]byte("error\x00" + err.Error()))
}
