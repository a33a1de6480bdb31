package canonical

import (
	"crypto/sha256"

	"github.com/totegamma/factguard"
)

// Hash is SHA-256 over canonical bytes.
func Hash(canonical []byte) factguard.FactHash {
	return factguard.FactHash(sha256.Sum256(canonical))
}

// HashRecord canonicalizes record and returns its content address with the canonical bytes.
func HashRecord(record factguard.FactRecord) (factguard.FactHash, []byte, error) {
	data, err := Canonicalize(record)
	if err != nil {
		return factguard.FactHash{}, nil, err
	}
	return Hash(data), data, nil
}

// Matches recomputes record's hash and compares it with expected.
// expected may carry the 0x prefix or not, in any case.
func Matches(record factguard.FactRecord, expected string) (bool, error) {
	want, err := factguard.ParseFactHash(expected)
	if err != nil {
		return false, newError("%v", err)
	}
	got, _, err := HashRecord(record)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
