package factguard

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const FactHashLength = 32

// FactHash is the SHA-256 content address of a canonicalized fact record.
type FactHash [FactHashLength]byte

// Hex returns the external form: "0x" followed by 64 lower-case hex characters.
func (h FactHash) Hex() string { return hexutil.Encode(h[:]) }
func (h FactHash) String() string { return h.Hex() }
func (h FactHash) IsZero() bool { return h == FactHash{} }

func (h FactHash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *FactHash) UnmarshalText(text []byte) error {
	parsed, err := ParseFactHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseFactHash accepts the hex form with or without the 0x prefix, in either case.
func ParseFactHash(s string) (FactHash, error) {
	raw := strings.TrimSpace(s)
	if len(raw) >= 2 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X') {
		raw = raw[2:]
	}
	if len(raw) != 2*FactHashLength {
		return FactHash{}, fmt.Errorf("invalid fact hash length: want %d hex characters, got %d", 2*FactHashLength, len(raw))
	}
	b, err := hexutil.Decode("0x" + strings.ToLower(raw))
	if err != nil {
		return FactHash{}, fmt.Errorf("invalid fact hash: %v", err)
	}
	var h FactHash
	copy(h[:], b)
	return h, nil
}

func MustParseFactHash(s string) FactHash {
	h, err := ParseFactHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// ParseIdentity parses a 20 byte account address.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Identity{}, fmt.Errorf("invalid identity %q", s)
	}
	id := common.HexToAddress(s)
	if IsNullIdentity(id) {
		return Identity{}, fmt.Errorf("null identity")
	}
	return id, nil
}

func IsNullIdentity(id Identity) bool {
	return id == (Identity{})
}

func enumName(names []string, kind string, n uint8) string {
	if int(n) < len(names) {
		return names[n]
	}
	return fmt.Sprintf("%s(%d)", kind, n)
}

func parseEnum(names []string, kind, s string) (uint8, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if key == name {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}
