package factguard

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ProofTypeSecp256k1 = "secp256k1"
)

// Verdict is the assessed truth value of a claim.
// The ordinals are the values stored on chain and must not be reordered.
type Verdict uint8

const (
	VerdictTrue Verdict = iota
	VerdictFalse
	VerdictMisleading
	VerdictUnproven
	VerdictPartiallyTrue
)

var verdictNames = []string{"true", "false", "misleading", "unproven", "partially_true"}

func (v Verdict) String() string { return enumName(verdictNames, "verdict", uint8(v)) }
func (v Verdict) Valid() bool { return int(v) < len(verdictNames) }
func (v Verdict) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid verdict %d", uint8(v))
	}
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func ParseVerdict(s string) (Verdict, error) {
	n, err := parseEnum(verdictNames, "verdict", s)
	return Verdict(n), err
}

// Severity is the potential harm of believing a false claim.
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = []string{"low", "medium", "high", "critical"}

func (s Severity) String() string { return enumName(severityNames, "severity", uint8(s)) }
func (s Severity) Valid() bool { return int(s) < len(severityNames) }
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseSeverity(s string) (Severity, error) {
	n, err := parseEnum(severityNames, "severity", s)
	return Severity(n), err
}

// Status is the lifecycle state of a registered fact.
// ACTIVE may move to SUPERSEDED or WITHDRAWN. Both of those are terminal.
type Status uint8

const (
	StatusActive Status = iota
	StatusSuperseded
	StatusWithdrawn
)

var statusNames = []string{"active", "superseded", "withdrawn"}

func (s Status) String() string { return enumName(statusNames, "status", uint8(s)) }
func (s Status) Valid() bool { return int(s) < len(statusNames) }
func (s Status) Terminal() bool { return s == StatusSuperseded || s == StatusWithdrawn }

// CanTransition reports whether a fact in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	return s == StatusActive && next.Terminal()
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseStatus(s string) (Status, error) {
	n, err := parseEnum(statusNames, "status", s)
	return Status(n), err
}

// Evidence is a single source backing a fact record. Order within a record is significant.
type Evidence struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Checksum   *string   `json:"checksum"`
	AccessedAt time.Time `json:"accessed_at"`
}

// FactRecord is a publisher-authored assessment of a health claim.
// Status is lifecycle metadata and is never part of the content hash.
type FactRecord struct {
	FactID         string     `json:"fact_id"`
	ClaimText      string     `json:"claim_text"`
	Verdict        Verdict    `json:"verdict"`
	Severity       Severity   `json:"severity"`
	Summary        string     `json:"summary"`
	Evidence       []Evidence `json:"evidence"`
	Topics         []string   `json:"topics"`
	IssuedAt       time.Time  `json:"issued_at"`
	LastReviewedAt time.Time  `json:"last_reviewed_at"`
	Version        uint64     `json:"version"`
	Status         Status     `json:"status"`
}

// Identity is an account allowed to sign commands or submit transactions.
type Identity = common.Address

type Proof struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

type SignedDocument struct {
	Document string `json:"document"`
	Proof    Proof  `json:"proof"`
}

// Command is the signed envelope for every registry mutation.
type Command[T any] struct {
	Schema   string    `json:"schema"`
	Signer   string    `json:"signer"`
	IssuedAt time.Time `json:"issuedAt"`
	Value    T         `json:"value"`
}

type Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

// WellKnown describes a registry node and the endpoints it serves.
type WellKnown struct {
	Version   string              `json:"version"`
	Name      string              `json:"name"`
	Publisher string              `json:"publisher,omitempty"`
	Transport string              `json:"transport"`
	ChainID   uint64              `json:"chainID,omitempty"`
	Contract  string              `json:"contract,omitempty"`
	Endpoints map[string]Endpoint `json:"endpoints"`
}
