package domain

import (
	"encoding/json"

	"github.com/totegamma/factguard"
)

// NormalizedClaim is a claim already resolved to a fact hash, a fact id, or both.
// The hash takes precedence when present.
type NormalizedClaim struct {
	FactHash  factguard.FactHash `json:"fact_hash,omitzero"`
	FactID    string             `json:"fact_id,omitempty"`
	ClaimText string             `json:"claim_text,omitempty"`
}

type OutcomeKind string

const (
	OutcomeVerified             OutcomeKind = "verified"
	OutcomeNoAuthoritativeMatch OutcomeKind = "no_authoritative_match"
)

const (
	ReasonUnresolved  = "claim not resolved to a known fact"
	ReasonNotFound    = "no registry entry"
	ReasonUnavailable = "registry unavailable"
	ReasonIDMismatch  = "fact id does not match registered hash"
)

// VerificationOutcome is always definite: transport failures surface as
// NoAuthoritativeMatch with a reason, never as Verified.
type VerificationOutcome struct {
	Kind     OutcomeKind        `json:"kind"`
	FactHash factguard.FactHash `json:"fact_hash,omitzero"`
	FactID   string             `json:"fact_id,omitempty"`
	Verdict  factguard.Verdict  `json:"verdict"`
	Severity factguard.Severity `json:"severity"`
	Status   factguard.Status   `json:"status"`
	Reason   string             `json:"reason,omitempty"`
}

func (o VerificationOutcome) Verified() bool {
	return o.Kind == OutcomeVerified
}

// MarshalJSON leaves out the fact attributes of a non-match; they carry no meaning there.
func (o VerificationOutcome) MarshalJSON() ([]byte, error) {
	type plain VerificationOutcome
	if o.Verified() {
		return json.Marshal(plain(o))
	}
	return json.Marshal(struct {
		Kind     OutcomeKind        `json:"kind"`
		FactHash factguard.FactHash `json:"fact_hash,omitzero"`
		Reason   string             `json:"reason,omitempty"`
	}{o.Kind, o.FactHash, o.Reason})
}

func Verified(entry RegistryEntry) VerificationOutcome {
	return VerificationOutcome{
		Kind:     OutcomeVerified,
		FactHash: entry.FactHash,
		FactID:   entry.FactID,
		Verdict:  entry.Verdict,
		Severity: entry.Severity,
		Status:   entry.Status,
	}
}

func NoAuthoritativeMatch(hash factguard.FactHash, reason string) VerificationOutcome {
	return VerificationOutcome{
		Kind:     OutcomeNoAuthoritativeMatch,
		FactHash: hash,
		Reason:   reason,
	}
}
