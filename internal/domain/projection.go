package domain

import (
	"time"

	"github.com/totegamma/factguard"
)

// PublishedFact is the off-chain projection of a registered record, keyed by fact id.
// It is never authoritative; the registry entry is.
type PublishedFact struct {
	Record    factguard.FactRecord `json:"record"`
	FactHash  factguard.FactHash   `json:"fact_hash"`
	TxRef     string               `json:"tx_ref,omitempty"`
	Sequence  uint64               `json:"sequence,omitempty"`
	Block     uint64               `json:"block,omitempty"`
	Publisher string               `json:"publisher,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FallbackAnalysis is the non-authoritative assessment produced when no registered fact applies.
type FallbackAnalysis struct {
	NormalizedClaim string   `json:"normalized_claim"`
	Verdict         string   `json:"verdict"`
	Severity        string   `json:"severity"`
	Explanation     string   `json:"explanation"`
	Sources         []Source `json:"sources"`
}

const (
	MethodOnChain  = "on_chain"
	MethodFallback = "fallback"
	MethodNone     = "none"
)

// CheckResult answers a free text claim check.
type CheckResult struct {
	NormalizedClaim    string   `json:"normalized_claim"`
	Verdict            string   `json:"verdict"`
	Severity           string   `json:"severity"`
	Explanation        string   `json:"explanation"`
	Sources            []Source `json:"sources"`
	Channel            string   `json:"channel,omitempty"`
	OnChainVerified    bool     `json:"on_chain_verified"`
	FactID             string   `json:"fact_id,omitempty"`
	FactHash           string   `json:"fact_hash,omitempty"`
	VerificationMethod string   `json:"verification_method"`
}
