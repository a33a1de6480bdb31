package domain

import (
	"time"

	"github.com/totegamma/factguard"
)

// Registration is the tuple a writer submits for one canonical hash.
type Registration struct {
	FactHash       factguard.FactHash `json:"fact_hash"`
	FactID         string             `json:"fact_id"`
	Verdict        factguard.Verdict  `json:"verdict"`
	Severity       factguard.Severity `json:"severity"`
	IssuedAt       time.Time          `json:"issued_at"`
	LastReviewedAt time.Time          `json:"last_reviewed_at"`
	Version        uint64             `json:"version"`

	// Record is the source fact, if the submitter has it.
	Record *factguard.FactRecord `json:"-"`
}

// RegistrationFor projects a record onto the on-chain registration tuple.
func RegistrationFor(hash factguard.FactHash, record factguard.FactRecord) Registration {
	return Registration{
		FactHash:       hash,
		FactID:         record.FactID,
		Verdict:        record.Verdict,
		Severity:       record.Severity,
		IssuedAt:       record.IssuedAt.UTC(),
		LastReviewedAt: record.LastReviewedAt.UTC(),
		Version:        record.Version,
		Record:         &record,
	}
}

// RegistryEntry is the authoritative registry row keyed by fact hash.
type RegistryEntry struct {
	FactHash       factguard.FactHash `json:"fact_hash"`
	FactID         string             `json:"fact_id"`
	Verdict        factguard.Verdict  `json:"verdict"`
	Severity       factguard.Severity `json:"severity"`
	IssuedAt       time.Time          `json:"issued_at"`
	LastReviewedAt time.Time          `json:"last_reviewed_at"`
	Version        uint64             `json:"version"`
	Status         factguard.Status   `json:"status"`
	Registrant     factguard.Identity `json:"registrant"`
	Sequence       uint64             `json:"sequence"`
	RegisteredAt   time.Time          `json:"registered_at"`
}

// Receipt identifies the committed registry write.
type Receipt struct {
	TxRef    string `json:"tx_ref"`
	Sequence uint64 `json:"sequence,omitempty"`
	Block    uint64 `json:"block,omitempty"`
}

type Stats struct {
	TotalFacts uint64             `json:"total_facts"`
	Writer     factguard.Identity `json:"writer"`
}
