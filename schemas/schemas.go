package schemas

import (
	"time"

	"github.com/totegamma/factguard"
)

const (
	RegisterFactURL   string = "https://schema.factguard.dev/register-fact.json"
	UpdateStatusURL   string = "https://schema.factguard.dev/update-status.json"
	TransferWriterURL string = "https://schema.factguard.dev/transfer-writer.json"
)

// RegisterFact carries the registration tuple for one canonical hash.
// Record, when present, is the full fact the hash was computed from.
type RegisterFact struct {
	FactHash       factguard.FactHash    `json:"factHash"`
	FactID         string                `json:"factId"`
	Verdict        factguard.Verdict     `json:"verdict"`
	Severity       factguard.Severity    `json:"severity"`
	IssuedAt       time.Time             `json:"issuedAt"`
	LastReviewedAt time.Time             `json:"lastReviewedAt"`
	Version        uint64                `json:"version"`
	Record         *factguard.FactRecord `json:"record,omitempty"`
}

type UpdateStatus struct {
	FactHash factguard.FactHash `json:"factHash"`
	Status   factguard.Status   `json:"status"`
}

type TransferWriter struct {
	Writer string `json:"writer"`
}
