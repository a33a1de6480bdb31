package domain

import (
	"github.com/totegamma/factguard"
)

// RegistrationItem is the per-record result of a registration run.
type RegistrationItem struct {
	FactID    string             `json:"fact_id"`
	FactHash  factguard.FactHash `json:"fact_hash,omitzero"`
	Receipt   *Receipt           `json:"receipt,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
}

// RegistrationReport partitions a batch into registered, skipped and failed records.
// Every input record lands in exactly one partition.
type RegistrationReport struct {
	RunID      string             `json:"run_id"`
	Registered []RegistrationItem `json:"registered"`
	Skipped    []RegistrationItem `json:"skipped"`
	Failed     []RegistrationItem `json:"failed"`
}

func (r RegistrationReport) Total() int {
	return len(r.Registered) + len(r.Skipped) + len(r.Failed)
}

// Retryable returns the fact ids of failed items that a later run may succeed on.
func (r RegistrationReport) Retryable() []string {
	var ids []string
	for _, item := range r.Failed {
		if item.Retryable {
			ids = append(ids, item.FactID)
		}
	}
	return ids
}
