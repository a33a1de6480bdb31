package domain

import (
	"time"

	"github.com/totegamma/factguard"
)

type EventType string

const (
	EventFactRegistered    EventType = "fact.registered"
	EventFactStatusChanged EventType = "fact.status_changed"
	EventWriterChanged     EventType = "registry.writer_changed"
)

// Event is emitted after a registry mutation has committed.
// Exactly one of the payload fields is set, matching Type.
type Event struct {
	Type          EventType          `json:"type"`
	EmittedAt     time.Time          `json:"emittedAt"`
	Registered    *FactRegistered    `json:"registered,omitempty"`
	StatusChanged *FactStatusChanged `json:"statusChanged,omitempty"`
	WriterChanged *WriterChanged     `json:"writerChanged,omitempty"`
}

type FactRegistered struct {
	FactHash factguard.FactHash `json:"factHash"`
	FactID   string             `json:"factId"`
	Verdict  factguard.Verdict  `json:"verdict"`
	Severity factguard.Severity `json:"severity"`
	IssuedAt time.Time          `json:"issuedAt"`
	Version  uint64             `json:"version"`
	Writer   factguard.Identity `json:"writer"`
	Sequence uint64             `json:"sequence"`
}

type FactStatusChanged struct {
	FactHash factguard.FactHash `json:"factHash"`
	FactID   string             `json:"factId"`
	Previous factguard.Status   `json:"previous"`
	Status   factguard.Status   `json:"status"`
	Writer   factguard.Identity `json:"writer"`
}

type WriterChanged struct {
	Previous factguard.Identity `json:"previous"`
	Writer   factguard.Identity `json:"writer"`
}
