package models

import (
	"time"
)

// RegistryState is a singleton row holding the writer and the sequence counter.
// Every registry mutation locks it, which serializes writers across processes.
type RegistryState struct {
	ID       int       `json:"id" gorm:"primaryKey"`
	Writer   string    `json:"writer" gorm:"type:text;not null;default:''"`
	Sequence int64     `json:"sequence" gorm:"type:bigint;not null;default:0"`
	MDate    time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type RegistryEntry struct {
	FactHash       string    `json:"factHash" gorm:"primaryKey;type:text"`
	FactID         string    `json:"factId" gorm:"type:text;not null;index"`
	Verdict        uint8     `json:"verdict" gorm:"type:smallint;not null"`
	Severity       uint8     `json:"severity" gorm:"type:smallint;not null"`
	IssuedAt       time.Time `json:"issuedAt" gorm:"type:timestamp with time zone;not null"`
	LastReviewedAt time.Time `json:"lastReviewedAt" gorm:"type:timestamp with time zone;not null"`
	Version        int64     `json:"version" gorm:"type:bigint;not null"`
	Status         uint8     `json:"status" gorm:"type:smallint;not null;default:0;index"`
	Registrant     string    `json:"registrant" gorm:"type:text;not null"`
	Sequence       int64     `json:"sequence" gorm:"type:bigint;not null;uniqueIndex"`
	CDate          time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// FactBinding maps a fact id to the hash it currently resolves to.
type FactBinding struct {
	FactID   string    `json:"factId" gorm:"primaryKey;type:text"`
	FactHash string    `json:"factHash" gorm:"type:text;not null"`
	MDate    time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// CommitLog keeps every accepted signed command for audit.
type CommitLog struct {
	ID       string    `json:"id" gorm:"primaryKey;type:text"`
	Document string    `json:"document" gorm:"type:text"`
	Proof    string    `json:"proof" gorm:"type:text"`
	Signer   string    `json:"signer" gorm:"type:text;index"`
	Schema   string    `json:"schema" gorm:"type:text"`
	TxRef    string    `json:"txRef" gorm:"type:text"`
	CDate    time.Time `json:"cdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type PublishedFact struct {
	FactID         string    `json:"factId" gorm:"primaryKey;type:text"`
	FactHash       string    `json:"factHash" gorm:"type:text;not null;index"`
	ClaimText      string    `json:"claimText" gorm:"type:text;not null"`
	Verdict        string    `json:"verdict" gorm:"type:text;not null"`
	Severity       string    `json:"severity" gorm:"type:text;not null"`
	Summary        string    `json:"summary" gorm:"type:text"`
	Evidence       string    `json:"evidence" gorm:"type:json"`
	Topics         string    `json:"topics" gorm:"type:json"`
	IssuedAt       time.Time `json:"issuedAt" gorm:"type:timestamp with time zone;not null;index"`
	LastReviewedAt time.Time `json:"lastReviewedAt" gorm:"type:timestamp with time zone;not null"`
	Version        int64     `json:"version" gorm:"type:bigint;not null"`
	Status         string    `json:"status" gorm:"type:text;not null"`
	TxRef          string    `json:"txRef" gorm:"type:text;index"`
	Sequence       int64     `json:"sequence" gorm:"type:bigint"`
	Block          int64     `json:"block" gorm:"type:bigint"`
	Publisher      string    `json:"publisher" gorm:"type:text"`
	CDate          time.Time `json:"cdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}
