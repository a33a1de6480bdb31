package domain

const (
	SignerCtxKey         = "fg-signer"
	SignedDocumentCtxKey = "fg-signedDocument"
)

const (
	// EventChannel is the pub/sub channel registry events are fanned out on.
	EventChannel = "factguard:events"
)
