// Package canonical derives the deterministic byte form and content address of a fact record.
//
// The encoding is sorted-key JSON without whitespace, raw UTF-8, integers as
// decimal and timestamps as RFC 3339 UTC strings. It is byte-compatible with
// any encoder following the same rules, so third parties can recompute a
// record's hash from the published record alone.
package canonical

import (
	"bytes"
	"sort"
	"time"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

func newError(format string, args ...any) error {
	return domain.NewError(domain.CodeCanonicalization, format, args...)
}

// Canonicalize returns the canonical bytes of record's substantive fields.
// Status is excluded. Topics are treated as a set; evidence order is kept.
func Canonicalize(record factguard.FactRecord) ([]byte, error) {
	if err := Validate(record); err != nil {
		return nil, err
	}

	evidence := make(array, 0, len(record.Evidence))
	for _, ev := range record.Evidence {
		var checksum value = null{}
		if ev.Checksum != nil {
			checksum = str(*ev.Checksum)
		}
		evidence = append(evidence, object{
			"url":         str(ev.URL),
			"title":       str(ev.Title),
			"checksum":    checksum,
			"accessed_at": str(FormatTime(ev.AccessedAt)),
		})
	}

	topics := make(array, 0, len(record.Topics))
	for _, topic := range NormalizeTopics(record.Topics) {
		topics = append(topics, str(topic))
	}

	doc := object{
		"fact_id":          str(record.FactID),
		"claim_text":       str(record.ClaimText),
		"verdict":          str(record.Verdict.String()),
		"severity":         str(record.Severity.String()),
		"summary":          str(record.Summary),
		"evidence":         evidence,
		"topics":           topics,
		"issued_at":        str(FormatTime(record.IssuedAt)),
		"last_reviewed_at": str(FormatTime(record.LastReviewedAt)),
		"version":          uinteger(record.Version),
	}

	var buf bytes.Buffer
	if err := doc.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks that every substantive field is present and well typed.
func Validate(record factguard.FactRecord) error {
	switch {
	case record.FactID == "":
		return newError("fact_id is required")
	case record.ClaimText == "":
		return newError("claim_text is required")
	case record.Summary == "":
		return newError("summary is required")
	case !record.Verdict.Valid():
		return newError("unknown verdict %d", uint8(record.Verdict))
	case !record.Severity.Valid():
		return newError("unknown severity %d", uint8(record.Severity))
	case record.IssuedAt.IsZero():
		return newError("issued_at is required")
	case record.LastReviewedAt.IsZero():
		return newError("last_reviewed_at is required")
	}
	for i, ev := range record.Evidence {
		switch {
		case ev.URL == "":
			return newError("evidence[%d].url is required", i)
		case ev.Title == "":
			return newError("evidence[%d].title is required", i)
		case ev.AccessedAt.IsZero():
			return newError("evidence[%d].accessed_at is required", i)
		}
	}
	for i, topic := range record.Topics {
		if topic == "" {
			return newError("topics[%d] is empty", i)
		}
	}
	return nil
}

// NormalizeTopics returns the topics sorted by byte value with duplicates removed.
func NormalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	out = append(out, topics...)
	sort.Strings(out)
	n := 0
	for i, t := range out {
		if i > 0 && t == out[n-1] {
			continue
		}
		out[n] = t
		n++
	}
	return out[:n]
}

// FormatTime renders t in UTC with a Z suffix and no trailing fractional zeros.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
