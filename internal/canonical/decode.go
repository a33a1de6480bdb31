package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/totegamma/factguard"
)

type rawEvidence struct {
	URL        *string `json:"url"`
	Title      *string `json:"title"`
	Checksum   *string `json:"checksum"`
	AccessedAt *string `json:"accessed_at"`
}

type rawRecord struct {
	FactID         *string        `json:"fact_id"`
	LegacyID       *string        `json:"id"`
	ClaimText      *string        `json:"claim_text"`
	Verdict        *string        `json:"verdict"`
	Severity       *string        `json:"severity"`
	Summary        *string        `json:"summary"`
	Evidence       *[]rawEvidence `json:"evidence"`
	Topics         *[]string      `json:"topics"`
	IssuedAt       *string        `json:"issued_at"`
	LastReviewedAt *string        `json:"last_reviewed_at"`
	Version        *json.Number   `json:"version"`
	Status         *string        `json:"status"`
}

// Decode parses one publisher JSON object into a validated FactRecord.
// "id" is accepted as an alias of "fact_id". A missing status means active.
// The input must be valid UTF-8 holding exactly one JSON value.
func Decode(data []byte) (factguard.FactRecord, error) {
	record, _, err := decode(data)
	return record, err
}

// decode also reports the record's identifier when it could be read.
func decode(data []byte) (factguard.FactRecord, string, error) {
	if !utf8.Valid(data) {
		return factguard.FactRecord{}, "", newError("record is not valid UTF-8")
	}

	var raw rawRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return factguard.FactRecord{}, "", newError("malformed record: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return factguard.FactRecord{}, raw.id(), newError("unexpected data after record")
	}

	record, err := raw.record()
	return record, raw.id(), err
}

// Rejection is a batch item that could not be decoded.
type Rejection struct {
	Index  int
	FactID string
	Err    error
}

func (r Rejection) Error() string {
	if r.FactID != "" {
		return fmt.Sprintf("record %d (%s): %v", r.Index, r.FactID, r.Err)
	}
	return fmt.Sprintf("record %d: %v", r.Index, r.Err)
}

func (r Rejection) Unwrap() error { return r.Err }

// DecodeAll parses either a single record object or an array of records.
// Items that fail to decode are returned as rejections next to the records
// that did decode. The error is reserved for input that holds no records at all.
func DecodeAll(data []byte) ([]factguard.FactRecord, []Rejection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, newError("empty input")
	}

	items := []json.RawMessage{trimmed}
	if trimmed[0] == '[' {
		items = nil
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, newError("malformed record list: %v", err)
		}
	}

	records := make([]factguard.FactRecord, 0, len(items))
	var rejected []Rejection
	for i, item := range items {
		record, id, err := decode(item)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, FactID: id, Err: err})
			continue
		}
		records = append(records, record)
	}
	return records, rejected, nil
}

func (raw rawRecord) id() string {
	switch {
	case raw.FactID != nil:
		return *raw.FactID
	case raw.LegacyID != nil:
		return *raw.LegacyID
	}
	return ""
}

func (raw rawRecord) record() (factguard.FactRecord, error) {
	var record factguard.FactRecord

	factID := raw.FactID
	if factID == nil {
		factID = raw.LegacyID
	}
	if err := requireString("fact_id", factID, &record.FactID); err != nil {
		return record, err
	}
	if err := requireString("claim_text", raw.ClaimText, &record.ClaimText); err != nil {
		return record, err
	}
	if err := requireString("summary", raw.Summary, &record.Summary); err != nil {
		return record, err
	}

	if raw.Verdict == nil {
		return record, newError("verdict is required")
	}
	verdict, err := factguard.ParseVerdict(*raw.Verdict)
	if err != nil {
		return record, newError("%v", err)
	}
	record.Verdict = verdict

	if raw.Severity == nil {
		return record, newError("severity is required")
	}
	severity, err := factguard.ParseSeverity(*raw.Severity)
	if err != nil {
		return record, newError("%v", err)
	}
	record.Severity = severity

	if raw.IssuedAt == nil {
		return record, newError("issued_at is required")
	}
	if record.IssuedAt, err = parseTime("issued_at", *raw.IssuedAt); err != nil {
		return record, err
	}
	if raw.LastReviewedAt == nil {
		return record, newError("last_reviewed_at is required")
	}
	if record.LastReviewedAt, err = parseTime("last_reviewed_at", *raw.LastReviewedAt); err != nil {
		return record, err
	}

	if raw.Version == nil {
		return record, newError("version is required")
	}
	record.Version, err = strconv.ParseUint(raw.Version.String(), 10, 64)
	if err != nil {
		return record, newError("version must be a non-negative integer, got %s", raw.Version.String())
	}

	if raw.Evidence != nil {
		record.Evidence = make([]factguard.Evidence, 0, len(*raw.Evidence))
		for i, ev := range *raw.Evidence {
			var out factguard.Evidence
			if ev.URL == nil || ev.Title == nil || ev.AccessedAt == nil {
				return record, newError("evidence[%d] requires url, title and accessed_at", i)
			}
			out.URL = *ev.URL
			out.Title = *ev.Title
			out.Checksum = ev.Checksum
			if out.AccessedAt, err = parseTime("accessed_at", *ev.AccessedAt); err != nil {
				return record, err
			}
			record.Evidence = append(record.Evidence, out)
		}
	}
	if raw.Topics != nil {
		record.Topics = *raw.Topics
	}

	if raw.Status != nil {
		status, err := factguard.ParseStatus(*raw.Status)
		if err != nil {
			return record, newError("%v", err)
		}
		record.Status = status
	}

	if err := Validate(record); err != nil {
		return record, err
	}
	return record, nil
}

func requireString(field string, in *string, out *string) error {
	if in == nil || *in == "" {
		return newError("%s is required", field)
	}
	*out = *in
	return nil
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, newError("%s is not an RFC 3339 timestamp: %q", field, s)
	}
	return t.UTC(), nil
}
