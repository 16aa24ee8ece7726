package wal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/cKV/lib/db"
)

// --------------------------------------------------------------------------
// Record Structure
// --------------------------------------------------------------------------

// Action tags describe the mutation a record carries.
const (
	ActionSet    = "SET"
	ActionDelete = "DELETE"
)

// Record is one line of the write-ahead log. Every record is an
// independently parsable JSON object; fields that do not apply to the
// action are omitted. The timestamp is wall-clock seconds since the epoch
// and serves diagnostics and TTL reconstruction; replay order is the order
// of appearance in the file, never the timestamp.
type Record struct {
	Timestamp float64 `json:"timestamp"`
	Action    string  `json:"action"`
	Key       string  `json:"key"`
	Namespace string  `json:"namespace,omitempty"`
	Value     string  `json:"value,omitempty"`
	TTL       int64   `json:"ttl,omitempty"`
}

// --------------------------------------------------------------------------
// Record Factory Functions
// --------------------------------------------------------------------------

// NewSetRecord creates a SET record. ttlSeconds <= 0 means no expiry.
func NewSetRecord(qk db.QualifiedKey, value string, ttlSeconds int64, now time.Time) Record {
	rec := Record{
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
		Action:    ActionSet,
		Key:       qk.Key,
		Namespace: qk.Namespace,
		Value:     value,
	}
	if ttlSeconds > 0 {
		rec.TTL = ttlSeconds
	}
	return rec
}

// NewDeleteRecord creates a DELETE record.
func NewDeleteRecord(qk db.QualifiedKey, now time.Time) Record {
	return Record{
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
		Action:    ActionDelete,
		Key:       qk.Key,
		Namespace: qk.Namespace,
	}
}

// --------------------------------------------------------------------------
// Record Methods
// --------------------------------------------------------------------------

// QualifiedKey returns the qualified key the record refers to.
func (r Record) QualifiedKey() db.QualifiedKey {
	return db.QualifiedKey{Namespace: r.Namespace, Key: r.Key}
}

// ExpiresAt reconstructs the absolute expiry instant of a SET record from
// its timestamp and TTL. It returns the zero time for records without TTL.
func (r Record) ExpiresAt() time.Time {
	if r.TTL <= 0 {
		return time.Time{}
	}
	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).Add(time.Duration(r.TTL) * time.Second)
}

// validate checks that a parsed line carries a known action and a key.
func (r Record) validate() error {
	if r.Action != ActionSet && r.Action != ActionDelete {
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if r.Key == "" {
		return fmt.Errorf("record has no key")
	}
	return nil
}

// encode marshals the record to its single-line wire form including the
// trailing newline.
func (r Record) encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// parseRecord decodes one log line.
func parseRecord(line []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, err
	}
	if err := rec.validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
