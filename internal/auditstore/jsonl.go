// Package auditstore implements durable RecordSink backends for the
// output record stream: an append-only JSONL file (grounded on the
// original io_layer.py's write_output_records_jsonl) and a Postgres
// table (grounded on the teacher's internal/store/postgres.go).
package auditstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/efxlab/simulator/internal/handler"
)

// JSONLSink appends each record as one JSON line to a file, preserving
// dispatch order (spec §6.2). Each line is stamped with an ID derived
// from its position in the stream rather than a random or time-seeded
// UUID, so the audit log stays byte-identical across repeated runs of
// the same input (spec §8, Determinism law).
type JSONLSink struct {
	file *os.File
	enc  *json.Encoder
	seq  uint64
}

// idNamespace scopes the deterministic per-record UUIDs generated by
// auditstore sinks.
var idNamespace = uuid.MustParse("6f6e6a0e-6f9a-4c9b-9e7e-000000000001")

// NewJSONLSink creates the file at path, truncating any existing file, so
// each run starts a fresh log; records are then only ever appended.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("auditstore: mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("auditstore: create %s: %w", path, err)
	}
	return &JSONLSink{file: f, enc: json.NewEncoder(f)}, nil
}

type jsonlLine struct {
	ID         string         `json:"id"`
	Timestamp  string         `json:"timestamp"`
	RecordType string         `json:"record_type"`
	Data       map[string]any `json:"data"`
}

// Write appends rec as one JSON line.
func (s *JSONLSink) Write(rec handler.Record) error {
	id := uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%d", s.seq)))
	s.seq++
	line := jsonlLine{
		ID:         id.String(),
		Timestamp:  rec.Timestamp.Format("2006-01-02T15:04:05.000000-07:00"),
		RecordType: rec.RecordType,
		Data:       rec.Data,
	}
	return s.enc.Encode(line)
}

// Close flushes and closes the underlying file.
func (s *JSONLSink) Close() error {
	return s.file.Close()
}
