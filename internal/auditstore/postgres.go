package auditstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/efxlab/simulator/internal/handler"
)

// PostgresSink is a durable RecordSink backed by Postgres, an
// alternative to JSONLSink for runs that want the audit log queryable
// rather than a flat file (spec §6.2 leaves the sink backend
// unspecified; this mirrors the teacher's Postgres-is-source-of-truth
// pattern in internal/store/postgres.go).
//
// Schema (created out of band, not by this package):
//
//	CREATE TABLE audit_records (
//	  id UUID PRIMARY KEY,
//	  ts TIMESTAMPTZ NOT NULL,
//	  record_type TEXT NOT NULL,
//	  data JSONB NOT NULL
//	);
//
// id is derived from the record's position in the stream, not
// generated randomly, so re-running the same inputs reproduces the
// same row identities (spec §8, Determinism law).
type PostgresSink struct {
	pool *pgxpool.Pool
	ctx  context.Context
	seq  uint64
}

// NewPostgresSink creates a PostgresSink over an existing pool. ctx
// bounds every Write call; the processor's dispatch loop is otherwise
// context-free, so callers typically pass context.Background().
func NewPostgresSink(ctx context.Context, pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool, ctx: ctx}
}

// Write inserts rec as one row.
func (s *PostgresSink) Write(rec handler.Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("auditstore: marshal record data: %w", err)
	}
	id := uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%d", s.seq)))
	s.seq++
	_, err = s.pool.Exec(s.ctx,
		`INSERT INTO audit_records (id, ts, record_type, data) VALUES ($1, $2, $3, $4)`,
		id, rec.Timestamp, rec.RecordType, data,
	)
	if err != nil {
		return fmt.Errorf("auditstore: insert record: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}
