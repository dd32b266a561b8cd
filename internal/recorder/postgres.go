package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reevaluation_log (
	land_type         TEXT NOT NULL,
	instance_id       TEXT NOT NULL,
	tick              BIGINT NOT NULL,
	applied_envelopes JSONB NOT NULL,
	state_hash        TEXT NOT NULL,
	emitted_events    JSONB NOT NULL,
	recorded_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (land_type, instance_id, tick)
);
`

// PostgresRecorder persists the reevaluation record durably via pgx/v5: a
// pooled connection, a schema-init step on connect, and one INSERT per
// recorded tick. A failed write here never aborts the keeper's tick — it's logged and counted on Degraded instead, per the
// "recorder errors mark the record corrupted for that tick and continue"
// policy.
type PostgresRecorder struct {
	pool     *pgxpool.Pool
	degraded atomic.Int64
}

// ConnectPostgres opens the pool and ensures the reevaluation_log table
// exists.
func ConnectPostgres(ctx context.Context, connStr string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to recorder database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("recorder database ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize reevaluation_log schema: %w", err)
	}
	log.Println("[Recorder] connected to Postgres reevaluation store")
	return &PostgresRecorder{pool: pool}, nil
}

// Close releases the connection pool.
func (p *PostgresRecorder) Close() { p.pool.Close() }

// Degraded reports how many RecordTick calls have failed since startup.
func (p *PostgresRecorder) Degraded() int64 { return p.degraded.Load() }

func (p *PostgresRecorder) RecordTick(land ids.LandID, entry landkeeper.ReevaluationEntry) error {
	ctx := context.Background()
	envelopes, err := json.Marshal(entry.AppliedEnvelopes)
	if err != nil {
		p.degraded.Add(1)
		return fmt.Errorf("marshal applied_envelopes: %w", err)
	}
	events, err := json.Marshal(entry.EmittedEvents)
	if err != nil {
		p.degraded.Add(1)
		return fmt.Errorf("marshal emitted_events: %w", err)
	}

	const insertSQL = `
		INSERT INTO reevaluation_log (land_type, instance_id, tick, applied_envelopes, state_hash, emitted_events)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (land_type, instance_id, tick) DO UPDATE
		SET applied_envelopes = EXCLUDED.applied_envelopes,
		    state_hash = EXCLUDED.state_hash,
		    emitted_events = EXCLUDED.emitted_events;
	`
	if _, err := p.pool.Exec(ctx, insertSQL, land.LandType, land.InstanceID, entry.Tick, envelopes, entry.StateHash, events); err != nil {
		p.degraded.Add(1)
		log.Printf("[Recorder] degraded: tick %d for %s: %v", entry.Tick, land.String(), err)
		return err
	}
	return nil
}

func (p *PostgresRecorder) All(land ids.LandID) ([]landkeeper.ReevaluationEntry, error) {
	ctx := context.Background()
	const selectSQL = `
		SELECT tick, applied_envelopes, state_hash, emitted_events
		FROM reevaluation_log
		WHERE land_type = $1 AND instance_id = $2
		ORDER BY tick ASC;
	`
	rows, err := p.pool.Query(ctx, selectSQL, land.LandType, land.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("query reevaluation_log: %w", err)
	}
	defer rows.Close()

	var out []landkeeper.ReevaluationEntry
	for rows.Next() {
		var entry landkeeper.ReevaluationEntry
		var envelopes, events []byte
		if err := rows.Scan(&entry.Tick, &envelopes, &entry.StateHash, &events); err != nil {
			return nil, fmt.Errorf("scan reevaluation_log row: %w", err)
		}
		if err := json.Unmarshal(envelopes, &entry.AppliedEnvelopes); err != nil {
			return nil, fmt.Errorf("unmarshal applied_envelopes: %w", err)
		}
		if err := json.Unmarshal(events, &entry.EmittedEvents); err != nil {
			return nil, fmt.Errorf("unmarshal emitted_events: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
