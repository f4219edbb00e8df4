// Package checkpoint persists ingest cursors in Postgres so a restarted
// service resumes polling where it stopped instead of replaying the whole
// log history through the dedup filter.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS ingest_cursors (
    event_kind text PRIMARY KEY,
    block_no   bigint NOT NULL
)`

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Init creates the cursor table if it does not exist.
func (p *Postgres) Init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init ingest_cursors: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, kind string) (uint64, bool, error) {
	var block int64
	err := p.pool.QueryRow(ctx,
		`SELECT block_no FROM ingest_cursors WHERE event_kind = $1`, kind,
	).Scan(&block)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load cursor %s: %w", kind, err)
	}
	return uint64(block), true, nil
}

// Save advances the cursor for kind. Cursors are monotonic: an older block
// never overwrites a newer one, so racing pollers converge on the maximum.
func (p *Postgres) Save(ctx context.Context, kind string, block uint64) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO ingest_cursors (event_kind, block_no) VALUES ($1, $2)
		ON CONFLICT (event_kind)
		DO UPDATE SET block_no = EXCLUDED.block_no
		WHERE ingest_cursors.block_no < EXCLUDED.block_no`,
		kind, int64(block))
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", kind, err)
	}
	return nil
}
