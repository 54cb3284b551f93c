// Package db persists scan results to Postgres when a database URL is
// configured. Persistence is optional; the scanner runs without it.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"svcscan/internal/scan"
)

type Pool struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Pool, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	// Verify connectivity early.
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return &Pool{pool: p}, nil
}

func (p *Pool) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return nil
	}
	return p.pool.Ping(ctx)
}

const createScanTables = `
CREATE TABLE IF NOT EXISTS scan_services (
    id          BIGSERIAL PRIMARY KEY,
    target      TEXT        NOT NULL,
    port        INTEGER     NOT NULL,
    protocol    TEXT        NOT NULL,
    state       TEXT        NOT NULL,
    service     TEXT        NOT NULL DEFAULT '',
    summary     TEXT        NOT NULL DEFAULT '',
    banner      TEXT        NOT NULL DEFAULT '',
    cipher      TEXT        NOT NULL DEFAULT '',
    observed_at TIMESTAMPTZ NOT NULL,
    UNIQUE (target, port, protocol)
)`

const upsertScanService = `
INSERT INTO scan_services
    (target, port, protocol, state, service, summary, banner, cipher, observed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (target, port, protocol) DO UPDATE SET
    state = EXCLUDED.state,
    service = EXCLUDED.service,
    summary = EXCLUDED.summary,
    banner = EXCLUDED.banner,
    cipher = EXCLUDED.cipher,
    observed_at = EXCLUDED.observed_at`

// SaveScan upserts one row per probed port, keyed by target, port and
// protocol.
func (p *Pool) SaveScan(ctx context.Context, target string, services []*scan.ServiceInfo) error {
	if p == nil || p.pool == nil {
		return nil
	}
	if _, err := p.pool.Exec(ctx, createScanTables); err != nil {
		return err
	}

	now := time.Now()
	for _, svc := range services {
		proto := svc.Proto
		if proto == "" {
			proto = "tcp"
		}
		if _, err := p.pool.Exec(ctx, upsertScanService,
			target,
			int32(svc.Port),
			proto,
			string(svc.State),
			svc.Service,
			svc.Summary,
			svc.Banner,
			svc.Cipher,
			now,
		); err != nil {
			return err
		}
	}
	return nil
}
