package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgx-contrib/pgxotel"
)

// Postgres runs SELECT NOW() over a traced pgx connection.
// pgxotel reads the global tracer provider, so the caller must install one.
type Postgres struct {
	DSN string
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Do(ctx context.Context) (string, error) {
	cfg, err := pgx.ParseConfig(p.DSN)
	if err != nil {
		return "", fmt.Errorf("parsing postgres dsn: %w", err)
	}
	cfg.Tracer = &pgxotel.QueryTracer{Name: tracerName}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("connecting to postgres: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx)) //nolint:errcheck // best-effort close

	var now time.Time
	if err := conn.QueryRow(ctx, "SELECT NOW()").Scan(&now); err != nil {
		return "", fmt.Errorf("querying postgres: %w", err)
	}
	return fmt.Sprintf("postgres connected and queried at %s", now.Format(time.RFC3339)), nil
}
