package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/dbx"
	"github.com/chinbo/chinbo-server/internal/server/store/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// documentID is the primary key of the single stored document row.
const documentID = "offices"

// PostgresDriver stores the document as one jsonb row.
type PostgresDriver struct {
	db *sql.DB
}

// NewPostgresDriver opens dsn with pgx and applies the embedded migrations.
func NewPostgresDriver(ctx context.Context, dsn string) (*PostgresDriver, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return newPostgresDriver(db), nil
}

func newPostgresDriver(db *sql.DB) *PostgresDriver {
	return &PostgresDriver{db: db}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

func (d *PostgresDriver) Read(ctx context.Context) ([]byte, error) {
	query := `SELECT body FROM documents WHERE id = $1`

	var body []byte
	err := d.db.QueryRowContext(ctx, query, documentID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return body, nil
}

func (d *PostgresDriver) Write(ctx context.Context, data []byte) error {
	query :=
		`INSERT INTO documents (id, body, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`

	return dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, query, documentID, string(data)); err != nil {
			return fmt.Errorf("error performing sql request: %w", err)
		}
		return nil
	})
}

func (d *PostgresDriver) Close() error {
	return d.db.Close()
}
