package inventory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second

	documentID = "inventory"

	pgUndefinedTable   = "42P01"
	mysqlNoSuchTable   = 1146
	migrateTimeout     = 30 * time.Second
	sqlMaxOpenConns    = 5
	sqlConnMaxIdleTime = 5 * time.Minute
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

var ErrSchemaMissing = errors.New("inventory table missing; migrations not applied")

type Dialect struct {
	Name          string
	driver        string
	migrationsDir string
	selectDoc     string
	upsertDoc     string
}

var (
	Postgres = Dialect{
		Name:          "postgres",
		driver:        "pgx",
		migrationsDir: "migrations/postgres",
		selectDoc:     `SELECT payload FROM inventory_documents WHERE id = $1`,
		upsertDoc: `
			INSERT INTO inventory_documents (id, payload, updated_at)
			VALUES ($1, $2::jsonb, $3)
			ON CONFLICT (id) DO UPDATE SET
				payload = EXCLUDED.payload,
				updated_at = EXCLUDED.updated_at
		`,
	}

	MySQL = Dialect{
		Name:          "mysql",
		driver:        "mysql",
		migrationsDir: "migrations/mysql",
		selectDoc:     `SELECT payload FROM inventory_documents WHERE id = ?`,
		upsertDoc: `
			INSERT INTO inventory_documents (id, payload, updated_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				payload = VALUES(payload),
				updated_at = VALUES(updated_at)
		`,
	}
)

// SQLBackend stores the document as one row of inventory_documents.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLBackend(db *sql.DB, d Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: d}
}

// OpenSQLBackend connects with dsn, checks the connection and applies the
// embedded migrations for the dialect.
func OpenSQLBackend(ctx context.Context, d Dialect, dsn string) (*SQLBackend, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(sqlMaxOpenConns)
	db.SetConnMaxIdleTime(sqlConnMaxIdleTime)

	b := NewSQLBackend(db, d)
	if err := b.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", d.Name, err)
	}
	if err := b.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s migrate: %w", d.Name, err)
	}
	return b, nil
}

func (b *SQLBackend) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(b.dialect.Name); err != nil {
		return err
	}

	return withTimeout(ctx, migrateTimeout, func(ctx context.Context) error {
		return goose.UpContext(ctx, b.db, b.dialect.migrationsDir)
	})
}

func (b *SQLBackend) Read(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return b.db.QueryRowContext(ctx, b.dialect.selectDoc, documentID).Scan(&doc)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifySQLError(err)
	}
	return doc, nil
}

func (b *SQLBackend) Write(ctx context.Context, doc []byte) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := b.db.ExecContext(ctx, b.dialect.upsertDoc, documentID, string(doc), time.Now().UTC())
		return classifySQLError(err)
	})
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return b.db.PingContext(ctx)
	})
}

func (b *SQLBackend) Close() error { return b.db.Close() }

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func classifySQLError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlNoSuchTable {
		return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
	}
	return err
}
