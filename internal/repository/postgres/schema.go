package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	ErrInvalidSchemaName = errors.New("invalid schema name")

	schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
)

func IsValidSchemaName(schema string) bool {
	return schemaNamePattern.MatchString(schema)
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SchemaManager binds tenant schemas to connections checked out of the writer pool.
// A bound connection is never shared between requests.
type SchemaManager struct {
	db *gorm.DB
}

func NewSchemaManager(db *gorm.DB) *SchemaManager {
	return &SchemaManager{db: db}
}

func (m *SchemaManager) Bind(ctx context.Context, schema string) (*gorm.DB, func(), error) {
	if !IsValidSchemaName(schema) {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidSchemaName, schema)
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}

	// Get a dedicated connection from pool
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get conn: %w", err)
	}

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s, public", quoteIdentifier(schema))); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to set search_path to %s: %w", schema, err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger:                 m.db.Config.Logger,
		SkipDefaultTransaction: m.db.Config.SkipDefaultTransaction,
	})
	if err != nil {
		m.reset(conn)
		return nil, nil, fmt.Errorf("failed to open gorm on bound connection: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() { m.reset(conn) })
	}
	return db, release, nil
}

// reset restores the session default before the connection goes back to the pool.
func (m *SchemaManager) reset(conn *sql.Conn) {
	// The request context may already be cancelled here.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(ctx, "RESET search_path"); err != nil {
		// Drop the connection instead of returning a tainted session to the pool.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	conn.Close()
}

// EnsureSchema creates the tenant schema when it does not exist yet.
func (m *SchemaManager) EnsureSchema(ctx context.Context, schema string) error {
	if !IsValidSchemaName(schema) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, schema)
	}
	return m.db.WithContext(ctx).Exec("CREATE SCHEMA IF NOT EXISTS " + quoteIdentifier(schema)).Error
}
