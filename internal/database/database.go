// Package database manages the read-only MySQL connection used to cross-check
// batch results against the ERP backend.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/dbsmedya/goerpcheck/internal/config"
)

// Manager owns the ERP database connection.
type Manager struct {
	DB         *sql.DB
	config     *config.DatabaseConfig
	maxRetries int
	backoff    time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.DatabaseConfig) *Manager {
	return &Manager{
		config:     cfg,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Connect opens and pings the ERP database.
func (m *Manager) Connect(ctx context.Context) error {
	if m.config == nil {
		return fmt.Errorf("database configuration is nil")
	}
	db, err := m.connectWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to ERP database: %w", err)
	}
	m.DB = db
	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context) (*sql.DB, error) {
	var err error
	backoff := m.backoff

	for i := 0; i < m.maxRetries; i++ {
		var db *sql.DB
		db, err = m.connect()
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				return db, nil
			}
			db.Close()
		}

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.maxRetries, err)
}

func (m *Manager) connect() (*sql.DB, error) {
	db, err := sql.Open("mysql", BuildDSN(m.config))
	if err != nil {
		return nil, err
	}

	if m.config.MaxConnections > 0 {
		db.SetMaxOpenConns(m.config.MaxConnections)
	}
	if m.config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(m.config.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	params := "?parseTime=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes the connection if it is open.
func (m *Manager) Close() error {
	if m.DB == nil {
		return nil
	}
	if err := m.DB.Close(); err != nil {
		return fmt.Errorf("ERP database close: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.DB == nil {
		return fmt.Errorf("not connected")
	}
	if err := m.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ERP database ping failed: %w", err)
	}
	return nil
}
