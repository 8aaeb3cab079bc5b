package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"civicwatch/config"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// Sentinel errors surfaced to handlers. Anything else is treated as a
// transient store failure.
var (
	ErrNotFound           = errors.New("report not found")
	ErrDuplicateContent   = errors.New("report with this content already exists")
	ErrAlreadyAppreciated = errors.New("report already appreciated from this address")
)

// Database handles all database operations.
type Database struct {
	db *sql.DB
}

// NewDatabase opens a MySQL connection pool and verifies it. An unreachable
// store here is fatal to the caller: the process must not serve traffic
// without its store.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("Database connected to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return &Database{db: db}, nil
}

// NewFromDB wraps an existing connection. Used by tests with sqlmock.
func NewFromDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// DB exposes the underlying handle for wiring.
func (d *Database) DB() *sql.DB {
	return d.db
}

// InitSchema creates the tables if they do not exist yet.
func (d *Database) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			type ENUM('hero', 'corruption') NOT NULL,
			title VARCHAR(500) NOT NULL,
			description TEXT NOT NULL,
			location VARCHAR(255) NOT NULL DEFAULT '',
			state VARCHAR(100),
			category VARCHAR(100),
			tags TEXT,
			status ENUM('pending', 'verified', 'rejected') NOT NULL DEFAULT 'pending',
			source_type ENUM('user', 'aggregated') NOT NULL DEFAULT 'user',
			source_url VARCHAR(2048),
			content_hash CHAR(64) NOT NULL,
			view_count INT NOT NULL DEFAULT 0,
			appreciation_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_reports_content_hash (content_hash),
			INDEX idx_reports_type_status_created (type, status, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			report_id BIGINT NOT NULL,
			submitted_by VARCHAR(255) NOT NULL DEFAULT 'Anonymous',
			email VARCHAR(255),
			is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
			ip_address VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (report_id) REFERENCES reports(id)
		)`,
		`CREATE TABLE IF NOT EXISTS appreciations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			report_id BIGINT NOT NULL,
			ip_address VARCHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_appreciations_report_ip (report_id, ip_address),
			FOREIGN KEY (report_id) REFERENCES reports(id)
		)`,
		`CREATE TABLE IF NOT EXISTS content_ledger (
			content_hash CHAR(64) PRIMARY KEY,
			occurrence_count INT NOT NULL DEFAULT 1,
			first_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
