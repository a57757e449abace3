// Package db owns the shared Postgres handle. All entitlement and workspace
// state lives in this one database; services and handlers reach it through
// GetDB.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

var database *sql.DB

// InitDB connects using DATABASE_URL and verifies the connection.
func InitDB() error {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}

	d, err := sql.Open("postgres", connStr)
	if err != nil {
		return err
	}

	// Stripe redelivers webhooks in bursts after an outage; a bounded pool
	// makes the handlers queue instead of exhausting Postgres connections.
	d.SetMaxOpenConns(20)
	d.SetMaxIdleConns(5)
	d.SetConnMaxLifetime(30 * time.Minute)

	if err := d.Ping(); err != nil {
		return err
	}
	database = d
	return nil
}

// GetDB returns the shared handle. InitDB must have succeeded first.
func GetDB() *sql.DB {
	return database
}

// SetDB replaces the shared handle. Tests use it to install a mock
// connection in place of a real Postgres.
func SetDB(d *sql.DB) {
	database = d
}
