// pkg/database/database.go
package database

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB enveloppe la connexion Postgres
type DB struct {
	conn *sql.DB
}

// NewDB crée une nouvelle connexion à la base de données
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configuration du pool de connexions
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test de connexion
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Migrate applique les migrations embarquées.
// En production Supabase le schéma est géré en dehors du serveur;
// ceci sert les environnements de développement auto-hébergés.
func (db *DB) Migrate() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db.conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Ping vérifie la connexion
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close ferme la connexion
func (db *DB) Close() error {
	return db.conn.Close()
}
