// Package database ouvre le pool SQL partagé par le ledger, la lecture des logs
// et les vues agrégées. Les requêtes sont écrites avec des placeholders "?" et
// réécrites par Rebind pour les drivers PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
	DialectMySQL
)

// DB enveloppe *sql.DB avec le dialecte du driver.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// DialectFor retourne le dialecte d'un nom de driver database/sql.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return DialectSQLite, nil
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", driver)
}

// Open ouvre et vérifie la connexion. Pour MySQL le DSN doit contenir parseTime=true.
func Open(ctx context.Context, driver, dsn string, maxOpen int) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect == DialectSQLite {
		// SQLite n'accepte qu'un écrivain à la fois
		db.SetMaxOpenConns(1)
	} else if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &DB{DB: db, Dialect: dialect}, nil
}

// Rebind convertit les "?" en "$n" pour PostgreSQL.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Dialect, query)
}

func Rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Placeholders retourne "?, ?, ?" pour n valeurs.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
