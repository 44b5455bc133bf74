package aggregate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"usage-reports/database"
)

// Settings lit la table clé/valeur settings (listes de diffusion notamment).
type Settings struct {
	db *database.DB
}

func NewSettings(db *database.DB) *Settings {
	return &Settings{db: db}
}

func (s *Settings) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT setting_value FROM settings WHERE setting_key = ?"), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Settings) Set(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, s.db.Rebind("DELETE FROM settings WHERE setting_key = ?"), key); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind("INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)"), key, value); err != nil {
		return err
	}
	return tx.Commit()
}

// DistributionList retourne les destinataires stockés sous key (séparés par virgule,
// point-virgule ou retour à la ligne).
func (s *Settings) DistributionList(ctx context.Context, key string) ([]string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("distribution list %q is not configured", key)
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("distribution list %q is empty", key)
	}
	return out, nil
}
