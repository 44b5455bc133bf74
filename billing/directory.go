// Package billing résout les métadonnées de facturation des clients (profil,
// contact, solde du wallet) et déclenche le rafraîchissement des soldes pré-payés.
package billing

import (
	"context"
	"fmt"
	"strings"

	"usage-reports/database"
)

const (
	Prepaid  = "prepaid"
	Postpaid = "postpaid"
)

type Profile struct {
	CustomerID   string
	Name         string
	BillingType  string
	ContactEmail string
	Balance      float64
}

func (p Profile) Prepaid() bool {
	return strings.EqualFold(p.BillingType, Prepaid)
}

// Directory lit les tables customers et wallets.
type Directory struct {
	db *database.DB
}

func NewDirectory(db *database.DB) *Directory {
	return &Directory{db: db}
}

// Profiles retourne les profils connus, indexés par identifiant client.
func (d *Directory) Profiles(ctx context.Context) (map[string]Profile, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT c.customer_id, c.name, c.billing_type, c.contact_email, COALESCE(w.balance, 0)
		FROM customers c LEFT JOIN wallets w ON w.customer_id = c.customer_id`)
	if err != nil {
		return nil, fmt.Errorf("load customer profiles: %w", err)
	}
	defer rows.Close()
	out := make(map[string]Profile)
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.CustomerID, &p.Name, &p.BillingType, &p.ContactEmail, &p.Balance); err != nil {
			return nil, fmt.Errorf("scan customer profile: %w", err)
		}
		out[p.CustomerID] = p
	}
	return out, rows.Err()
}

// Upsert crée ou met à jour un client et son solde; utilisé par les outils et les tests.
func (d *Directory) Upsert(ctx context.Context, p Profile) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []struct {
		stmt string
		args []interface{}
	}{
		{"DELETE FROM customers WHERE customer_id = ?", []interface{}{p.CustomerID}},
		{"INSERT INTO customers (customer_id, name, billing_type, contact_email) VALUES (?, ?, ?, ?)",
			[]interface{}{p.CustomerID, p.Name, p.BillingType, p.ContactEmail}},
		{"DELETE FROM wallets WHERE customer_id = ?", []interface{}{p.CustomerID}},
		{"INSERT INTO wallets (customer_id, balance) VALUES (?, ?)", []interface{}{p.CustomerID, p.Balance}},
	} {
		if _, err := tx.ExecContext(ctx, d.db.Rebind(q.stmt), q.args...); err != nil {
			return fmt.Errorf("upsert customer %s: %w", p.CustomerID, err)
		}
	}
	return tx.Commit()
}
