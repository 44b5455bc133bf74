// Package aggregate maintient les vues de consommation par client (mois en cours
// et exercice fiscal), les fusionne et envoie la synthèse quotidienne.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"usage-reports/database"
	"usage-reports/utils"
)

// Weeks: nombre de tranches hebdomadaires du mois (jours 1-7, 8-14, 15-21, 22-28, 29+).
const Weeks = 5

type MTDRecord struct {
	CustomerID   string
	SuccessCount int64
	FailureCount int64
	TotalCount   int64
	Week         [Weeks]int64
}

type FYRecord struct {
	CustomerID     string
	SuccessCountFY int64
	FailureCountFY int64
	TotalCountFY   int64
}

// Views reconstruit aggregate_mtd et aggregate_fy depuis la table de logs d'un environnement.
type Views struct {
	db    *database.DB
	table string
}

func NewViews(db *database.DB, logTable string) (*Views, error) {
	if !database.ValidIdentifier(logTable) {
		return nil, fmt.Errorf("invalid log table name %q", logTable)
	}
	return &Views{db: db, table: logTable}, nil
}

const successCase = "SUM(CASE WHEN status_code > 0 AND status_code < 400 THEN 1 ELSE 0 END)"

// RefreshMTD recalcule la vue du mois en cours (jour aligné sur UTC+05:30).
func (v *Views) RefreshMTD(ctx context.Context, now time.Time) (int64, error) {
	start := utils.MonthStart(now)
	var weekCols, weekSums []string
	var args []interface{}
	for i := 0; i < Weeks; i++ {
		weekCols = append(weekCols, fmt.Sprintf("week_%d", i+1))
		lo := start.AddDate(0, 0, 7*i)
		if i == Weeks-1 {
			weekSums = append(weekSums, "SUM(CASE WHEN request_at >= ? THEN 1 ELSE 0 END)")
			args = append(args, lo)
			continue
		}
		weekSums = append(weekSums, "SUM(CASE WHEN request_at >= ? AND request_at < ? THEN 1 ELSE 0 END)")
		args = append(args, lo, start.AddDate(0, 0, 7*(i+1)))
	}
	args = append(args, start, now.UTC())
	insert := fmt.Sprintf(`INSERT INTO aggregate_mtd (customer_id, success_count, failure_count, total_count, %s, refreshed_at)
		SELECT customer_id, %s, COUNT(*) - %s, COUNT(*), %s, CURRENT_TIMESTAMP
		FROM %s WHERE request_at >= ? AND request_at <= ? GROUP BY customer_id`,
		strings.Join(weekCols, ", "), successCase, successCase, strings.Join(weekSums, ", "), v.table)
	return v.rebuild(ctx, "aggregate_mtd", insert, args)
}

// RefreshFY recalcule la vue de l'exercice fiscal en cours (1er avril - 31 mars).
func (v *Views) RefreshFY(ctx context.Context, now time.Time) (int64, error) {
	insert := fmt.Sprintf(`INSERT INTO aggregate_fy (customer_id, success_count_fy, failure_count_fy, total_count_fy, refreshed_at)
		SELECT customer_id, %s, COUNT(*) - %s, COUNT(*), CURRENT_TIMESTAMP
		FROM %s WHERE request_at >= ? AND request_at <= ? GROUP BY customer_id`, successCase, successCase, v.table)
	return v.rebuild(ctx, "aggregate_fy", insert, []interface{}{utils.FiscalYearStart(now), now.UTC()})
}

func (v *Views) rebuild(ctx context.Context, view, insert string, args []interface{}) (int64, error) {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+view); err != nil {
		return 0, fmt.Errorf("clear %s: %w", view, err)
	}
	res, err := tx.ExecContext(ctx, v.db.Rebind(insert), args...)
	if err != nil {
		return 0, fmt.Errorf("refresh %s: %w", view, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (v *Views) ReadMTD(ctx context.Context) ([]MTDRecord, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT customer_id, success_count, failure_count, total_count,
		week_1, week_2, week_3, week_4, week_5 FROM aggregate_mtd ORDER BY customer_id`)
	if err != nil {
		return nil, fmt.Errorf("read aggregate_mtd: %w", err)
	}
	defer rows.Close()
	var out []MTDRecord
	for rows.Next() {
		var r MTDRecord
		if err := rows.Scan(&r.CustomerID, &r.SuccessCount, &r.FailureCount, &r.TotalCount,
			&r.Week[0], &r.Week[1], &r.Week[2], &r.Week[3], &r.Week[4]); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (v *Views) ReadFY(ctx context.Context) ([]FYRecord, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT customer_id, success_count_fy, failure_count_fy, total_count_fy
		FROM aggregate_fy ORDER BY customer_id`)
	if err != nil {
		return nil, fmt.Errorf("read aggregate_fy: %w", err)
	}
	defer rows.Close()
	var out []FYRecord
	for rows.Next() {
		var r FYRecord
		if err := rows.Scan(&r.CustomerID, &r.SuccessCountFY, &r.FailureCountFY, &r.TotalCountFY); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
