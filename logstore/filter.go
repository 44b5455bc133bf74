package logstore

import (
	"strings"
	"time"

	"usage-reports/utils"
)

// Filter décrit le sous-ensemble de logs demandé. From/Upto sont des dates
// calendaires (jour inclus), converties en bornes UTC par Predicate.
type Filter struct {
	CustomerID  string     `json:"customer_id,omitempty"`
	ProductID   int64      `json:"product_id,omitempty"`
	Search      string     `json:"search,omitempty"`
	From        *time.Time `json:"from_date,omitempty"`
	Upto        *time.Time `json:"upto_date,omitempty"`
	Environment string     `json:"environment"`
}

// Scoped indique si le filtre vise un client ou un produit précis.
func (f Filter) Scoped() bool {
	return f.CustomerID != "" || f.ProductID > 0
}

// Predicate est une clause WHERE (placeholders "?") et ses arguments.
type Predicate struct {
	Where string
	Args  []interface{}
}

// BuildPredicate construit la liste des conditions, combinées en AND.
func BuildPredicate(f Filter) Predicate {
	var conds []string
	var args []interface{}

	if f.CustomerID != "" {
		conds = append(conds, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "LOWER(host) LIKE ? ESCAPE '!'")
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
	}
	if f.ProductID > 0 {
		conds = append(conds, "product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.From != nil {
		conds = append(conds, "request_at >= ?")
		args = append(args, utils.DayStart(*f.From))
	}
	if f.Upto != nil {
		conds = append(conds, "request_at <= ?")
		args = append(args, utils.DayEnd(*f.Upto))
	}
	if len(conds) == 0 {
		return Predicate{}
	}
	return Predicate{Where: "WHERE " + strings.Join(conds, " AND "), Args: args}
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
