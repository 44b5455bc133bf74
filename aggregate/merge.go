package aggregate

import (
	"sort"

	"usage-reports/billing"
)

// Merged est une ligne de la synthèse: compteurs du mois et de l'exercice pour un client.
// Le côté absent d'une vue vaut zéro.
type Merged struct {
	CustomerID   string
	Name         string
	BillingType  string
	ContactEmail string
	Balance      float64

	SuccessCount int64
	FailureCount int64
	TotalCount   int64
	Week         [Weeks]int64

	SuccessCountFY int64
	FailureCountFY int64
	TotalCountFY   int64
}

// SuccessRate en pourcentage sur le mois en cours.
func (m Merged) SuccessRate() float64 {
	if m.TotalCount == 0 {
		return 0
	}
	return float64(m.SuccessCount) * 100 / float64(m.TotalCount)
}

// Merge part de la vue FY puis superpose la vue MTD: les clients présents seulement
// dans MTD sont ajoutés avec des compteurs FY à zéro.
func Merge(fy []FYRecord, mtd []MTDRecord) []Merged {
	out := make([]Merged, 0, len(fy)+len(mtd))
	index := make(map[string]int, len(fy)+len(mtd))
	for _, f := range fy {
		if i, ok := index[f.CustomerID]; ok {
			out[i].SuccessCountFY, out[i].FailureCountFY, out[i].TotalCountFY = f.SuccessCountFY, f.FailureCountFY, f.TotalCountFY
			continue
		}
		index[f.CustomerID] = len(out)
		out = append(out, Merged{
			CustomerID:     f.CustomerID,
			SuccessCountFY: f.SuccessCountFY,
			FailureCountFY: f.FailureCountFY,
			TotalCountFY:   f.TotalCountFY,
		})
	}
	for _, m := range mtd {
		i, ok := index[m.CustomerID]
		if !ok {
			i = len(out)
			index[m.CustomerID] = i
			out = append(out, Merged{CustomerID: m.CustomerID})
		}
		out[i].SuccessCount = m.SuccessCount
		out[i].FailureCount = m.FailureCount
		out[i].TotalCount = m.TotalCount
		out[i].Week = m.Week
	}
	return out
}

// SortByTotal trie par total du mois décroissant.
func SortByTotal(rows []Merged) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalCount > rows[j].TotalCount })
}

// Annotate complète les lignes avec le profil de facturation connu.
func Annotate(rows []Merged, profiles map[string]billing.Profile) {
	for i := range rows {
		p, ok := profiles[rows[i].CustomerID]
		if !ok {
			continue
		}
		rows[i].Name = p.Name
		rows[i].BillingType = p.BillingType
		rows[i].ContactEmail = p.ContactEmail
		rows[i].Balance = p.Balance
	}
}
