package utils

import "time"

const DateLayout = "2006-01-02"

// ReportZone est le fuseau fixe (UTC+05:30) sur lequel sont alignés les jours des logs.
var ReportZone = time.FixedZone("IST", 5*3600+30*60)

// ParseDate lit une date calendaire YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, ReportZone)
}

// DayStart retourne le début du jour d dans ReportZone, en UTC
// (jour calendaire précédent, 18:30:00.000 UTC).
func DayStart(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, ReportZone).UTC()
}

// DayEnd retourne la dernière milliseconde du jour d (18:29:59.999 UTC).
func DayEnd(d time.Time) time.Time {
	return DayStart(d).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// MonthStart retourne le début du mois courant de now, vu depuis ReportZone.
func MonthStart(now time.Time) time.Time {
	local := now.In(ReportZone)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, ReportZone).UTC()
}

// FiscalYearStart retourne le 1er avril de l'exercice en cours (avril-mars).
func FiscalYearStart(now time.Time) time.Time {
	local := now.In(ReportZone)
	year := local.Year()
	if local.Month() < time.April {
		year--
	}
	return time.Date(year, time.April, 1, 0, 0, 0, 0, ReportZone).UTC()
}

// FormatDisplay formate un instant pour l'affichage (listes, exports).
func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(ReportZone).Format("2006-01-02 15:04:05")
}
