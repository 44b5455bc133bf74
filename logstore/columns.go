package logstore

import (
	"strconv"
	"strings"

	"usage-reports/utils"
)

// ColumnSet choisit la projection des colonnes d'un export, selon le rôle du demandeur.
type ColumnSet int

const (
	ColumnsDefault ColumnSet = iota
	ColumnsExtended
)

var elevatedRoles = map[string]bool{"admin": true, "superadmin": true}

// IsElevated: les rôles admin voient les colonnes étendues et les demandes des autres.
func IsElevated(role string) bool {
	return elevatedRoles[strings.ToLower(strings.TrimSpace(role))]
}

// ColumnsFor résout la projection une fois par job.
func ColumnsFor(role string) ColumnSet {
	if IsElevated(role) {
		return ColumnsExtended
	}
	return ColumnsDefault
}

func (c ColumnSet) String() string {
	if c == ColumnsExtended {
		return "extended"
	}
	return "default"
}

type column struct {
	header string
	value  func(Record) string
}

var defaultColumns = []column{
	{"Request Time", func(r Record) string { return utils.FormatDisplay(r.RequestAt) }},
	{"Customer", func(r Record) string { return r.CustomerID }},
	{"Product ID", func(r Record) string { return strconv.FormatInt(r.ProductID, 10) }},
	{"Host", func(r Record) string { return r.Host }},
	{"Method", func(r Record) string { return r.Method }},
	{"Path", func(r Record) string { return r.Path }},
	{"Status Code", func(r Record) string { return strconv.Itoa(r.StatusCode) }},
	{"Result", func(r Record) string {
		if r.Success() {
			return "Success"
		}
		return "Failure"
	}},
	{"Response Time (ms)", func(r Record) string { return strconv.FormatInt(r.ResponseTimeMs, 10) }},
}

// Colonnes réservées aux rôles élevés: IP et décomposition de la latence.
var extendedColumns = append(append([]column{}, defaultColumns...),
	column{"Client IP", func(r Record) string { return r.ClientIP }},
	column{"Upstream Latency (ms)", func(r Record) string { return strconv.FormatInt(r.UpstreamLatencyMs, 10) }},
	column{"Gateway Latency (ms)", func(r Record) string { return strconv.FormatInt(r.GatewayLatencyMs, 10) }},
	column{"Log ID", func(r Record) string { return strconv.FormatInt(r.ID, 10) }},
)

func (c ColumnSet) columns() []column {
	if c == ColumnsExtended {
		return extendedColumns
	}
	return defaultColumns
}

// Headers retourne les en-têtes dans l'ordre de la projection.
func (c ColumnSet) Headers() []string {
	cols := c.columns()
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col.header
	}
	return out
}

// Project convertit un log en ligne d'export.
func (c ColumnSet) Project(r Record) []string {
	cols := c.columns()
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col.value(r)
	}
	return out
}
