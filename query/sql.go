package query

import (
	"fmt"
	"strings"
)

// Statement is one compiled SELECT for a single geometry-class table.
// Columns records the selected tag keys in projection order; the row
// decoder maps result columns back onto property names through it, so
// compiler and decoder always agree on ordering.
type Statement struct {
	Table   string
	Class   GeometryClass
	Columns []string
	SQL     string
}

// ClauseKind tags the rendering variants of a tag predicate.
type ClauseKind int

const (
	IsNotNull ClauseKind = iota
	Equals
	In
	AnyOf
)

// Clause is a single tag predicate in structured form, ready for a dialect
// renderer. The variants replace the string surgery the predicates grew
// out of; the renderer output is pinned by tests.
type Clause struct {
	Key    string
	Kind   ClauseKind
	Values []string
}

// clauseFor classifies a filter into its rendering variant: no values or
// the "not null" sentinel ask for presence only, one value is an equality
// test, several are a membership test, and the nested list form matches
// any element of an array-valued tag.
func clauseFor(w WhereClause) Clause {
	switch {
	case w.AnyOf != nil:
		return Clause{Key: w.Key, Kind: AnyOf, Values: w.AnyOf}
	case w.NotNull():
		return Clause{Key: w.Key, Kind: IsNotNull}
	case len(w.Values) == 1:
		return Clause{Key: w.Key, Kind: Equals, Values: w.Values}
	}
	return Clause{Key: w.Key, Kind: In, Values: w.Values}
}

// postgisClause renders one predicate against the semi-structured tag
// store of the raw-data schema.
func postgisClause(c Clause) string {
	switch c.Kind {
	case IsNotNull:
		return fmt.Sprintf("tags->>'%s' IS NOT NULL", c.Key)
	case Equals:
		return fmt.Sprintf("tags->>'%s'='%s'", c.Key, c.Values[0])
	case AnyOf:
		return fmt.Sprintf("tags->>'%s'=ANY(ARRAY[%s])", c.Key, quoteList(c.Values))
	}
	return fmt.Sprintf("tags->>'%s' IN (%s)", c.Key, quoteList(c.Values))
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}

// whereSQL partitions the clauses by operator and joins the OR-group with
// OR and the AND-group with AND. When both groups are present they are
// joined with OR: the historical trailing-operator trim left the OR-group's
// dangling OR as the group joiner, and downstream queries depend on that
// grouping. Clauses with an unknown operator are dropped.
func whereSQL(clauses []WhereClause) string {
	var orParts, andParts []string
	for _, w := range clauses {
		rendered := postgisClause(clauseFor(w))
		switch w.Op {
		case "or":
			orParts = append(orParts, rendered)
		case "and":
			andParts = append(andParts, rendered)
		}
	}
	switch {
	case len(orParts) > 0 && len(andParts) > 0:
		return strings.Join(orParts, " OR ") + " OR " + strings.Join(andParts, " AND ")
	case len(orParts) > 0:
		return strings.Join(orParts, " OR ")
	case len(andParts) > 0:
		return strings.Join(andParts, " AND ")
	}
	return ""
}

// SQL compiles the configuration into one statement per declared table.
// The projection starts with the geometry as WKT (the full shape, or its
// centroid when allGeom is false), then osm_id and version, then one
// tags->> projection per select entry in declared order. Compilation is
// pure: an unchanged configuration compiles to byte-identical SQL.
func (cfg *Config) SQL(allGeom bool) []Statement {
	var stmts []Statement
	for _, table := range cfg.Tables {
		class := GeometryClass(table)

		geomExpr := "ST_AsText(geom)"
		if !allGeom {
			geomExpr = "ST_AsText(ST_Centroid(geom))"
		}
		cols := []string{geomExpr, "osm_id", "version"}
		var keys []string
		for _, entry := range cfg.Select[class] {
			cols = append(cols, fmt.Sprintf("tags->>'%s'", entry.Key))
			keys = append(keys, entry.Key)
		}

		sql := "SELECT " + strings.Join(cols, ", ") + " FROM " + table
		if where := whereSQL(cfg.Where[class]); where != "" {
			sql += " WHERE " + where
		}

		stmts = append(stmts, Statement{
			Table:   table,
			Class:   class,
			Columns: keys,
			SQL:     sql,
		})
	}
	return stmts
}
