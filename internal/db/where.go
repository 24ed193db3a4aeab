package db

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed predicates and their positional arguments.
type Where struct {
	clauses []string
	args    []any
}

// Arg appends v and returns its placeholder ($n).
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// Add appends a predicate built with placeholders from Arg.
func (w *Where) Add(clause string) {
	w.clauses = append(w.clauses, clause)
}

// Eq adds "column = $n" unless value is empty.
func (w *Where) Eq(column, value string) {
	if value == "" {
		return
	}
	w.Add(column + " = " + w.Arg(value))
}

// SQL renders the WHERE clause, or "" when there are no predicates.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *Where) Args() []any {
	return w.args
}
