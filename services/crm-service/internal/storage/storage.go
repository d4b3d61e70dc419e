// Package storage maps CRM records to Postgres. Every row is parsed into a
// typed model on read; rows carrying values outside the model's enums or
// clock formats are reported as corrupt rather than passed on.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
)

var ErrCorruptRow = errors.New("corrupt row")

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Page is a limit/offset window over a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageFromNumber converts 1-based page numbers to a window.
func PageFromNumber(page, size int) Page {
	p := Page{Limit: size}.normalized()
	if page > 1 {
		p.Offset = (page - 1) * p.Limit
	}
	return p
}

type scanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed predicates with positional arguments. Each clause
// carries a single %d for its placeholder number.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

// paginate appends LIMIT/OFFSET placeholders and returns the clause.
func (w *where) paginate(p Page) string {
	p = p.normalized()
	w.args = append(w.args, p.Limit, p.Offset)
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}

func corrupt(table, id, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s: %s", ErrCorruptRow, table, id, fmt.Sprintf(format, args...))
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkClock(table, id, field, value string) error {
	if _, err := availability.ParseClock(value); err != nil {
		return corrupt(table, id, "%s %q", field, value)
	}
	return nil
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

func requireOne(n int64) error {
	if n == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
