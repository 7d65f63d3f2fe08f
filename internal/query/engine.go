package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/starford/dagaz/internal/stamp"
	"github.com/starford/dagaz/internal/store"
)

// Engine composes predicates against one store. Predicates are ANDed: an
// entry is in the result only if every predicate matches it. No predicates
// means every entry matches. The result is always ordered ascending by
// creation time, entry id as tiebreak.
type Engine struct {
	st *store.Store
}

// NewEngine creates an engine over the store.
func NewEngine(st *store.Store) *Engine {
	return &Engine{st: st}
}

// Run resolves every predicate, intersects the id sets, and returns the
// ordered result. An empty result is a success, never an error.
func (e *Engine) Run(ctx context.Context, preds ...Predicate) ([]int64, error) {
	q := e.st.Read()

	var acc IDSet
	for _, p := range preds {
		ids, err := p.Match(ctx, q)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = ids
			continue
		}
		for id := range acc {
			if _, ok := ids[id]; !ok {
				delete(acc, id)
			}
		}
		if len(acc) == 0 {
			return []int64{}, nil
		}
	}

	rows, err := q.QueryContext(ctx, `SELECT entry_id, string FROM Dates`)
	if err != nil {
		return nil, fmt.Errorf("query: order result: %w", err)
	}
	defer rows.Close()

	type row struct {
		id      int64
		created string
	}
	var matched []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.created); err != nil {
			return nil, err
		}
		if acc != nil {
			if _, ok := acc[r.id]; !ok {
				continue
			}
		}
		matched = append(matched, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].created != matched[j].created {
			return matched[i].created < matched[j].created
		}
		return matched[i].id < matched[j].id
	})
	out := make([]int64, len(matched))
	for i, r := range matched {
		out[i] = r.id
	}
	return out, nil
}

// AllTags returns the sorted, deduplicated set of labels across all entries.
func (e *Engine) AllTags(ctx context.Context) ([]string, error) {
	rows, err := e.st.Read().QueryContext(ctx, `SELECT DISTINCT tag FROM Tags ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("query: all tags: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// AllDates returns every canonical creation timestamp, sorted ascending.
func (e *Engine) AllDates(ctx context.Context) ([]time.Time, error) {
	rows, err := e.st.Read().QueryContext(ctx, `SELECT string FROM Dates ORDER BY string`)
	if err != nil {
		return nil, fmt.Errorf("query: all dates: %w", err)
	}
	defer rows.Close()

	out := []time.Time{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		t, err := stamp.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// YearRange returns the minimum and maximum creation year, with ok false
// when the store holds no entries.
func (e *Engine) YearRange(ctx context.Context) (lo, hi int, ok bool, err error) {
	var nlo, nhi sql.NullInt64
	err = e.st.Read().QueryRowContext(ctx,
		`SELECT MIN(year), MAX(year) FROM Dates`).Scan(&nlo, &nhi)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query: year range: %w", err)
	}
	if !nlo.Valid {
		return 0, 0, false, nil
	}
	return int(nlo.Int64), int(nhi.Int64), true, nil
}

// EntryCount returns the number of entries in the store.
func (e *Engine) EntryCount(ctx context.Context) (int, error) {
	var n int
	if err := e.st.Read().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM Bodies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("query: entry count: %w", err)
	}
	return n, nil
}

// TagsInDateRange returns the sorted union of labels over entries matching
// the given date predicate.
func (e *Engine) TagsInDateRange(ctx context.Context, d Date) ([]string, error) {
	q := e.st.Read()
	ids, err := d.Match(ctx, q)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT entry_id, tag FROM Tags`)
	if err != nil {
		return nil, fmt.Errorf("query: tags in range: %w", err)
	}
	defer rows.Close()

	seen := map[string]struct{}{}
	for rows.Next() {
		var id int64
		var tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		if _, ok := ids[id]; ok {
			seen[tag] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}
