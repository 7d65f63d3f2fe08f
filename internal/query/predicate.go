// Package query implements the composable predicate engine over the journal
// store. Each predicate resolves to the set of entry ids it matches; the
// engine intersects the sets of all active predicates and orders the result
// by creation time.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/stamp"
	"github.com/starford/dagaz/internal/store"
)

// IDSet is the resolution of one predicate.
type IDSet = map[int64]struct{}

// Predicate matches a set of entry ids against the store.
type Predicate interface {
	Match(ctx context.Context, q store.Querier) (IDSet, error)
}

// TagMode selects the tag-set semantics of a Tags predicate.
type TagMode int

const (
	// AnyOf matches entries carrying at least one of the listed labels.
	AnyOf TagMode = iota
	// AtLeast matches entries whose tag set is a superset of the list.
	AtLeast
	// Only matches entries whose tag set equals the list exactly.
	Only
	// Untagged matches entries with no tags at all.
	Untagged
)

var tagModeNames = map[TagMode]string{
	AnyOf:    "any_of",
	AtLeast:  "at_least",
	Only:     "only",
	Untagged: "untagged",
}

func (m TagMode) String() string {
	if s, ok := tagModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("TagMode(%d)", int(m))
}

// ParseTagMode decodes a mode name as used in config files and query params.
func ParseTagMode(s string) (TagMode, error) {
	for m, name := range tagModeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("query: tag mode %q: %w", s, apperr.ErrInvalidArgument)
}

// UntaggedLabel is the reserved query-input label denoting the untagged
// marker. It has no special meaning inside the Tags table; its presence in a
// filter's label list switches the filter to Untagged mode.
const UntaggedLabel = "(UNTAGGED)"

// Tags filters by tag labels under one of the four tag modes. Comparison is
// exact and case-sensitive.
//
// Degenerate label lists follow set semantics: AnyOf of nothing matches
// nothing, AtLeast of nothing matches everything, Only of nothing matches
// exactly the untagged entries.
type Tags struct {
	Mode   TagMode
	Labels []string
}

// Match implements Predicate.
func (t Tags) Match(ctx context.Context, q store.Querier) (IDSet, error) {
	mode := t.Mode
	labels := make([]string, 0, len(t.Labels))
	seen := make(map[string]struct{}, len(t.Labels))
	for _, l := range t.Labels {
		if l == UntaggedLabel {
			mode = Untagged
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}

	switch mode {
	case Untagged:
		return collectIDs(ctx, q,
			`SELECT entry_id FROM Bodies WHERE entry_id NOT IN (SELECT entry_id FROM Tags)`)
	case AnyOf:
		if len(labels) == 0 {
			return IDSet{}, nil
		}
		in, args := placeholders(labels)
		return collectIDs(ctx, q,
			`SELECT DISTINCT entry_id FROM Tags WHERE tag IN (`+in+`)`, args...)
	case AtLeast:
		if len(labels) == 0 {
			return allIDs(ctx, q)
		}
		in, args := placeholders(labels)
		args = append(args, len(labels))
		return collectIDs(ctx, q, `
			SELECT entry_id FROM Tags WHERE tag IN (`+in+`)
			GROUP BY entry_id HAVING COUNT(DISTINCT tag) = ?
		`, args...)
	case Only:
		if len(labels) == 0 {
			return Tags{Mode: Untagged}.Match(ctx, q)
		}
		in, inArgs := placeholders(labels)
		args := append([]any{len(labels)}, inArgs...)
		args = append(args, len(labels))
		return collectIDs(ctx, q, `
			SELECT entry_id FROM Tags
			GROUP BY entry_id
			HAVING COUNT(DISTINCT tag) = ?
			   AND COUNT(DISTINCT CASE WHEN tag IN (`+in+`) THEN tag END) = ?
		`, args...)
	default:
		return nil, fmt.Errorf("query: tag mode %d: %w", int(mode), apperr.ErrInvalidArgument)
	}
}

// DateMode selects how a Date predicate interprets its endpoints.
type DateMode int

const (
	// Continuous matches canonical date strings lying lexicographically
	// between the two endpoints, inclusive.
	Continuous DateMode = iota
	// Intervals matches each decomposed field independently against its own
	// [lo, hi] range.
	Intervals
)

var dateModeNames = map[DateMode]string{
	Continuous: "continuous",
	Intervals:  "intervals",
}

func (m DateMode) String() string {
	if s, ok := dateModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("DateMode(%d)", int(m))
}

// ParseDateMode decodes a mode name as used in config files and query params.
func ParseDateMode(s string) (DateMode, error) {
	for m, name := range dateModeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("query: date mode %q: %w", s, apperr.ErrInvalidArgument)
}

// Span is an inclusive integer range over one decomposed date field.
type Span struct {
	Lo, Hi int
}

// Date filters by creation time. In Continuous mode the Lo/Hi endpoints are
// used (a zero endpoint leaves that side open). In Intervals mode the
// per-field spans are used; a nil span leaves that field unconstrained.
type Date struct {
	Mode DateMode

	Lo, Hi time.Time

	Year    *Span
	Month   *Span
	Day     *Span
	Hour    *Span
	Minute  *Span
	Weekday *Span
}

// Endpoint assembles an interval endpoint from independent fields, clamping
// the day to the last valid day of the month when the triple is impossible
// (e.g. February 31).
func Endpoint(year int, month time.Month, day, hour, minute int) time.Time {
	day = stamp.ClampDay(year, int(month), day)
	return time.Date(year, month, day, hour, minute, 0, 0, time.Local)
}

// Match implements Predicate.
func (d Date) Match(ctx context.Context, q store.Querier) (IDSet, error) {
	switch d.Mode {
	case Continuous:
		return d.matchContinuous(ctx, q)
	case Intervals:
		return d.matchIntervals(ctx, q)
	default:
		return nil, fmt.Errorf("query: date mode %d: %w", int(d.Mode), apperr.ErrInvalidArgument)
	}
}

func (d Date) matchContinuous(ctx context.Context, q store.Querier) (IDSet, error) {
	if !d.Lo.IsZero() && !d.Hi.IsZero() && d.Hi.Before(d.Lo) {
		return nil, fmt.Errorf("query: date range %s > %s: %w",
			stamp.Format(d.Lo), stamp.Format(d.Hi), apperr.ErrInvalidArgument)
	}
	var conds []string
	var args []any
	if !d.Lo.IsZero() {
		conds = append(conds, `string >= ?`)
		args = append(args, stamp.Format(d.Lo))
	}
	if !d.Hi.IsZero() {
		conds = append(conds, `string <= ?`)
		args = append(args, stamp.Format(d.Hi))
	}
	sql := `SELECT entry_id FROM Dates`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	return collectIDs(ctx, q, sql, args...)
}

// fieldBounds lists each interval field with the legal range its span must
// stay within. Year has no static bound: its open range is whatever the store
// has observed.
var fieldBounds = []struct {
	column   string
	min, max int
}{
	{"year", 0, -1}, // unchecked
	{"month", 1, 12},
	{"day", 1, 31},
	{"hour", 0, 23},
	{"minute", 0, 59},
	{"weekday", 0, 6},
}

func (d Date) spanFor(column string) *Span {
	switch column {
	case "year":
		return d.Year
	case "month":
		return d.Month
	case "day":
		return d.Day
	case "hour":
		return d.Hour
	case "minute":
		return d.Minute
	case "weekday":
		return d.Weekday
	}
	return nil
}

func (d Date) matchIntervals(ctx context.Context, q store.Querier) (IDSet, error) {
	var conds []string
	var args []any
	for _, f := range fieldBounds {
		span := d.spanFor(f.column)
		if span == nil {
			continue
		}
		if span.Lo > span.Hi {
			return nil, fmt.Errorf("query: %s span [%d, %d]: %w",
				f.column, span.Lo, span.Hi, apperr.ErrInvalidArgument)
		}
		if f.max >= f.min && (span.Lo < f.min || span.Hi > f.max) {
			return nil, fmt.Errorf("query: %s span [%d, %d] outside [%d, %d]: %w",
				f.column, span.Lo, span.Hi, f.min, f.max, apperr.ErrInvalidArgument)
		}
		conds = append(conds, f.column+` BETWEEN ? AND ?`)
		args = append(args, span.Lo, span.Hi)
	}
	sql := `SELECT entry_id FROM Dates`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	return collectIDs(ctx, q, sql, args...)
}

// Body filters by body content. The empty query matches only entries with a
// literally empty body; any other query is a case-insensitive substring
// match. Folding happens in Go so that non-ASCII bodies fold correctly.
type Body struct {
	Query string
}

// Match implements Predicate.
func (b Body) Match(ctx context.Context, q store.Querier) (IDSet, error) {
	if b.Query == "" {
		return collectIDs(ctx, q, `SELECT entry_id FROM Bodies WHERE body = ''`)
	}
	needle := strings.ToLower(b.Query)

	rows, err := q.QueryContext(ctx, `SELECT entry_id, body FROM Bodies`)
	if err != nil {
		return nil, fmt.Errorf("query: scan bodies: %w", err)
	}
	defer rows.Close()

	out := IDSet{}
	for rows.Next() {
		var id int64
		var body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(body), needle) {
			out[id] = struct{}{}
		}
	}
	return out, rows.Err()
}

// HasAttachments matches entries with at least one attachment.
type HasAttachments struct{}

// Match implements Predicate.
func (HasAttachments) Match(ctx context.Context, q store.Querier) (IDSet, error) {
	return collectIDs(ctx, q, `SELECT DISTINCT entry_id FROM Attachments`)
}

// HasParent matches entries that appear as child in Relations.
type HasParent struct{}

// Match implements Predicate.
func (HasParent) Match(ctx context.Context, q store.Querier) (IDSet, error) {
	return collectIDs(ctx, q, `SELECT DISTINCT child FROM Relations`)
}

// HasChildren matches entries that appear as parent in Relations.
type HasChildren struct{}

// Match implements Predicate.
func (HasChildren) Match(ctx context.Context, q store.Querier) (IDSet, error) {
	return collectIDs(ctx, q, `SELECT DISTINCT parent FROM Relations`)
}

func collectIDs(ctx context.Context, q store.Querier, sql string, args ...any) (IDSet, error) {
	rows, err := q.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: collect ids: %w", err)
	}
	defer rows.Close()

	out := IDSet{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func allIDs(ctx context.Context, q store.Querier) (IDSet, error) {
	return collectIDs(ctx, q, `SELECT entry_id FROM Bodies`)
}

func placeholders(labels []string) (string, []any) {
	args := make([]any, len(labels))
	for i, l := range labels {
		args[i] = l
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(labels)), ","), args
}
