package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/stamp"
	"github.com/starford/dagaz/internal/store"
)

// Service coordinates entry aggregate operations over the store. All writes
// run inside a single transaction so a failure never leaves a partial entry.
type Service struct {
	st            *store.Store
	weekdayOrigin int
}

// NewService creates an entry service. weekdayOrigin selects which weekday is
// numbered zero in the Dates table (0 = Monday).
func NewService(st *store.Store, weekdayOrigin int) (*Service, error) {
	if !stamp.ValidOrigin(weekdayOrigin) {
		return nil, fmt.Errorf("journal: weekday origin %d: %w", weekdayOrigin, apperr.ErrInvalidArgument)
	}
	return &Service{st: st, weekdayOrigin: weekdayOrigin}, nil
}

// Store returns the underlying store, for wiring the query engine.
func (s *Service) Store() *store.Store { return s.st }

// Create inserts a new entry with its tags, attachments, and optional parent
// link, and returns the new entry id.
func (s *Service) Create(ctx context.Context, d Draft) (int64, error) {
	tags, err := normalizeTags(d.Tags)
	if err != nil {
		return 0, err
	}
	created := d.Created
	if created.IsZero() {
		created = stamp.Now()
	}
	now := stamp.Format(stamp.Now())

	var id int64
	err = s.st.WithTx(ctx, func(q store.Querier) error {
		res, err := q.ExecContext(ctx, `INSERT INTO Bodies (body) VALUES (?)`, d.Body)
		if err != nil {
			return fmt.Errorf("journal: insert body: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("journal: entry id: %w", err)
		}
		if err := s.writeDates(ctx, q, id, created, now); err != nil {
			return err
		}
		for _, tag := range tags {
			if err := insertTag(ctx, q, id, tag); err != nil {
				return err
			}
		}
		for _, src := range d.Attachments {
			if err := insertAttachment(ctx, q, id, src, now); err != nil {
				return err
			}
		}
		if d.Parent != 0 {
			return s.linkTx(ctx, q, id, d.Parent)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get returns the full aggregate for an entry id.
func (s *Service) Get(ctx context.Context, id int64) (*Entry, error) {
	if id < 1 {
		return nil, fmt.Errorf("journal: entry id %d: %w", id, apperr.ErrInvalidArgument)
	}
	q := s.st.Read()

	e := &Entry{ID: id}
	var createdStr string
	var lastEdit sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT b.body, d.string, d.last_edit
		FROM Bodies b JOIN Dates d ON d.entry_id = b.entry_id
		WHERE b.entry_id = ?
	`, id).Scan(&e.Body, &createdStr, &lastEdit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: entry %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: read entry %d: %w", id, err)
	}
	if e.Created, err = stamp.Parse(createdStr); err != nil {
		return nil, err
	}
	if lastEdit.Valid {
		if e.LastEdit, err = stamp.Parse(lastEdit.String); err != nil {
			return nil, err
		}
	}

	if e.Tags, err = entryTags(ctx, q, id); err != nil {
		return nil, err
	}
	if e.Attachments, err = entryAttachments(ctx, q, id); err != nil {
		return nil, err
	}
	if e.Parent, err = parentOf(ctx, q, id); err != nil {
		return nil, err
	}
	if e.Children, err = childrenOf(ctx, q, id); err != nil {
		return nil, err
	}
	return e, nil
}

// Update applies a change delta in one transaction. An empty delta is a
// no-op and does not bump last_edit.
func (s *Service) Update(ctx context.Context, id int64, c Change) error {
	if id < 1 {
		return fmt.Errorf("journal: entry id %d: %w", id, apperr.ErrInvalidArgument)
	}
	if c.empty() {
		return s.mustExist(ctx, s.st.Read(), id)
	}
	var newTags []string
	if c.Tags != nil {
		var err error
		if newTags, err = normalizeTags(*c.Tags); err != nil {
			return err
		}
	}
	now := stamp.Format(stamp.Now())

	return s.st.WithTx(ctx, func(q store.Querier) error {
		if err := s.mustExist(ctx, q, id); err != nil {
			return err
		}
		if c.Body != nil {
			if _, err := q.ExecContext(ctx,
				`UPDATE Bodies SET body = ? WHERE entry_id = ?`, *c.Body, id); err != nil {
				return fmt.Errorf("journal: update body: %w", err)
			}
		}
		if c.Created != nil {
			if _, err := q.ExecContext(ctx, `DELETE FROM Dates WHERE entry_id = ?`, id); err != nil {
				return fmt.Errorf("journal: clear dates: %w", err)
			}
			if err := s.writeDates(ctx, q, id, *c.Created, now); err != nil {
				return err
			}
		}
		if c.Tags != nil {
			if err := diffTags(ctx, q, id, newTags); err != nil {
				return err
			}
		}
		for _, attID := range c.RemoveAttachments {
			if err := removeAttachment(ctx, q, id, attID); err != nil {
				return err
			}
		}
		for _, src := range c.AddAttachments {
			if err := insertAttachment(ctx, q, id, src, now); err != nil {
				return err
			}
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE Dates SET last_edit = ? WHERE entry_id = ?`, now, id); err != nil {
			return fmt.Errorf("journal: bump last_edit: %w", err)
		}
		return nil
	})
}

// Delete removes an entry and cascades to its tags, attachments, and any
// relation where it appears as child or parent. Deleting an absent entry
// reports NotFound.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return fmt.Errorf("journal: entry id %d: %w", id, apperr.ErrInvalidArgument)
	}
	return s.st.WithTx(ctx, func(q store.Querier) error {
		if err := s.mustExist(ctx, q, id); err != nil {
			return err
		}
		steps := []struct {
			stmt string
			args []any
		}{
			{`DELETE FROM Tags WHERE entry_id = ?`, []any{id}},
			{`DELETE FROM Attachments WHERE entry_id = ?`, []any{id}},
			{`DELETE FROM Relations WHERE child = ? OR parent = ?`, []any{id, id}},
			{`DELETE FROM Dates WHERE entry_id = ?`, []any{id}},
			{`DELETE FROM Bodies WHERE entry_id = ?`, []any{id}},
		}
		for _, step := range steps {
			if _, err := q.ExecContext(ctx, step.stmt, step.args...); err != nil {
				return fmt.Errorf("journal: delete entry %d: %w", id, err)
			}
		}
		return nil
	})
}

// Link records parent as the parent of child. It rejects self-links, a second
// parent for the same child, and any edge that would make an entry its own
// ancestor.
func (s *Service) Link(ctx context.Context, child, parent int64) error {
	if child < 1 || parent < 1 {
		return fmt.Errorf("journal: link %d -> %d: %w", child, parent, apperr.ErrInvalidArgument)
	}
	return s.st.WithTx(ctx, func(q store.Querier) error {
		return s.linkTx(ctx, q, child, parent)
	})
}

func (s *Service) linkTx(ctx context.Context, q store.Querier, child, parent int64) error {
	if child == parent {
		return fmt.Errorf("journal: entry %d cannot be its own parent: %w", child, apperr.ErrInvalidArgument)
	}
	if err := s.mustExist(ctx, q, child); err != nil {
		return err
	}
	if err := s.mustExist(ctx, q, parent); err != nil {
		return err
	}
	existing, err := parentOf(ctx, q, child)
	if err != nil {
		return err
	}
	if existing != 0 {
		return fmt.Errorf("journal: entry %d already has parent %d: %w", child, existing, apperr.ErrConflict)
	}
	// Reject if child is an ancestor of parent: the new edge would close a
	// cycle through the parent chain.
	for cur := parent; cur != 0; {
		up, err := parentOf(ctx, q, cur)
		if err != nil {
			return err
		}
		if up == child {
			return fmt.Errorf("journal: link %d -> %d: %w", child, parent, apperr.ErrCycleForbidden)
		}
		cur = up
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO Relations (child, parent) VALUES (?, ?)`, child, parent); err != nil {
		return fmt.Errorf("journal: insert relation: %w", err)
	}
	return nil
}

// Ancestors returns the parent chain of an entry, nearest first.
func (s *Service) Ancestors(ctx context.Context, id int64) ([]int64, error) {
	q := s.st.Read()
	if err := s.mustExist(ctx, q, id); err != nil {
		return nil, err
	}
	var out []int64
	for cur := id; ; {
		up, err := parentOf(ctx, q, cur)
		if err != nil {
			return nil, err
		}
		if up == 0 {
			return out, nil
		}
		out = append(out, up)
		cur = up
	}
}

// Descendants returns every entry below id, breadth-first, children of each
// node ordered by their created timestamp.
func (s *Service) Descendants(ctx context.Context, id int64) ([]int64, error) {
	q := s.st.Read()
	if err := s.mustExist(ctx, q, id); err != nil {
		return nil, err
	}
	var out []int64
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		kids, err := childrenOf(ctx, q, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, kids...)
		queue = append(queue, kids...)
	}
	return out, nil
}

// ExportAttachment returns the stored filename and blob for an attachment id.
func (s *Service) ExportAttachment(ctx context.Context, attID int64) (string, []byte, error) {
	var filename string
	var blob []byte
	err := s.st.Read().QueryRowContext(ctx,
		`SELECT filename, file FROM Attachments WHERE att_id = ?`, attID).Scan(&filename, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("journal: attachment %d: %w", attID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("journal: export attachment %d: %w", attID, err)
	}
	return filename, blob, nil
}

// ImportEntry creates an entry whose attachments are read from filesystem
// paths. Any unreadable path aborts the whole import.
func (s *Service) ImportEntry(ctx context.Context, body string, created time.Time, tags []string, paths []string) (int64, error) {
	sources := make([]Source, len(paths))
	for i, p := range paths {
		sources[i] = FileSource{Path: p}
	}
	return s.Create(ctx, Draft{Body: body, Created: created, Tags: tags, Attachments: sources})
}

func (s *Service) writeDates(ctx context.Context, q store.Querier, id int64, created time.Time, lastEdit string) error {
	f := stamp.Decompose(created, s.weekdayOrigin)
	_, err := q.ExecContext(ctx, `
		INSERT INTO Dates (entry_id, year, month, day, hour, minute, weekday, string, last_edit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, f.Year, f.Month, f.Day, f.Hour, f.Minute, f.Weekday, stamp.Format(created), lastEdit)
	if err != nil {
		return fmt.Errorf("journal: insert dates: %w", err)
	}
	return nil
}

func (s *Service) mustExist(ctx context.Context, q store.Querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM Bodies WHERE entry_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("journal: entry %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("journal: check entry %d: %w", id, err)
	}
	return nil
}

// normalizeTags rejects empty labels and deduplicates while preserving order.
// Trimming surrounding whitespace is the caller's job; a label that is all
// whitespace is still rejected here.
func normalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			return nil, fmt.Errorf("journal: empty tag label: %w", apperr.ErrInvalidArgument)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}

func insertTag(ctx context.Context, q store.Querier, id int64, tag string) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO Tags (entry_id, tag) VALUES (?, ?)`, id, tag); err != nil {
		return fmt.Errorf("journal: insert tag: %w", err)
	}
	return nil
}

// diffTags updates the entry's tag set by set-difference: insert labels in
// the new set but not the old, delete labels in the old set but not the new.
func diffTags(ctx context.Context, q store.Querier, id int64, newTags []string) error {
	current, err := entryTags(ctx, q, id)
	if err != nil {
		return err
	}
	old := make(map[string]struct{}, len(current))
	for _, tag := range current {
		old[tag] = struct{}{}
	}
	next := make(map[string]struct{}, len(newTags))
	for _, tag := range newTags {
		next[tag] = struct{}{}
	}
	for _, tag := range newTags {
		if _, ok := old[tag]; !ok {
			if err := insertTag(ctx, q, id, tag); err != nil {
				return err
			}
		}
	}
	for _, tag := range current {
		if _, ok := next[tag]; !ok {
			if _, err := q.ExecContext(ctx,
				`DELETE FROM Tags WHERE entry_id = ? AND tag = ?`, id, tag); err != nil {
				return fmt.Errorf("journal: delete tag: %w", err)
			}
		}
	}
	return nil
}

func insertAttachment(ctx context.Context, q store.Querier, id int64, src Source, added string) error {
	data, err := src.Bytes()
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO Attachments (entry_id, filename, file, added) VALUES (?, ?, ?, ?)`,
		id, src.Name(), data, added); err != nil {
		return fmt.Errorf("journal: insert attachment: %w", err)
	}
	return nil
}

func removeAttachment(ctx context.Context, q store.Querier, id, attID int64) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM Attachments WHERE att_id = ? AND entry_id = ?`, attID, id)
	if err != nil {
		return fmt.Errorf("journal: remove attachment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal: attachment %d on entry %d: %w", attID, id, apperr.ErrNotFound)
	}
	return nil
}

func entryTags(ctx context.Context, q store.Querier, id int64) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tag FROM Tags WHERE entry_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("journal: entry tags: %w", err)
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

func entryAttachments(ctx context.Context, q store.Querier, id int64) ([]Attachment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT att_id, filename, added FROM Attachments WHERE entry_id = ? ORDER BY added, att_id`, id)
	if err != nil {
		return nil, fmt.Errorf("journal: entry attachments: %w", err)
	}
	defer rows.Close()

	out := []Attachment{}
	for rows.Next() {
		var a Attachment
		var added string
		if err := rows.Scan(&a.ID, &a.Filename, &added); err != nil {
			return nil, err
		}
		if a.Added, err = stamp.Parse(added); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func parentOf(ctx context.Context, q store.Querier, id int64) (int64, error) {
	var parent int64
	err := q.QueryRowContext(ctx,
		`SELECT parent FROM Relations WHERE child = ?`, id).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("journal: parent of %d: %w", id, err)
	}
	return parent, nil
}

// childrenOf returns direct children ordered by their created timestamp,
// entry id as tiebreak.
func childrenOf(ctx context.Context, q store.Querier, id int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.child, d.string
		FROM Relations r JOIN Dates d ON d.entry_id = r.child
		WHERE r.parent = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("journal: children of %d: %w", id, err)
	}
	defer rows.Close()

	type kid struct {
		id      int64
		created string
	}
	var kids []kid
	for rows.Next() {
		var k kid
		if err := rows.Scan(&k.id, &k.created); err != nil {
			return nil, err
		}
		kids = append(kids, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(kids, func(i, j int) bool {
		if kids[i].created != kids[j].created {
			return kids[i].created < kids[j].created
		}
		return kids[i].id < kids[j].id
	})
	out := []int64{}
	for _, k := range kids {
		out = append(out, k.id)
	}
	return out, nil
}
