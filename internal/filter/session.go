// Package filter implements the stateful filter session: the active
// predicate set plus the most recent result. Every mutation recomputes the
// result immediately, so callers always observe a result consistent with the
// last accepted predicate set.
package filter

import (
	"context"

	"github.com/starford/dagaz/internal/query"
)

// Defaults are the neutral predicate modes a session returns to on Reset.
type Defaults struct {
	TagMode  query.TagMode
	DateMode query.DateMode
}

// Session holds the active predicates and the latest result. It is not safe
// for concurrent mutation; callers sharing one session must serialize.
type Session struct {
	engine   *query.Engine
	defaults Defaults

	tags           query.Tags
	date           query.Date
	body           string
	bodyActive     bool
	hasAttachments bool
	hasParent      bool
	hasChildren    bool

	result  []int64
	lastErr error
}

// NewSession creates a session in the neutral state with the unfiltered
// result already computed.
func NewSession(ctx context.Context, engine *query.Engine, defaults Defaults) (*Session, error) {
	s := &Session{engine: engine, defaults: defaults}
	s.neutral()
	if err := s.recompute(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Result returns the most recent result vector. Callers must not mutate it.
func (s *Session) Result() []int64 { return s.result }

// LastErr returns the error from the most recent recompute, or nil. When it
// is non-nil the result is the last successful one.
func (s *Session) LastErr() error { return s.lastErr }

// SetTags replaces the tag predicate and recomputes.
func (s *Session) SetTags(ctx context.Context, mode query.TagMode, labels []string) {
	s.tags = query.Tags{Mode: mode, Labels: labels}
	s.lastErr = s.recompute(ctx)
}

// SetDate replaces the date predicate and recomputes.
func (s *Session) SetDate(ctx context.Context, d query.Date) {
	s.date = d
	s.lastErr = s.recompute(ctx)
}

// SetBody replaces the body-substring predicate and recomputes. Passing
// active=false deactivates the predicate entirely; an active empty query
// matches only entries with an empty body.
func (s *Session) SetBody(ctx context.Context, q string, active bool) {
	s.body = q
	s.bodyActive = active
	s.lastErr = s.recompute(ctx)
}

// SetHasAttachments toggles the attachment-presence predicate and recomputes.
func (s *Session) SetHasAttachments(ctx context.Context, on bool) {
	s.hasAttachments = on
	s.lastErr = s.recompute(ctx)
}

// SetHasParent toggles the parent-presence predicate and recomputes.
func (s *Session) SetHasParent(ctx context.Context, on bool) {
	s.hasParent = on
	s.lastErr = s.recompute(ctx)
}

// SetHasChildren toggles the child-presence predicate and recomputes.
func (s *Session) SetHasChildren(ctx context.Context, on bool) {
	s.hasChildren = on
	s.lastErr = s.recompute(ctx)
}

// Reset restores every predicate to its neutral value and recomputes,
// yielding the unfiltered ordered id list.
func (s *Session) Reset(ctx context.Context) {
	s.neutral()
	s.lastErr = s.recompute(ctx)
}

// Refresh re-runs the engine without changing predicates. Callers invoke it
// after external mutations to keep the session consistent with the store.
func (s *Session) Refresh(ctx context.Context) {
	s.lastErr = s.recompute(ctx)
}

func (s *Session) neutral() {
	s.tags = query.Tags{Mode: s.defaults.TagMode}
	s.date = query.Date{Mode: s.defaults.DateMode}
	s.body = ""
	s.bodyActive = false
	s.hasAttachments = false
	s.hasParent = false
	s.hasChildren = false
}

// active assembles the predicates that are currently constraining the result.
// A tag predicate with no labels (other than Untagged mode) and an
// unconstrained date predicate contribute nothing and are omitted.
func (s *Session) active() []query.Predicate {
	var preds []query.Predicate
	if len(s.tags.Labels) > 0 || s.tags.Mode == query.Untagged {
		preds = append(preds, s.tags)
	}
	if dateActive(s.date) {
		preds = append(preds, s.date)
	}
	if s.bodyActive {
		preds = append(preds, query.Body{Query: s.body})
	}
	if s.hasAttachments {
		preds = append(preds, query.HasAttachments{})
	}
	if s.hasParent {
		preds = append(preds, query.HasParent{})
	}
	if s.hasChildren {
		preds = append(preds, query.HasChildren{})
	}
	return preds
}

// recompute runs the engine. On failure the previous result is retained.
func (s *Session) recompute(ctx context.Context) error {
	res, err := s.engine.Run(ctx, s.active()...)
	if err != nil {
		return err
	}
	s.result = res
	return nil
}

func dateActive(d query.Date) bool {
	switch d.Mode {
	case query.Continuous:
		return !d.Lo.IsZero() || !d.Hi.IsZero()
	case query.Intervals:
		return d.Year != nil || d.Month != nil || d.Day != nil ||
			d.Hour != nil || d.Minute != nil || d.Weekday != nil
	}
	return false
}
