package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/query"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/stamp"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *journal.Service
	engine   *query.Engine
	defaults filter.Defaults
	broker   *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil when events are not
// wired (tests).
func NewHandler(svc *journal.Service, engine *query.Engine, defaults filter.Defaults, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, engine: engine, defaults: defaults, broker: broker}
}

func (h *Handler) publish(kind string, id int64) {
	if h.broker != nil {
		h.broker.PublishEntryEvent(kind, id)
	}
}

// entryID extracts the {id} URL parameter.
func entryID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// ListEntries handles GET /api/entries. Query parameters assemble the
// predicate set; with none present the full ordered id list is returned.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	preds, err := predicatesFromQuery(r, h.defaults)
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	ids, err := h.engine.Run(r.Context(), preds...)
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: ids, Total: len(ids)})
}

// GetEntry handles GET /api/entries/{id}.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entry id"))
		return
	}
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEntry handles POST /api/entries.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	draft := journal.Draft{Body: req.Body, Tags: req.Tags, Parent: req.Parent}
	if req.Created != "" {
		created, err := stamp.Parse(req.Created)
		if err != nil {
			writeError(w, "create entry", err)
			return
		}
		draft.Created = created
	}
	id, err := h.svc.Create(r.Context(), draft)
	if err != nil {
		writeError(w, "create entry", err)
		return
	}
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "create entry", err)
		return
	}
	h.publish("created", id)
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEntry handles PUT /api/entries/{id}.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id, ok := entryID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entry id"))
		return
	}
	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	change := journal.Change{
		Body:              req.Body,
		Tags:              req.Tags,
		RemoveAttachments: req.RemoveAttachments,
	}
	if req.Created != nil {
		created, err := stamp.Parse(*req.Created)
		if err != nil {
			writeError(w, "update entry", err)
			return
		}
		change.Created = &created
	}
	if err := h.svc.Update(r.Context(), id, change); err != nil {
		writeError(w, "update entry", err)
		return
	}
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "update entry", err)
		return
	}
	h.publish("updated", id)
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntry handles DELETE /api/entries/{id}.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entry id"))
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete entry", err)
		return
	}
	h.publish("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// LinkEntry handles POST /api/entries/{id}/link.
func (h *Handler) LinkEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entry id"))
		return
	}
	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.Link(r.Context(), id, req.Parent); err != nil {
		writeError(w, "link entry", err)
		return
	}
	h.publish("linked", id)
	w.WriteHeader(http.StatusNoContent)
}

// Ancestors handles GET /api/entries/{id}/ancestors.
func (h *Handler) Ancestors(w http.ResponseWriter, r *http.Request) {
	h.relatives(w, r, h.svc.Ancestors)
}

// Descendants handles GET /api/entries/{id}/descendants.
func (h *Handler) Descendants(w http.ResponseWriter, r *http.Request) {
	h.relatives(w, r, h.svc.Descendants)
}

func (h *Handler) relatives(w http.ResponseWriter, r *http.Request,
	walk func(ctx context.Context, id int64) ([]int64, error)) {
	id, ok := entryID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entry id"))
		return
	}
	ids, err := walk(r.Context(), id)
	if err != nil {
		writeError(w, "walk relatives", err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, RelativesResponse{Entries: ids})
}

// Tags handles GET /api/tags. With from/to parameters the listing is
// restricted to entries created in that range.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("from") || q.Has("to") {
		d := query.Date{Mode: query.Continuous}
		var err error
		if d.Lo, d.Hi, err = parseRange(q.Get("from"), q.Get("to")); err != nil {
			writeError(w, "tags", err)
			return
		}
		tags, err := h.engine.TagsInDateRange(r.Context(), d)
		if err != nil {
			writeError(w, "tags", err)
			return
		}
		writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
		return
	}
	tags, err := h.engine.AllTags(r.Context())
	if err != nil {
		writeError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	count, err := h.engine.EntryCount(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	lo, hi, ok, err := h.engine.YearRange(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Entries: count, YearMin: lo, YearMax: hi, HasYears: ok})
}

// predicatesFromQuery decodes listing query parameters into predicates.
func predicatesFromQuery(r *http.Request, defaults filter.Defaults) ([]query.Predicate, error) {
	q := r.URL.Query()
	var preds []query.Predicate

	if q.Has("tags") || q.Get("tag_mode") == "untagged" {
		mode := defaults.TagMode
		if s := q.Get("tag_mode"); s != "" {
			var err error
			if mode, err = query.ParseTagMode(s); err != nil {
				return nil, err
			}
		}
		var labels []string
		if raw := q.Get("tags"); raw != "" {
			labels = strings.Split(raw, ",")
		}
		preds = append(preds, query.Tags{Mode: mode, Labels: labels})
	}

	if q.Has("from") || q.Has("to") {
		lo, hi, err := parseRange(q.Get("from"), q.Get("to"))
		if err != nil {
			return nil, err
		}
		preds = append(preds, query.Date{Mode: query.Continuous, Lo: lo, Hi: hi})
	}

	if d, active, err := intervalsFromQuery(q.Get("year"), q.Get("month"), q.Get("day"),
		q.Get("hour"), q.Get("minute"), q.Get("weekday")); err != nil {
		return nil, err
	} else if active {
		preds = append(preds, d)
	}

	if q.Has("body") {
		preds = append(preds, query.Body{Query: q.Get("body")})
	}
	if q.Get("has_attachments") == "true" {
		preds = append(preds, query.HasAttachments{})
	}
	if q.Get("has_parent") == "true" {
		preds = append(preds, query.HasParent{})
	}
	if q.Get("has_children") == "true" {
		preds = append(preds, query.HasChildren{})
	}
	return preds, nil
}

func parseRange(from, to string) (lo, hi time.Time, err error) {
	if from != "" {
		if lo, err = stamp.Parse(from); err != nil {
			return
		}
	}
	if to != "" {
		if hi, err = stamp.Parse(to); err != nil {
			return
		}
	}
	return
}

// intervalsFromQuery builds an Intervals predicate from "lo-hi" (or single
// value) field parameters.
func intervalsFromQuery(year, month, day, hour, minute, weekday string) (query.Date, bool, error) {
	d := query.Date{Mode: query.Intervals}
	active := false
	for _, f := range []struct {
		raw  string
		dest **query.Span
	}{
		{year, &d.Year}, {month, &d.Month}, {day, &d.Day},
		{hour, &d.Hour}, {minute, &d.Minute}, {weekday, &d.Weekday},
	} {
		if f.raw == "" {
			continue
		}
		span, err := parseSpan(f.raw)
		if err != nil {
			return query.Date{}, false, err
		}
		*f.dest = span
		active = true
	}
	return d, active, nil
}

func parseSpan(raw string) (*query.Span, error) {
	lo, hi, found := strings.Cut(raw, "-")
	if !found {
		hi = lo
	}
	loN, err1 := strconv.Atoi(lo)
	hiN, err2 := strconv.Atoi(hi)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("api: span %q: %w", raw, apperr.ErrInvalidArgument)
	}
	return &query.Span{Lo: loN, Hi: hiN}, nil
}
