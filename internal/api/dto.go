package api

import "github.com/starford/dagaz/internal/journal"

// CreateEntryRequest is the request body for creating an entry. Created uses
// the canonical "YYYY-MM-DD HH:MM" encoding; empty means now. Parent 0 means
// no parent link.
type CreateEntryRequest struct {
	Body    string   `json:"body"`
	Created string   `json:"created,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Parent  int64    `json:"parent,omitempty"`
}

// UpdateEntryRequest is the request body for updating an entry. Nil fields
// are left untouched; Tags, when present, replaces the whole tag set.
type UpdateEntryRequest struct {
	Body              *string   `json:"body,omitempty"`
	Created           *string   `json:"created,omitempty"`
	Tags              *[]string `json:"tags,omitempty"`
	RemoveAttachments []int64   `json:"remove_attachments,omitempty"`
}

// LinkRequest is the request body for linking an entry to a parent.
type LinkRequest struct {
	Parent int64 `json:"parent"`
}

// EntryDetail is the full entry response type (aliased from the domain layer).
type EntryDetail = journal.Entry

// EntryListResponse wraps a filtered id listing.
type EntryListResponse struct {
	Entries []int64 `json:"entries"`
	Total   int     `json:"total"`
}

// TagsResponse wraps a tag listing.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// StatsResponse summarizes the store.
type StatsResponse struct {
	Entries  int  `json:"entries"`
	YearMin  int  `json:"year_min"`
	YearMax  int  `json:"year_max"`
	HasYears bool `json:"has_years"`
}

// RelativesResponse wraps an ancestor or descendant walk.
type RelativesResponse struct {
	Entries []int64 `json:"entries"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	AttID    int64  `json:"att_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}
