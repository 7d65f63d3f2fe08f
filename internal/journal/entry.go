// Package journal implements the Entry API: typed create/read/update/delete
// over the journal's five-table layout, presented as a single aggregate.
package journal

import "time"

// Attachment is the metadata of a stored attachment. Blob bytes are fetched
// separately through ExportAttachment.
type Attachment struct {
	ID       int64     `json:"att_id"`
	Filename string    `json:"filename"`
	Added    time.Time `json:"added"`
}

// Entry is the full aggregate behind one entry id.
//
// LastEdit is set at creation and bumped by every non-empty update.
// Parent is 0 when the entry is a root.
type Entry struct {
	ID          int64        `json:"id"`
	Body        string       `json:"body"`
	Created     time.Time    `json:"created"`
	LastEdit    time.Time    `json:"last_edit,omitzero"`
	Tags        []string     `json:"tags"`
	Attachments []Attachment `json:"attachments"`
	Parent      int64        `json:"parent,omitempty"`
	Children    []int64      `json:"children"`
}

// Draft is the input to Create. A zero Created means "now"; a zero Parent
// means no parent link.
type Draft struct {
	Body        string
	Created     time.Time
	Tags        []string
	Attachments []Source
	Parent      int64
}

// Change is the delta applied by Update. Nil pointer fields are left
// untouched; Tags, when non-nil, replaces the whole tag set.
type Change struct {
	Body              *string
	Created           *time.Time
	Tags              *[]string
	AddAttachments    []Source
	RemoveAttachments []int64
}

func (c Change) empty() bool {
	return c.Body == nil && c.Created == nil && c.Tags == nil &&
		len(c.AddAttachments) == 0 && len(c.RemoveAttachments) == 0
}
