package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/journal"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ExportAttachment handles GET /api/attachments/{attID}, streaming the
// stored blob with its original filename.
func (h *Handler) ExportAttachment(w http.ResponseWriter, r *http.Request) {
	attID, err := strconv.ParseInt(chi.URLParam(r, "attID"), 10, 64)
	if err != nil || attID < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid attachment id"))
		return
	}
	filename, blob, err := h.svc.ExportAttachment(r.Context(), attID)
	if err != nil {
		writeError(w, "export attachment", err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// UploadAttachment handles POST /api/entries/{id}/attachments
// (multipart/form-data, field "file").
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entry id"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read uploaded file"))
		return
	}

	src := journal.BytesSource{Filename: header.Filename, Data: data}
	if err := h.svc.Update(r.Context(), id, journal.Change{AddAttachments: []journal.Source{src}}); err != nil {
		writeError(w, "upload attachment", err)
		return
	}

	// The new attachment is the last one by added order.
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "upload attachment", err)
		return
	}
	last := e.Attachments[len(e.Attachments)-1]
	h.publish("updated", id)
	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		AttID:    last.ID,
		Filename: header.Filename,
		Size:     int64(len(data)),
	})
}
