package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"media-board/internal/artifacts"
	"media-board/internal/database"
	"media-board/internal/logging"
	"media-board/internal/memory"
	"media-board/internal/middleware"
	"media-board/internal/pipeline"
)

const (
	// multipartOverhead is allowed on top of the file size for part headers
	// and the id field.
	multipartOverhead = 1 << 20
	maxIDFieldLength  = 256
)

var (
	errBadForm  = errors.New("malformed upload")
	errTooLarge = errors.New("upload too large")
)

// upload is one decoded multipart request.
type upload struct {
	ID   string
	Ext  string
	Data []byte
}

// DeleteResponse lists what a delete removed. Paths are file names only.
type DeleteResponse struct {
	ContentID     string   `json:"contentId"`
	Deleted       []string `json:"deleted"`
	Failed        []string `json:"failed,omitempty"`
	RecordDeleted bool     `json:"recordDeleted"`
}

// UploadMedia handles POST /api/media. The multipart body carries an
// optional "id" field and a "file" part; a missing id is generated. An id
// that already has artifacts is refused with 409; PUT replaces it.
func (h *Handlers) UploadMedia(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, r, "upload", err)
		return
	}
	if up.ID == "" {
		up.ID = uuid.NewString()
	}
	tag(w, up.ID, "")

	res, err := h.orch.Upload(r.Context(), up.ID, up.Data, up.Ext)
	if err != nil {
		h.fail(w, r, "upload "+up.ID, err)
		return
	}
	tag(w, res.ContentID, string(res.Class))
	h.persist(r.Context(), res)

	w.Header().Set("Location", "/api/media/"+res.ContentID)
	writeJSONStatusCode(w, http.StatusCreated, res)
}

// ReplaceMedia handles PUT /api/media/{id}. Every artifact of the id is
// removed and the new file is processed under the same id.
func (h *Handlers) ReplaceMedia(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tag(w, id, "")

	up, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, r, "replace "+id, err)
		return
	}

	res, err := h.orch.Replace(r.Context(), id, up.Data, up.Ext)
	if err != nil {
		h.fail(w, r, "replace "+id, err)
		return
	}
	tag(w, id, string(res.Class))
	h.persist(r.Context(), res)

	writeJSONStatusCode(w, http.StatusOK, res)
}

// DeleteMedia handles DELETE /api/media/{id}. Deleting an unknown id
// succeeds with nothing removed.
func (h *Handlers) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tag(w, id, "")

	report, err := h.orch.Delete(id)
	if err != nil {
		h.fail(w, r, "delete "+id, err)
		return
	}

	resp := summarize(id, report)

	ctx := context.WithoutCancel(r.Context())
	if resp.RecordDeleted, err = h.db.DeleteMedia(ctx, id); err != nil {
		logging.Error("Failed to delete record for %s: %v", id, err)
	}

	logging.Info("Deleted %s: %d file(s) removed, %d failed [%s]",
		id, len(resp.Deleted), len(resp.Failed), middleware.RequestIDFromContext(r.Context()))
	writeJSONStatusCode(w, http.StatusOK, resp)
}

// GetMedia handles GET /api/media/{id}.
func (h *Handlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tag(w, id, "")

	rec, err := h.db.GetMedia(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "media not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, "lookup "+id, err)
		return
	}

	tag(w, id, rec.Class)
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatusCode(w, http.StatusOK, rec)
}

// tag names the item a response is about, for the access log.
func tag(w http.ResponseWriter, id, class string) {
	w.Header().Set(middleware.ContentIDHeader, id)
	if class != "" {
		w.Header().Set(middleware.MediaClassHeader, class)
	}
}

// readUpload walks the multipart body once. The file part is read into
// memory, capped at the configured maximum.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	var up upload

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return up, fmt.Errorf("%w: %v", errBadForm, err)
	}

	gotFile := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return up, fmt.Errorf("%w: %w", errBadForm, err)
		}

		switch part.FormName() {
		case "id":
			b, err := io.ReadAll(io.LimitReader(part, maxIDFieldLength+1))
			if err != nil {
				return up, fmt.Errorf("%w: reading id: %w", errBadForm, err)
			}
			if len(b) > maxIDFieldLength {
				return up, fmt.Errorf("%w: id longer than %d bytes", errBadForm, maxIDFieldLength)
			}
			up.ID = strings.TrimSpace(string(b))
		case "file":
			if gotFile {
				return up, fmt.Errorf("%w: more than one file part", errBadForm)
			}
			gotFile = true
			up.Ext = strings.TrimPrefix(filepath.Ext(part.FileName()), ".")
			up.Data, err = io.ReadAll(io.LimitReader(part, h.maxUpload+1))
			if err != nil {
				return up, fmt.Errorf("%w: reading file: %w", errBadForm, err)
			}
			if int64(len(up.Data)) > h.maxUpload {
				return up, fmt.Errorf("%w: limit is %d bytes", errTooLarge, h.maxUpload)
			}
		default:
			if _, err := io.Copy(io.Discard, part); err != nil {
				return up, fmt.Errorf("%w: %w", errBadForm, err)
			}
		}
		_ = part.Close()
	}

	if !gotFile {
		return up, fmt.Errorf("%w: missing file part", errBadForm)
	}
	return up, nil
}

// persist stores the result. Store failures are logged; the artifacts
// already exist and the caller still receives the result.
func (h *Handlers) persist(ctx context.Context, res *pipeline.Result) {
	ctx = context.WithoutCancel(ctx)
	if err := h.db.SaveMedia(ctx, res.Record()); err != nil {
		logging.Error("Failed to save record for %s: %v", res.ContentID, err)
		return
	}
	if err := h.db.SetLastUpload(ctx, time.Now()); err != nil {
		logging.Warn("Failed to record last upload time: %v", err)
	}
}

func summarize(id string, report artifacts.Report) DeleteResponse {
	resp := DeleteResponse{ContentID: id, Deleted: []string{}}
	for _, a := range report {
		if a.Err == nil {
			resp.Deleted = append(resp.Deleted, filepath.Base(a.Path))
		} else {
			resp.Failed = append(resp.Failed, filepath.Base(a.Path))
		}
	}
	return resp
}

// fail maps err to a status code. Server-side errors are logged and their
// detail is not returned.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	code := statusFor(err)
	reqID := middleware.RequestIDFromContext(r.Context())

	if code >= http.StatusInternalServerError {
		logging.Error("%s failed [%s]: %v", what, reqID, err)
		msg := "processing failed"
		if code == http.StatusServiceUnavailable {
			msg = "server is shutting down"
		}
		writeJSONError(w, msg, code)
		return
	}

	logging.Debug("%s rejected [%s]: %v", what, reqID, err)
	writeJSONError(w, err.Error(), code)
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, errTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadForm), errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrExists):
		return http.StatusConflict
	case errors.Is(err, memory.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client went away while waiting for memory.
		return 499
	default:
		return http.StatusInternalServerError
	}
}
