package question

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/slogsolutions/army-portal/internal/app/apiresp"
	"github.com/slogsolutions/army-portal/internal/content"
)

// Uploads are whole encrypted workbooks; anything bigger than this is not a
// question container.
const maxUploadBytes = 32 << 20

type Handler struct {
	svc importService
}

type importService interface {
	ImportUpload(ctx context.Context, in ImportUploadInput) (*ImportReport, error)
	ListQuestions(ctx context.Context, uploadRef string) ([]Question, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func NewHandler(svc importService) *Handler {
	return &Handler{svc: svc}
}

// ImportUpload accepts a multipart form with the encrypted container under
// "file", plus "passphrase", optional "category" and "trade_id" fields.
func (h *Handler) ImportUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "file is required"})
		return
	}
	defer func() { _ = file.Close() }()

	container, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "cannot read file"})
		return
	}
	if len(container) > maxUploadBytes {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "file too large"})
		return
	}

	passphrase := r.FormValue("passphrase")
	if passphrase == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "passphrase is required"})
		return
	}

	var tradeID *int64
	if raw := strings.TrimSpace(r.FormValue("trade_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid trade_id"})
			return
		}
		tradeID = &id
	}

	report, err := h.svc.ImportUpload(r.Context(), ImportUploadInput{
		Filename:   header.Filename,
		Container:  container,
		Passphrase: passphrase,
		Category:   strings.TrimSpace(r.FormValue("category")),
		TradeID:    tradeID,
	})
	if err != nil {
		switch {
		case errors.Is(err, content.ErrFormat):
			writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: "file is not a valid encrypted container"})
		case errors.Is(err, content.ErrAuthentication):
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "wrong passphrase or corrupted file"})
		case errors.Is(err, ErrFormat):
			writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: "decrypted payload is not a spreadsheet"})
		case errors.Is(err, ErrNoQuestions):
			writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: "no parseable questions in file"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: report})
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListQuestions(r.Context(), strings.TrimSpace(r.URL.Query().Get("upload_ref")))
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
