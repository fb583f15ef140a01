package paper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/slogsolutions/army-portal/internal/app/apiresp"
)

type Handler struct {
	svc paperService
}

type paperService interface {
	CreatePaper(ctx context.Context, in CreatePaperInput) (*Paper, error)
	ListPapers(ctx context.Context) ([]Paper, error)
	LinkQuestion(ctx context.Context, paperID, questionID int64, order int) error
	LinkUploadQuestions(ctx context.Context, paperID int64, uploadRef string) (int, error)
	DeletePaper(ctx context.Context, paperID int64) (*CascadeReport, error)
	DeletePapers(ctx context.Context, paperIDs []int64) ([]CascadeReport, error)
	PurgeExamData(ctx context.Context) (*PurgeReport, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createPaperRequest struct {
	Title           string `json:"title"`
	Category        string `json:"category"`
	TradeID         *int64 `json:"trade_id"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
}

type linkQuestionRequest struct {
	QuestionID int64 `json:"question_id"`
	Order      int   `json:"order"`
}

type linkUploadRequest struct {
	UploadRef string `json:"upload_ref"`
}

type bulkDeleteRequest struct {
	PaperIDs []int64 `json:"paper_ids"`
}

func NewHandler(svc paperService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	p, err := h.svc.CreatePaper(r.Context(), CreatePaperInput{
		Title:           req.Title,
		Category:        req.Category,
		TradeID:         req.TradeID,
		DurationMinutes: req.DurationMinutes,
		IsActive:        req.IsActive,
	})
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: p})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListPapers(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) LinkQuestion(w http.ResponseWriter, r *http.Request) {
	paperID, ok := paramID(r, "id")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid paper id"})
		return
	}
	var req linkQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "question_id is required"})
		return
	}
	if err := h.svc.LinkQuestion(r.Context(), paperID, req.QuestionID, req.Order); err != nil {
		switch {
		case errors.Is(err, ErrPaperNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "paper not found"})
		case errors.Is(err, ErrQuestionNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "question not found"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true})
}

func (h *Handler) LinkUpload(w http.ResponseWriter, r *http.Request) {
	paperID, ok := paramID(r, "id")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid paper id"})
		return
	}
	var req linkUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UploadRef == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "upload_ref is required"})
		return
	}
	linked, err := h.svc.LinkUploadQuestions(r.Context(), paperID, req.UploadRef)
	if err != nil {
		switch {
		case errors.Is(err, ErrPaperNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "paper not found"})
		case errors.Is(err, ErrUploadNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "upload not found"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]int{"linked": linked}})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	paperID, ok := paramID(r, "id")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid paper id"})
		return
	}
	report, err := h.svc.DeletePaper(r.Context(), paperID)
	if err != nil {
		if errors.Is(err, ErrPaperNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "paper not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: report})
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.PaperIDs) == 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "paper_ids is required"})
		return
	}
	reports, err := h.svc.DeletePapers(r.Context(), req.PaperIDs)
	if err != nil {
		if errors.Is(err, ErrPaperNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "paper not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: reports})
}

func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.PurgeExamData(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: report})
}

func paramID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
