package exam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/slogsolutions/army-portal/internal/app/apiresp"
	"github.com/slogsolutions/army-portal/internal/paper"
)

type Handler struct {
	svc examService
}

type examService interface {
	StartForCandidate(ctx context.Context, candidateID int64) (*StartResult, error)
	GetSession(ctx context.Context, sessionID int64) (*Session, error)
	GetSessionQuestions(ctx context.Context, sessionID int64) ([]SessionQuestion, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID int64, answer string) error
	SubmitAnswers(ctx context.Context, sessionID int64, answers []AnswerInput) (*Session, error)
	FinishSession(ctx context.Context, sessionID int64) (*Session, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type startSessionRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

type saveAnswerRequest struct {
	Answer string `json:"answer"`
}

type submitRequest struct {
	Answers []AnswerInput `json:"answers"`
}

func NewHandler(svc examService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CandidateID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "candidate_id is required"})
		return
	}

	result, err := h.svc.StartForCandidate(r.Context(), req.CandidateID)
	if err != nil {
		switch {
		case errors.Is(err, ErrCandidateNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "candidate not found"})
		case errors.Is(err, paper.ErrNoPaper):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "no exam paper available"})
		case errors.Is(err, ErrNoContent):
			writeJSON(w, r, http.StatusConflict, response{OK: false, Error: "exam unavailable: paper has no active questions"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, r, http.StatusOK, response{OK: true, Data: result})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := paramID(r, "id")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid session id"})
		return
	}
	session, err := h.svc.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "session not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: session})
}

func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := paramID(r, "id")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid session id"})
		return
	}
	items, err := h.svc.GetSessionQuestions(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "session not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) SaveAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := paramID(r, "id")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid session id"})
		return
	}
	questionID, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil || questionID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid question id"})
		return
	}
	var req saveAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}

	if err := h.svc.SubmitAnswer(r.Context(), sessionID, questionID, req.Answer); err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "session not found"})
		case errors.Is(err, ErrSessionCompleted):
			writeJSON(w, r, http.StatusConflict, response{OK: false, Error: "exam already submitted"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true})
}

// Submit records a final batch of answers and finishes the session in one
// call, the shape of the exam form's final POST.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := paramID(r, "id")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid session id"})
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}

	session, err := h.svc.SubmitAnswers(r.Context(), sessionID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "session not found"})
		case errors.Is(err, ErrSessionCompleted):
			writeJSON(w, r, http.StatusConflict, response{OK: false, Error: "exam already submitted"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: session})
}

func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := paramID(r, "id")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid session id"})
		return
	}
	session, err := h.svc.FinishSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "session not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: session})
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
