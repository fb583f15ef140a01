package paper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type mockPaperService struct {
	createPaperFn         func(ctx context.Context, in CreatePaperInput) (*Paper, error)
	listPapersFn          func(ctx context.Context) ([]Paper, error)
	linkQuestionFn        func(ctx context.Context, paperID, questionID int64, order int) error
	linkUploadQuestionsFn func(ctx context.Context, paperID int64, uploadRef string) (int, error)
	deletePaperFn         func(ctx context.Context, paperID int64) (*CascadeReport, error)
	deletePapersFn        func(ctx context.Context, paperIDs []int64) ([]CascadeReport, error)
	purgeExamDataFn       func(ctx context.Context) (*PurgeReport, error)
}

func (m *mockPaperService) CreatePaper(ctx context.Context, in CreatePaperInput) (*Paper, error) {
	if m.createPaperFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createPaperFn(ctx, in)
}

func (m *mockPaperService) ListPapers(ctx context.Context) ([]Paper, error) {
	if m.listPapersFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listPapersFn(ctx)
}

func (m *mockPaperService) LinkQuestion(ctx context.Context, paperID, questionID int64, order int) error {
	if m.linkQuestionFn == nil {
		return errors.New("not implemented")
	}
	return m.linkQuestionFn(ctx, paperID, questionID, order)
}

func (m *mockPaperService) LinkUploadQuestions(ctx context.Context, paperID int64, uploadRef string) (int, error) {
	if m.linkUploadQuestionsFn == nil {
		return 0, errors.New("not implemented")
	}
	return m.linkUploadQuestionsFn(ctx, paperID, uploadRef)
}

func (m *mockPaperService) DeletePaper(ctx context.Context, paperID int64) (*CascadeReport, error) {
	if m.deletePaperFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.deletePaperFn(ctx, paperID)
}

func (m *mockPaperService) DeletePapers(ctx context.Context, paperIDs []int64) ([]CascadeReport, error) {
	if m.deletePapersFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.deletePapersFn(ctx, paperIDs)
}

func (m *mockPaperService) PurgeExamData(ctx context.Context) (*PurgeReport, error) {
	if m.purgeExamDataFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.purgeExamDataFn(ctx)
}

func testRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/papers", h.Create)
	r.Get("/papers", h.List)
	r.Post("/papers/{id}/questions", h.LinkQuestion)
	r.Post("/papers/{id}/link-upload", h.LinkUpload)
	r.Delete("/papers/{id}", h.Delete)
	r.Post("/papers/bulk-delete", h.BulkDelete)
	r.Post("/admin/purge-exam-data", h.Purge)
	return r
}

func TestCreatePaper(t *testing.T) {
	h := NewHandler(&mockPaperService{
		createPaperFn: func(_ context.Context, in CreatePaperInput) (*Paper, error) {
			if in.Category != "OR" || in.DurationMinutes != 120 {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &Paper{ID: 1, Title: in.Title, Category: in.Category, DurationMinutes: in.DurationMinutes}, nil
		},
	})

	body := bytes.NewBufferString(`{"title":"Primary","category":"OR","duration_minutes":120,"is_active":true}`)
	req := httptest.NewRequest(http.MethodPost, "/papers", body)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestDeletePaperReportsCascade(t *testing.T) {
	h := NewHandler(&mockPaperService{
		deletePaperFn: func(_ context.Context, paperID int64) (*CascadeReport, error) {
			if paperID != 3 {
				t.Fatalf("paper id = %d, want 3", paperID)
			}
			return &CascadeReport{PaperID: 3, QuestionsDeleted: 4, QuestionsPreserved: 2}, nil
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/papers/3", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var env struct {
		OK   bool          `json:"ok"`
		Data CascadeReport `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Data.QuestionsDeleted != 4 || env.Data.QuestionsPreserved != 2 {
		t.Fatalf("unexpected report: %+v", env.Data)
	}
}

func TestDeletePaperNotFound(t *testing.T) {
	h := NewHandler(&mockPaperService{
		deletePaperFn: func(context.Context, int64) (*CascadeReport, error) {
			return nil, ErrPaperNotFound
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/papers/99", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBulkDeleteRequiresIDs(t *testing.T) {
	h := NewHandler(&mockPaperService{})

	req := httptest.NewRequest(http.MethodPost, "/papers/bulk-delete", bytes.NewBufferString(`{"paper_ids":[]}`))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBulkDeleteForwardsIDs(t *testing.T) {
	var got []int64
	h := NewHandler(&mockPaperService{
		deletePapersFn: func(_ context.Context, paperIDs []int64) ([]CascadeReport, error) {
			got = paperIDs
			return []CascadeReport{{PaperID: 1}, {PaperID: 2}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/papers/bulk-delete", bytes.NewBufferString(`{"paper_ids":[1,2]}`))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("forwarded ids = %v, want [1 2]", got)
	}
}

func TestLinkUploadNotFound(t *testing.T) {
	h := NewHandler(&mockPaperService{
		linkUploadQuestionsFn: func(context.Context, int64, string) (int, error) {
			return 0, ErrUploadNotFound
		},
	})

	body := bytes.NewBufferString(`{"upload_ref":"missing-ref"}`)
	req := httptest.NewRequest(http.MethodPost, "/papers/1/link-upload", body)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLinkQuestionValidation(t *testing.T) {
	h := NewHandler(&mockPaperService{})

	req := httptest.NewRequest(http.MethodPost, "/papers/1/questions", bytes.NewBufferString(`{"order":1}`))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPurge(t *testing.T) {
	h := NewHandler(&mockPaperService{
		purgeExamDataFn: func(context.Context) (*PurgeReport, error) {
			return &PurgeReport{AnswersDeleted: 10, SessionsDeleted: 2}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/purge-exam-data", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
