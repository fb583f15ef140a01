package question

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slogsolutions/army-portal/internal/content"
)

type mockImportService struct {
	importUploadFn  func(ctx context.Context, in ImportUploadInput) (*ImportReport, error)
	listQuestionsFn func(ctx context.Context, uploadRef string) ([]Question, error)
}

func (m *mockImportService) ImportUpload(ctx context.Context, in ImportUploadInput) (*ImportReport, error) {
	if m.importUploadFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.importUploadFn(ctx, in)
}

func (m *mockImportService) ListQuestions(ctx context.Context, uploadRef string) ([]Question, error) {
	if m.listQuestionsFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listQuestionsFn(ctx, uploadRef)
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(fileData); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestImportUploadSuccess(t *testing.T) {
	var gotInput ImportUploadInput
	h := NewHandler(&mockImportService{
		importUploadFn: func(_ context.Context, in ImportUploadInput) (*ImportReport, error) {
			gotInput = in
			return &ImportReport{Parsed: 3, Created: 3, Imported: make([]Question, 3)}, nil
		},
	})

	body, contentType := multipartUpload(t, map[string]string{
		"passphrase": "abc123",
		"category":   "OR",
		"trade_id":   "7",
	}, "questions.dat", []byte{0x01, 0x02, 0x03})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ImportUpload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if gotInput.Filename != "questions.dat" || gotInput.Passphrase != "abc123" || gotInput.Category != "OR" {
		t.Fatalf("unexpected service input: %+v", gotInput)
	}
	if gotInput.TradeID == nil || *gotInput.TradeID != 7 {
		t.Fatalf("trade_id not forwarded: %v", gotInput.TradeID)
	}

	var env struct {
		OK   bool `json:"ok"`
		Data struct {
			Created int `json:"created"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !env.OK || env.Data.Created != 3 {
		t.Fatalf("unexpected envelope: %s", rec.Body.String())
	}
}

func TestImportUploadMissingFile(t *testing.T) {
	h := NewHandler(&mockImportService{})

	body, contentType := multipartUpload(t, map[string]string{"passphrase": "x"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ImportUpload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestImportUploadMissingPassphrase(t *testing.T) {
	h := NewHandler(&mockImportService{})

	body, contentType := multipartUpload(t, nil, "questions.dat", []byte{0x01})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ImportUpload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestImportUploadErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "wrong passphrase", err: content.ErrAuthentication, wantStatus: http.StatusBadRequest},
		{name: "bad container", err: content.ErrFormat, wantStatus: http.StatusUnprocessableEntity},
		{name: "not a spreadsheet", err: ErrFormat, wantStatus: http.StatusUnprocessableEntity},
		{name: "no questions", err: ErrNoQuestions, wantStatus: http.StatusUnprocessableEntity},
		{name: "internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&mockImportService{
				importUploadFn: func(context.Context, ImportUploadInput) (*ImportReport, error) {
					return nil, tc.err
				},
			})

			body, contentType := multipartUpload(t, map[string]string{"passphrase": "x"}, "q.dat", []byte{0x01})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.ImportUpload(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestImportUploadInvalidTradeID(t *testing.T) {
	h := NewHandler(&mockImportService{})

	body, contentType := multipartUpload(t, map[string]string{
		"passphrase": "x",
		"trade_id":   "not-a-number",
	}, "q.dat", []byte{0x01})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ImportUpload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
