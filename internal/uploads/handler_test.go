package uploads

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"statement-backend/internal/shared/storage/object/local"
)

func setupUploadRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
	})
	NewHandler(local.New(t.TempDir())).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func multipartBody(t *testing.T, fileNames map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range fileNames {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadAcceptsSupportedTypes(t *testing.T) {
	router := setupUploadRouter(t)

	body, contentType := multipartBody(t, map[string]string{
		"statement.csv": "date,amount\n2026-07-01,100\n",
		"notes.txt":     "opening balance 500",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		UploadID     string         `json:"uploadId"`
		DocumentRefs []string       `json:"documentRefs"`
		Files        []uploadedFile `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.UploadID == "" {
		t.Fatal("uploadId missing")
	}
	if len(out.DocumentRefs) != 2 || len(out.Files) != 2 {
		t.Fatalf("expected 2 stored files, got refs=%v files=%v", out.DocumentRefs, out.Files)
	}
	for _, f := range out.Files {
		if f.Ref == "" || f.SizeBytes == 0 {
			t.Fatalf("incomplete file entry: %+v", f)
		}
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	router := setupUploadRouter(t)

	body, contentType := multipartBody(t, map[string]string{"malware.exe": "MZ"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUploadRequiresFiles(t *testing.T) {
	router := setupUploadRouter(t)

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
