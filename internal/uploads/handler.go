package uploads

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"statement-backend/internal/shared/metrics"
	"statement-backend/internal/shared/server/middleware"
	"statement-backend/internal/shared/server/respond"
	"statement-backend/internal/shared/storage/object"
	"statement-backend/internal/shared/telemetry"
	"statement-backend/internal/shared/util"
)

const (
	maxUploadBytes = 10 << 20
	maxUploadFiles = 10
)

var allowedExtensions = map[string]struct{}{
	".pdf": {},
	".csv": {},
	".txt": {},
}

// Handler accepts multipart statement uploads and stores them for analysis.
type Handler struct {
	Store object.ObjectStore
}

// NewHandler constructs a Handler over the given object store.
func NewHandler(store object.ObjectStore) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads", h.upload)
}

type uploadedFile struct {
	Ref       string `json:"ref"`
	FileName  string `json:"fileName"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeType  string `json:"mimeType"`
}

func (h *Handler) upload(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}
	if len(files) > maxUploadFiles {
		respond.Error(c, http.StatusBadRequest, "validation_error", "too many files in one upload", nil)
		return
	}

	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if _, ok := allowedExtensions[ext]; !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "only pdf, csv, and txt statements are supported", []map[string]string{
				{"field": "files", "issue": "unsupported_type", "fileName": file.Filename},
			})
			return
		}
		if file.Size <= 0 || file.Size > maxUploadBytes {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file size exceeds limit", []map[string]string{
				{"field": "files", "issue": "size_limit", "fileName": file.Filename},
			})
			return
		}
	}

	uploadID := uuid.NewString()
	stored := make([]uploadedFile, 0, len(files))
	for _, file := range files {
		sanitized, err := util.SanitizeFileName(file.Filename)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid file name", nil)
			return
		}

		src, err := file.Open()
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read upload", nil)
			return
		}
		key, size, mimeType, err := h.Store.Save(c.Request.Context(), ownerID, uploadID+"-"+sanitized, src)
		src.Close()
		if err != nil {
			telemetry.Error("uploads.save_failed", map[string]any{
				"error":      err.Error(),
				"file_name":  sanitized,
				"owner_id":   ownerID,
				"request_id": c.GetString("requestId"),
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store upload", nil)
			return
		}
		stored = append(stored, uploadedFile{
			Ref:       key,
			FileName:  sanitized,
			SizeBytes: size,
			MimeType:  mimeType,
		})
	}

	metrics.IncUploads()
	telemetry.Info("uploads.accepted", map[string]any{
		"upload_id":  uploadID,
		"owner_id":   ownerID,
		"file_count": len(stored),
		"request_id": c.GetString("requestId"),
	})

	refs := make([]string, 0, len(stored))
	for _, f := range stored {
		refs = append(refs, f.Ref)
	}

	respond.JSON(c, http.StatusCreated, gin.H{
		"uploadId":     uploadID,
		"files":        stored,
		"documentRefs": refs,
	})
}
