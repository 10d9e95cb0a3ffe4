package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"statement-backend/internal/reports"
	"statement-backend/internal/shared/server/middleware"
	"statement-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	limiter *pollLimiter
}

// NewHandler constructs a Handler with the default status poll limiter.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		Svc:     svc,
		limiter: newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.startAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/report", h.getReport)
	rg.DELETE("/analyses/:id", h.deleteAnalysis)
}

type startAnalysisRequest struct {
	UploadID     string   `json:"uploadId"`
	DocumentRefs []string `json:"documentRefs" binding:"required"`
	Title        string   `json:"title"`
}

func (h *Handler) startAnalysis(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)

	var req startAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	job, err := h.Svc.StartAnalysis(ctx, req.UploadID, req.DocumentRefs, ownerID, StartOptions{Title: req.Title})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "at least one document reference is required", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": job.ID,
		"status":     job.Status,
		"progress":   job.Progress,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	if !h.limiter.Allow(ownerID, analysisID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "polling too frequently", nil)
		return
	}

	job, err := h.Svc.GetStatus(c.Request.Context(), analysisID, ownerID)
	if err != nil {
		h.respondAccessError(c, err, "failed to fetch analysis")
		return
	}

	if job.Terminal() {
		h.limiter.Forget(ownerID, analysisID)
	}

	resp := gin.H{
		"analysisId": job.ID,
		"status":     job.Status,
		"progress":   job.Progress,
		"title":      job.Title,
		"createdAt":  job.CreatedAt,
	}
	if job.CompletedAt != nil {
		resp["completedAt"] = job.CompletedAt
	}
	if job.Result != nil {
		switch job.Status {
		case StatusCompleted:
			resp["result"] = job.Result
		case StatusFailed:
			resp["error"] = job.Result
		}
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) getReport(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	job, err := h.Svc.GetStatus(c.Request.Context(), analysisID, ownerID)
	if err != nil {
		h.respondAccessError(c, err, "failed to fetch analysis")
		return
	}
	if job.Status != StatusCompleted || job.Result == nil {
		respond.Error(c, http.StatusConflict, "not_ready", "analysis has no completed result", nil)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+analysisID+`.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(reports.Render(job.Title, job.Result)))
}

func (h *Handler) listAnalyses(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
			return
		}
	}

	ownerID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := h.Svc.List(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		item := gin.H{
			"analysisId":    job.ID,
			"uploadId":      job.UploadID,
			"title":         job.Title,
			"status":        job.Status,
			"progress":      job.Progress,
			"documentCount": job.SourceDocumentCount,
			"createdAt":     job.CreatedAt,
		}
		if job.Status == StatusCompleted && job.Result != nil {
			if summary, ok := job.Result["summary"]; ok {
				item["summary"] = summary
			}
			if net, ok := job.Result["netCashFlow"]; ok {
				item["netCashFlow"] = net
			}
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) deleteAnalysis(c *gin.Context) {
	ownerID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	deleted, err := h.Svc.Delete(c.Request.Context(), analysisID, ownerID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete analysis", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) respondAccessError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	case errors.Is(err, ErrAccessDenied):
		respond.Error(c, http.StatusForbidden, "access_denied", "analysis belongs to another account", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
