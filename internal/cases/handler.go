package cases

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"justice-backend/internal/agents"
	"justice-backend/internal/envelope"
	"justice-backend/internal/shared/server/middleware"
	"justice-backend/internal/shared/server/respond"
	"justice-backend/internal/uploads"
	"justice-backend/internal/workflow"
)

// Handler wires HTTP handlers to the workflow service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = agents.DefaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches case routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.POST("/review/submit", h.submitForReview)
	rg.POST("/review/feedback", h.recordFeedback)
	rg.POST("/synthesize", h.synthesize)
	rg.POST("/verdict/decrypt", h.decrypt)
	rg.DELETE("/data/clear-all", h.clearAll)
	rg.GET("/cases", h.listCases)
	rg.GET("/cases/:id", h.getCase)
}

func (h *Handler) analyze(c *gin.Context) {
	// Multipart framing adds a little on top of the file bytes.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+(1<<20))
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, agents.ErrPayloadTooLarge)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with files is required", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		writeError(c, agents.ErrNoFiles)
		return
	}
	files, err := uploads.Collect(headers, h.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, uploads.ErrTooLarge) {
			writeError(c, agents.ErrPayloadTooLarge)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	caseID := strings.TrimSpace(firstValue(form.Value["case_id"]))
	if caseID == "" {
		caseID = NewCaseID()
	}
	c.Set(middleware.CaseIDKey, caseID)

	rec, err := h.Svc.Analyze(c.Request.Context(), caseID, files)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.TransitionKey, "analyze:completed")

	respond.JSON(c, http.StatusCreated, gin.H{
		"caseId":   rec.CaseID,
		"stage":    rec.Stage,
		"analysis": rec.AnalysisResult,
	})
}

type submitRequest struct {
	CaseID   string         `json:"case_id"`
	Document map[string]any `json:"document"`
}

func (h *Handler) submitForReview(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	c.Set(middleware.CaseIDKey, req.CaseID)

	ack, err := h.Svc.SubmitForReview(c.Request.Context(), req.CaseID, req.Document)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, ack)
}

type feedbackRequest struct {
	CaseID         string                  `json:"case_id"`
	FeedbackItems  []workflow.FeedbackItem `json:"feedback_items"`
	ReviewerNotes  string                  `json:"reviewer_notes"`
	ApprovalStatus string                  `json:"approval_status"`
}

func (h *Handler) recordFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	c.Set(middleware.CaseIDKey, req.CaseID)

	res, err := h.Svc.RecordFeedback(c.Request.Context(), req.CaseID, agents.Feedback{
		Items:          req.FeedbackItems,
		Notes:          req.ReviewerNotes,
		ApprovalStatus: req.ApprovalStatus,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.TransitionKey, "review:updated")

	respond.OK(c, gin.H{
		"caseId":        res.Record.CaseID,
		"stage":         res.Record.Stage,
		"feedbackCount": len(res.Record.ReviewFeedback),
		"ack":           res.Ack,
	})
}

func (h *Handler) synthesize(c *gin.Context) {
	raw := map[string]any{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if id, ok := raw["case_id"].(string); ok {
		c.Set(middleware.CaseIDKey, id)
	}

	rec, err := h.Svc.Approve(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.TransitionKey, "synthesize:completed")

	resp := gin.H{
		"caseId":           rec.CaseID,
		"stage":            rec.Stage,
		"encrypted":        true,
		"verdictEncrypted": rec.VerdictEncrypted,
	}
	if rec.EncryptedAt != nil {
		resp["encryptionTimestamp"] = rec.EncryptedAt.Format(time.RFC3339)
	}
	respond.OK(c, resp)
}

type decryptRequest struct {
	EncryptedData string `json:"encryptedData"`
}

func (h *Handler) decrypt(c *gin.Context) {
	var req decryptRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.EncryptedData) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "encryptedData is required", nil)
		return
	}

	verdict, err := h.Svc.Decrypt(req.EncryptedData)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"verdict":     verdict,
		"decryptedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) clearAll(c *gin.Context) {
	stats, err := h.Svc.ClearAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"success":          true,
		"casesCleared":     stats.Cases,
		"workflowsCleared": stats.Workflows,
	})
}

func (h *Handler) listCases(c *gin.Context) {
	records, err := h.Svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"cases": records})
}

func (h *Handler) getCase(c *gin.Context) {
	caseID := c.Param("id")
	c.Set(middleware.CaseIDKey, caseID)
	rec, err := h.Svc.Get(c.Request.Context(), caseID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, rec)
}

// writeError maps service and gateway errors onto the HTTP error body.
func writeError(c *gin.Context, err error) {
	var agentErr *agents.Error
	switch {
	case errors.Is(err, agents.ErrMissingCaseID):
		respond.Error(c, http.StatusBadRequest, "missing_case_id", "case_id is required", nil)
	case errors.Is(err, agents.ErrNoFiles):
		respond.Error(c, http.StatusBadRequest, "no_files_provided", "at least one file is required", nil)
	case errors.Is(err, agents.ErrPayloadTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds the size limit", nil)
	case errors.Is(err, workflow.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "case not found", nil)
	case errors.Is(err, ErrStaleTransition):
		respond.Error(c, http.StatusConflict, "stale_transition", err.Error(), nil)
	case errors.As(err, &agentErr) && agentErr.Kind == agents.KindUnavailable:
		respond.Error(c, http.StatusServiceUnavailable, "agent_unavailable", agentErr.Error(), gin.H{
			"agent": agentErr.Agent,
			"url":   agentErr.URL,
		})
	case errors.As(err, &agentErr) && agentErr.Kind == agents.KindRejected:
		respond.Error(c, http.StatusBadGateway, "agent_rejected", agentErr.Agent+" rejected the request", gin.H{
			"agent":  agentErr.Agent,
			"status": agentErr.Status,
			"body":   agentErr.Body,
		})
	case errors.Is(err, ErrEncryption):
		respond.Error(c, http.StatusInternalServerError, "crypto_error", "failed to encrypt verdict", nil)
	case errors.Is(err, envelope.ErrMalformedEnvelope):
		respond.Error(c, http.StatusBadRequest, "malformed_envelope", "encrypted data must be hex(iv):hex(ciphertext)", nil)
	case errors.Is(err, envelope.ErrDecryptionFailed):
		respond.Error(c, http.StatusBadRequest, "decryption_failed", "could not decrypt verdict", nil)
	case errors.Is(err, envelope.ErrInvalidKeyLength):
		respond.Error(c, http.StatusBadRequest, "invalid_key_length", "encryption key must be 32 bytes", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
