package agents

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"justice-backend/internal/shared/telemetry"
	"justice-backend/internal/uploads"
	"justice-backend/internal/workflow"
)

// AnalyzeResult is the analyzer's response annotated with the retained files.
type AnalyzeResult struct {
	Analysis map[string]any
	Files    []workflow.FileSummary
}

// Analyze forwards the evidence files to the analyzer. Files are retained in
// the object store only after the analyzer accepts them.
func (c *Client) Analyze(ctx context.Context, caseID string, files []uploads.File) (*AnalyzeResult, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, ErrMissingCaseID
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	limit := c.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	total := uploads.TotalSize(files)
	if total > limit {
		return nil, ErrPayloadTooLarge
	}

	body, contentType, err := encodeMultipart(caseID, files)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Analyzer.url("/analyze"), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	analysis, err := c.do(c.Analyzer, req, true)
	if err != nil {
		return nil, err
	}

	summaries := c.retain(ctx, caseID, files)
	analysis["fileStorageInfo"] = storageInfo(c.storageMethod(), total, summaries)

	return &AnalyzeResult{Analysis: analysis, Files: summaries}, nil
}

func encodeMultipart(caseID string, files []uploads.File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("case_id", caseID); err != nil {
		return nil, "", fmt.Errorf("write case_id: %w", err)
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
			"name":     "files",
			"filename": f.Name,
		}))
		ct := f.MimeType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) storageMethod() string {
	if c.Store == nil {
		return "none"
	}
	if c.StorageMethod == "" {
		return "local"
	}
	return c.StorageMethod
}

// retain saves each file and returns its summary. Storage failures are logged
// and leave the storage key empty.
func (c *Client) retain(ctx context.Context, caseID string, files []uploads.File) []workflow.FileSummary {
	out := make([]workflow.FileSummary, 0, len(files))
	for _, f := range files {
		summary := workflow.FileSummary{
			FileName:  f.Name,
			SizeBytes: f.Size(),
			MimeType:  f.MimeType,
			Pages:     uploads.PageCount(f),
		}
		if c.Store != nil {
			key, _, _, err := c.Store.Save(ctx, caseID, f.Name, bytes.NewReader(f.Data))
			if err != nil {
				telemetry.Warn("files.retain_failed", map[string]any{
					"case_id":   caseID,
					"file_name": f.Name,
					"error":     err.Error(),
				})
			} else {
				summary.StorageKey = key
			}
		}
		out = append(out, summary)
	}
	return out
}

func storageInfo(method string, total int64, files []workflow.FileSummary) map[string]any {
	list := make([]any, 0, len(files))
	for _, f := range files {
		entry := map[string]any{
			"fileName":  f.FileName,
			"sizeBytes": f.SizeBytes,
			"mimeType":  f.MimeType,
		}
		if f.StorageKey != "" {
			entry["storageKey"] = f.StorageKey
		}
		if f.Pages > 0 {
			entry["pages"] = f.Pages
		}
		list = append(list, entry)
	}
	return map[string]any{
		"storageMethod": method,
		"totalBytes":    total,
		"files":         list,
	}
}
