// Package uploads turns multipart evidence uploads into in-memory files.
package uploads

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"justice-backend/internal/shared/util"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var ErrTooLarge = errors.New("upload exceeds size limit")

var extensionTypes = map[string]string{
	".pdf":  MimePDF,
	".docx": MimeDOCX,
	".doc":  "application/msword",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
}

// File is one uploaded evidence document.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Size returns the file length in bytes.
func (f File) Size() int64 {
	return int64(len(f.Data))
}

// TotalSize sums the sizes of files.
func TotalSize(files []File) int64 {
	var n int64
	for _, f := range files {
		n += f.Size()
	}
	return n
}

// Collect reads multipart parts into memory. limit bounds the aggregate size;
// zero disables the check.
func Collect(headers []*multipart.FileHeader, limit int64) ([]File, error) {
	var declared int64
	for _, h := range headers {
		declared += h.Size
	}
	if limit > 0 && declared > limit {
		return nil, ErrTooLarge
	}

	out := make([]File, 0, len(headers))
	for _, h := range headers {
		name, err := util.SanitizeFileName(filepath.Base(h.Filename))
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", h.Filename, err)
		}
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out = append(out, File{
			Name:     name,
			MimeType: DetectMimeType(h.Header.Get("Content-Type"), name, data),
			Data:     data,
		})
	}
	if limit > 0 && TotalSize(out) > limit {
		return nil, ErrTooLarge
	}
	return out, nil
}

// DetectMimeType prefers a specific declared type, then content sniffing,
// then the file extension. Zip containers are mapped to their OOXML type.
func DetectMimeType(declared, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if clean == "" || clean == "application/octet-stream" {
		sniff := data
		if len(sniff) > 512 {
			sniff = sniff[:512]
		}
		clean = strings.Split(http.DetectContentType(sniff), ";")[0]
	}
	if clean == "application/zip" {
		if mapped := mapOOXMLFromZip(data); mapped != "" {
			return mapped
		}
	}
	if clean == "application/octet-stream" || clean == "text/plain" || clean == "application/zip" {
		if byExt, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
			return byExt
		}
	}
	return clean
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return MimeDOCX
		case "xl/workbook.xml":
			return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		case "ppt/presentation.xml":
			return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
		}
	}
	return ""
}

// PageCount returns the number of pages of a PDF, or 0 when f is not a
// readable PDF.
func PageCount(f File) (pages int) {
	if f.MimeType != MimePDF || len(f.Data) == 0 {
		return 0
	}
	// The parser panics on some malformed inputs.
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(f.Data), f.Size())
	if err != nil {
		return 0
	}
	return r.NumPage()
}
