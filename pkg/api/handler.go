// Package api exposes the conversion service over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/artifacts"
	"github.com/yourorg/pdf-converter-service/pkg/blobclient"
	"github.com/yourorg/pdf-converter-service/pkg/conversion"
	"github.com/yourorg/pdf-converter-service/pkg/errors"
	"github.com/yourorg/pdf-converter-service/pkg/filestore"
	"github.com/yourorg/pdf-converter-service/pkg/httpservice"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// Converter runs one conversion.
type Converter interface {
	Convert(ctx context.Context, req conversion.Request) (*conversion.Result, error)
}

// Publisher receives every produced artifact. Fetch serves artifacts that are
// no longer on local disk.
type Publisher interface {
	Publish(ctx context.Context, sourcePath string, res *conversion.Result) (*artifacts.Event, error)
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

// Handler serves the upload, convert and download endpoints.
type Handler struct {
	uploads   *filestore.Store
	outputs   *filestore.Store
	converter Converter
	publisher Publisher
}

// Option configures a Handler.
type Option func(*Handler)

// WithPublisher publishes every successful conversion and falls back to the
// publisher's mirror for downloads.
func WithPublisher(p Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

// NewHandler creates the HTTP handler.
func NewHandler(uploads, outputs *filestore.Store, converter Converter, opts ...Option) *Handler {
	h := &Handler{uploads: uploads, outputs: outputs, converter: converter}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register implements httpservice.Handler.
func (h *Handler) Register(router *gin.Engine) {
	router.POST("/upload/", httpservice.Wrap("upload", h.Upload))
	router.POST("/convert/", httpservice.Wrap("convert", h.Convert))
	router.GET("/download/:filename", httpservice.Wrap("download", h.Download))
	router.HEAD("/download/:filename", httpservice.Wrap("download", h.Download))
	router.GET("/formats", httpservice.Wrap("formats", h.Formats))
}

// UploadResponse is returned by POST /upload/.
type UploadResponse struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// Upload stores the multipart field "file" under its base name. Only .pdf
// files are accepted; an upload with the same name replaces the earlier one.
func (h *Handler) Upload(c *gin.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewPayloadTooLargeError("Request body too large")
		}
		return errors.NewValidationError("Multipart field 'file' is required")
	}

	name, err := filestore.CleanName(header.Filename)
	if err != nil || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return errors.NewBadRequestError("Invalid file type. Only PDF files are allowed.")
	}

	src, err := header.Open()
	if err != nil {
		return errors.NewIOError("Failed to read upload", err)
	}
	defer src.Close()

	info, err := h.uploads.Save(c.Request.Context(), name, src)
	if err != nil {
		return errors.NewIOError("Failed to store upload", err)
	}

	httpservice.GetLogger(c).Info("File uploaded",
		logging.NewField("filename", info.Name),
		logging.NewField("bytes", info.Size),
	)

	c.JSON(http.StatusOK, UploadResponse{Filename: info.Name, Message: "File uploaded successfully"})
	return nil
}

// ConvertRequest is bound from the query string, a form or a JSON body.
type ConvertRequest struct {
	Filename     string `form:"filename" json:"filename" validate:"required"`
	OutputFormat string `form:"output_format" json:"output_format" validate:"required"`
}

// ConvertResponse is returned by POST /convert/.
type ConvertResponse struct {
	Message    string `json:"message"`
	OutputFile string `json:"output_file"`
}

// Convert converts a previously uploaded file.
func (h *Handler) Convert(c *gin.Context) error {
	var req ConvertRequest
	if err := httpservice.ValidateRequest(c, &req); err != nil {
		if strings.TrimSpace(req.Filename) == "" {
			return errors.NewBadRequestError("Filename not provided.")
		}
		return err
	}

	format, err := conversion.ParseFormat(req.OutputFormat)
	if err != nil {
		return toAppError(err)
	}

	ok, err := h.uploads.Exists(req.Filename)
	if err != nil {
		return errors.NewIOError("Failed to look up upload", err)
	}
	if !ok {
		return errors.NewNotFoundError("Uploaded file not found.")
	}
	source, err := h.uploads.Path(req.Filename)
	if err != nil {
		return errors.NewNotFoundError("Uploaded file not found.")
	}

	// Detached from client disconnect; the converter timeout still bounds it.
	ctx := context.WithoutCancel(c.Request.Context())

	res, err := h.converter.Convert(ctx, conversion.Request{
		SourcePath: source,
		Format:     format,
		OutputDir:  h.outputs.Dir(),
	})
	if err != nil {
		return toAppError(err)
	}

	if h.publisher != nil {
		// Failures are logged by the publisher; the artifact is already on disk.
		_, _ = h.publisher.Publish(ctx, source, res)
	}

	c.JSON(http.StatusOK, ConvertResponse{
		Message:    fmt.Sprintf("File converted successfully to %s", req.OutputFormat),
		OutputFile: res.FileName(),
	})
	return nil
}

// Download streams an artifact from the output store, or from the
// publisher's mirror when it is not on local disk. HEAD answers with the
// headers only.
func (h *Handler) Download(c *gin.Context) error {
	name, err := filestore.CleanName(c.Param("filename"))
	if err != nil || name != c.Param("filename") {
		return errors.NewNotFoundError("File not found")
	}

	f, info, err := h.outputs.Open(name)
	if err == nil {
		defer f.Close()
		serveAttachment(c, name, info.Size, f)
		return nil
	}
	if !stderrors.Is(err, filestore.ErrNotFound) {
		return errors.NewIOError("Failed to open file", err)
	}

	if h.publisher != nil {
		rc, err := h.publisher.Fetch(c.Request.Context(), name)
		if err == nil {
			defer rc.Close()
			serveAttachment(c, name, -1, rc)
			return nil
		}
		if !stderrors.Is(err, artifacts.ErrNotMirrored) {
			httpservice.GetLogger(c).Warn("Mirror lookup failed", logging.NewField("filename", name), logging.NewField("error", err))
		}
	}

	return errors.NewNotFoundError("File not found")
}

// serveAttachment writes r as a download. A negative size means unknown.
func serveAttachment(c *gin.Context, name string, size int64, r io.Reader) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", "application/octet-stream")
		if size >= 0 {
			c.Header("Content-Length", strconv.FormatInt(size, 10))
		}
		c.Status(http.StatusOK)
		return
	}
	c.DataFromReader(http.StatusOK, size, "application/octet-stream", r, nil)
}

// FormatInfo describes one supported output format.
type FormatInfo struct {
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	ContentType string `json:"content_type"`
}

// Formats lists the supported output formats.
func (h *Handler) Formats(c *gin.Context) error {
	out := make([]FormatInfo, 0, len(conversion.Formats))
	for _, f := range conversion.Formats {
		out = append(out, FormatInfo{
			Name:        f.String(),
			Extension:   f.Extension(),
			ContentType: blobclient.ContentTypeFor("x." + f.Extension()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"formats": out})
	return nil
}
