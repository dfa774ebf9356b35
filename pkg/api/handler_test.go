package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/pdf-converter-service/pkg/artifacts"
	"github.com/yourorg/pdf-converter-service/pkg/blobclient"
	"github.com/yourorg/pdf-converter-service/pkg/conversion"
	"github.com/yourorg/pdf-converter-service/pkg/filestore"
	"github.com/yourorg/pdf-converter-service/pkg/httpservice"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/pdfutil"
	"github.com/yourorg/pdf-converter-service/pkg/servicebusclient"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

type fakeConverter struct {
	mu       sync.Mutex
	err      error
	requests []conversion.Request
	contexts []context.Context
}

func (f *fakeConverter) Convert(ctx context.Context, req conversion.Request) (*conversion.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.contexts = append(f.contexts, ctx)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	path := conversion.ArtifactPath(req.OutputDir, req.SourcePath, req.Format)
	body := []byte("converted to " + req.Format.String())
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, err
	}
	return &conversion.Result{OutputPath: path, Format: req.Format, Size: int64(len(body)), Pages: 1}, nil
}

type testEnv struct {
	router    *gin.Engine
	uploads   *filestore.Store
	outputs   *filestore.Store
	converter *fakeConverter
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	uploads, err := filestore.New(filepath.Join(root, "uploads"), nil)
	require.NoError(t, err)
	outputs, err := filestore.New(filepath.Join(root, "output"), nil)
	require.NoError(t, err)

	conv := &fakeConverter{}
	return &testEnv{
		router:    newRouter(NewHandler(uploads, outputs, conv, opts...)),
		uploads:   uploads,
		outputs:   outputs,
		converter: conv,
	}
}

func newRouter(h *Handler) *gin.Engine {
	return httpservice.NewRouter(httpservice.ServerConfig{
		Logger:      logging.NewNopLogger(),
		ServiceName: "pdf-converter-service",
		MaxBodySize: 1 << 20,
	}, h)
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedUpload(t *testing.T, name string) {
	t.Helper()
	_, err := e.uploads.Save(context.Background(), name, strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestUpload(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(uploadRequest(t, "file", "sample.pdf", []byte("%PDF-1.4 first")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"filename":"sample.pdf","message":"File uploaded successfully"}`, w.Body.String())

	// Same name overwrites.
	w = e.do(uploadRequest(t, "file", "sample.pdf", []byte("%PDF-1.4 second")))
	require.Equal(t, http.StatusOK, w.Code)

	data, err := os.ReadFile(filepath.Join(e.uploads.Dir(), "sample.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 second", string(data))
}

func TestUpload_ExtensionIsCaseInsensitive(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(uploadRequest(t, "file", "REPORT.PDF", []byte("%PDF")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.FileExists(t, filepath.Join(e.uploads.Dir(), "REPORT.PDF"))
}

func TestUpload_PathComponentsAreStripped(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(uploadRequest(t, "file", "../../escape.pdf", []byte("%PDF")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "escape.pdf", decode(t, w)["filename"])
	assert.FileExists(t, filepath.Join(e.uploads.Dir(), "escape.pdf"))
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		status   int
		contains string
	}{
		{
			name:     "non pdf extension",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "file", "notes.txt", []byte("hello")) },
			status:   http.StatusBadRequest,
			contains: "Only PDF files are allowed",
		},
		{
			name:     "no extension",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "file", "pdf", []byte("hello")) },
			status:   http.StatusBadRequest,
			contains: "Only PDF files are allowed",
		},
		{
			name:     "missing field",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "document", "sample.pdf", []byte("%PDF")) },
			status:   http.StatusBadRequest,
			contains: "VALIDATION_ERROR",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "big.pdf", bytes.Repeat([]byte("x"), 2<<20))
			},
			status:   http.StatusRequestEntityTooLarge,
			contains: "Request body too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			w := e.do(tt.req(t))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)

			entries, err := os.ReadDir(e.uploads.Dir())
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestConvert_QueryParameters(t *testing.T) {
	e := newTestEnv(t)
	e.seedUpload(t, "sample.pdf")

	req := httptest.NewRequest(http.MethodPost, "/convert/?filename=sample.pdf&output_format=md", nil)
	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"File converted successfully to md","output_file":"sample.md"}`, w.Body.String())

	require.Len(t, e.converter.requests, 1)
	got := e.converter.requests[0]
	assert.Equal(t, filepath.Join(e.uploads.Dir(), "sample.pdf"), got.SourcePath)
	assert.Equal(t, conversion.Markdown, got.Format)
	assert.Equal(t, e.outputs.Dir(), got.OutputDir)

	// The conversion is detached from the request's cancellation.
	assert.Nil(t, e.converter.contexts[0].Done())
}

func TestConvert_BodyEncodings(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantFile    string
	}{
		{"json", `{"filename":"sample.pdf","output_format":"docx"}`, "application/json", "sample.docx"},
		{"form", "filename=sample.pdf&output_format=odt", "application/x-www-form-urlencoded", "sample.odt"},
		{"alias", `{"filename":"sample.pdf","output_format":"text"}`, "application/json", "sample.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.seedUpload(t, "sample.pdf")

			req := httptest.NewRequest(http.MethodPost, "/convert/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := e.do(req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.wantFile, decode(t, w)["output_file"])
			assert.FileExists(t, filepath.Join(e.outputs.Dir(), tt.wantFile))
		})
	}
}

func TestConvert_ClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		code   string
		msg    string
	}{
		{"missing filename", "/convert/?output_format=md", http.StatusBadRequest, "BAD_REQUEST", "Filename not provided."},
		{"missing format", "/convert/?filename=sample.pdf", http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"unknown format", "/convert/?filename=sample.pdf&output_format=xyz", http.StatusBadRequest, "UNSUPPORTED_FORMAT", "xyz"},
		{"upload absent", "/convert/?filename=other.pdf&output_format=md", http.StatusNotFound, "NOT_FOUND", "Uploaded file not found."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.seedUpload(t, "sample.pdf")

			w := e.do(httptest.NewRequest(http.MethodPost, tt.target, nil))
			require.Equal(t, tt.status, w.Code, w.Body.String())

			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Contains(t, body["message"], tt.msg)
			assert.Empty(t, e.converter.requests)
		})
	}
}

func TestConvert_FailuresMapToServerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"extraction", &conversion.Error{Kind: conversion.KindExtraction, Op: "open", Detail: "cannot read source document"}, "EXTRACTION_ERROR"},
		{"io", &conversion.Error{Kind: conversion.KindIO, Op: "bridge", Err: errors.New("disk full")}, "IO_ERROR"},
		{"external tool", &conversion.Error{Kind: conversion.KindExternalTool, Op: "invoke", Diagnostic: "pandoc: Unknown writer"}, "EXTERNAL_TOOL_ERROR"},
		{"timeout", &conversion.Error{Kind: conversion.KindTimeout, Op: "invoke"}, "TIMEOUT"},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.seedUpload(t, "sample.pdf")
			e.converter.err = tt.err

			w := e.do(httptest.NewRequest(http.MethodPost, "/convert/?filename=sample.pdf&output_format=docx", nil))
			require.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}

	t.Run("diagnostic is surfaced", func(t *testing.T) {
		e := newTestEnv(t)
		e.seedUpload(t, "sample.pdf")
		e.converter.err = &conversion.Error{Kind: conversion.KindExternalTool, Op: "invoke", Diagnostic: "pandoc: Unknown writer"}

		w := e.do(httptest.NewRequest(http.MethodPost, "/convert/?filename=sample.pdf&output_format=docx", nil))
		body := decode(t, w)
		assert.Contains(t, body["message"], "Conversion failed")
		assert.Contains(t, body["message"], "pandoc: Unknown writer")
	})

	t.Run("server paths are not exposed", func(t *testing.T) {
		e := newTestEnv(t)
		e.seedUpload(t, "sample.pdf")
		source := filepath.Join(e.uploads.Dir(), "sample.pdf")
		e.converter.err = &conversion.Error{
			Kind:   conversion.KindExtraction,
			Op:     "open",
			Path:   source,
			Detail: "cannot read source document",
			Err:    errors.New("open " + source + ": fitz: cannot open document"),
		}

		w := e.do(httptest.NewRequest(http.MethodPost, "/convert/?filename=sample.pdf&output_format=docx", nil))
		require.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "EXTRACTION_ERROR", body["code"])
		assert.Contains(t, body["message"], "open sample.pdf: fitz: cannot open document")
		assert.NotContains(t, body["message"], e.uploads.Dir())
	})
}

func TestDownload(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.outputs.Dir(), "sample.md"), []byte("# Hello"), 0o644))

	w := e.do(httptest.NewRequest(http.MethodGet, "/download/sample.md", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# Hello", w.Body.String())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sample.md"`, w.Header().Get("Content-Disposition"))
}

func TestDownload_Head(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.outputs.Dir(), "sample.md"), []byte("# Hello"), 0o644))

	w := e.do(httptest.NewRequest(http.MethodHead, "/download/sample.md", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "7", w.Header().Get("Content-Length"))
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sample.md"`, w.Header().Get("Content-Disposition"))

	w = e.do(httptest.NewRequest(http.MethodHead, "/download/missing.md", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownload_NotFound(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.outputs.Dir(), ".sample.md.part"), []byte("partial"), 0o644))

	for _, target := range []string{"/download/missing.md", "/download/.sample.md.part", "/download/..."} {
		t.Run(target, func(t *testing.T) {
			w := e.do(httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
		})
	}
}

func TestConvert_PublishesAndMirrors(t *testing.T) {
	blobs := blobclient.NewMockBlobClient()
	bus := servicebusclient.NewMockServiceBusClient()
	publisher := artifacts.NewPublisher(
		artifacts.Config{Container: "converted-artifacts", Queue: "conversion-events", Retry: utils.RetryConfig{MaxAttempts: 1}},
		logging.NewNopLogger(),
		artifacts.WithBlobClient(blobs),
		artifacts.WithServiceBus(bus),
	)

	e := newTestEnv(t, WithPublisher(publisher))
	e.seedUpload(t, "sample.pdf")

	w := e.do(httptest.NewRequest(http.MethodPost, "/convert/?filename=sample.pdf&output_format=txt", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	msgs := bus.Messages("conversion-events")
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0].Body), `"output_file":"sample.txt"`)

	// Local copy gone: served from the mirror.
	require.NoError(t, os.Remove(filepath.Join(e.outputs.Dir(), "sample.txt")))
	w = e.do(httptest.NewRequest(http.MethodGet, "/download/sample.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "converted to txt", w.Body.String())
}

func TestConvert_PublisherFailureDoesNotFailRequest(t *testing.T) {
	bus := servicebusclient.NewMockServiceBusClient()
	bus.FailWith(errors.New("namespace unreachable"))
	publisher := artifacts.NewPublisher(
		artifacts.Config{Queue: "q", Retry: utils.RetryConfig{MaxAttempts: 1}},
		nil,
		artifacts.WithServiceBus(bus),
	)

	e := newTestEnv(t, WithPublisher(publisher))
	e.seedUpload(t, "sample.pdf")

	w := e.do(httptest.NewRequest(http.MethodPost, "/convert/?filename=sample.pdf&output_format=md", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFormatsAndHealth(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/formats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Formats []FormatInfo `json:"formats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Formats, 4)
	assert.Equal(t, "txt", body.Formats[0].Name)
	assert.Equal(t, "application/vnd.oasis.opendocument.text", body.Formats[3].ContentType)

	w = e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// TestEndToEnd drives upload, convert and download through the real
// extractor. Markdown uses the in-process backend so no external tool is needed.
func TestEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	root := t.TempDir()

	uploads, err := filestore.New(filepath.Join(root, "uploads"), nil)
	require.NoError(t, err)
	outputs, err := filestore.New(filepath.Join(root, "output"), nil)
	require.NoError(t, err)

	svc := conversion.NewService(conversion.Config{
		OutputDir:        outputs.Dir(),
		TempDir:          t.TempDir(),
		ConverterBinary:  "pandoc",
		ConverterTimeout: time.Minute,
		MarkdownEngine:   conversion.EngineNative,
	}, pdfutil.NewPDFParser(), conversion.NewExecRunner(), logging.NewNopLogger())

	router := newRouter(NewHandler(uploads, outputs, svc))

	sample, err := pdfutil.GenerateSample(pdfutil.DefaultSample())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "file", "sample.pdf", sample))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, tt := range []struct {
		format string
		file   string
		want   []string
	}{
		{"md", "sample.md", []string{"Hello World", "example.com"}},
		{"txt", "sample.txt", []string{"Hello World"}},
	} {
		t.Run(tt.format, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/convert/?filename=sample.pdf&output_format="+tt.format, nil))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			w = httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/"+tt.file, nil))
			require.Equal(t, http.StatusOK, w.Code)
			for _, s := range tt.want {
				assert.Contains(t, w.Body.String(), s)
			}
		})
	}
}
