package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docgen/internal/config"
	"git.home.luguber.info/inful/docgen/internal/convert"
	"git.home.luguber.info/inful/docgen/internal/emailhtml"
	"git.home.luguber.info/inful/docgen/internal/generate"
	"git.home.luguber.info/inful/docgen/internal/lifecycle"
	"git.home.luguber.info/inful/docgen/internal/metrics"
	"git.home.luguber.info/inful/docgen/internal/ooxml"
	"git.home.luguber.info/inful/docgen/internal/storage"
)

// copyConverter copies the working document into the output directory under
// the format's extension.
type copyConverter struct{}

func (copyConverter) Convert(_ context.Context, inputPath string, format convert.Format, outDir string) (string, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(outDir, base+format.Extension(filepath.Ext(inputPath)))
	return out, os.WriteFile(out, data, 0o644)
}

func newTestServer(t *testing.T, retention time.Duration) (*Server, *lifecycle.Manager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	manager, err := lifecycle.NewManager(t.TempDir(), retention, time.Second, metrics.NoopRecorder{}, logger)
	require.NoError(t, err)

	cfg := config.Default()
	orch, err := generate.NewOrchestrator(generate.Deps{
		Documents:         storage.NewMockDocumentStore(),
		Templates:         storage.NewMockTemplateStore(),
		Converter:         copyConverter{},
		Artifacts:         manager,
		Email:             emailhtml.NewProcessor(logger),
		Logger:            logger,
		WorkDir:           t.TempDir(),
		MaxInputSize:      cfg.Generation.MaxInputSize,
		AllowedExtensions: cfg.Generation.AllowedExtensions,
	})
	require.NoError(t, err)

	rec := metrics.NewPrometheusRecorder()
	return New(cfg, orch, manager, rec.Handler(), logger), manager
}

func docxBytes(t *testing.T, props []string, paragraphs ...string) []byte {
	t.Helper()
	pkg := ooxml.NewWordPackage(paragraphs...)
	for _, name := range props {
		require.NoError(t, pkg.SetCustomProperty(name, ""))
	}
	var buf bytes.Buffer
	require.NoError(t, pkg.Write(&buf))
	return buf.Bytes()
}

func uploadTemplate(t *testing.T, h http.Handler, fileName string, data []byte) TemplateResponse {
	t.Helper()
	rr := doUpload(t, h, fileName, data)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp TemplateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func doUpload(t *testing.T, h http.Handler, fileName string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/templates", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func postJSON(t *testing.T, h http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRegisterTemplateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)
	h := srv.Handler()

	resp := uploadTemplate(t, h, "offer letter.docx", docxBytes(t, []string{"CustomerName", "Date"}, "hello"))
	assert.Equal(t, "offer letter", resp.Name)
	assert.Equal(t, "word", resp.Kind)
	assert.Equal(t, []string{"CustomerName", "Date"}, resp.Placeholders)
	assert.NotEmpty(t, resp.ID)
}

func TestRegisterTemplateRejectsUnknownExtension(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)

	rr := doUpload(t, srv.Handler(), "notes.txt", []byte("plain"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "validation")
}

func TestRegisterTemplateRequiresFilePart(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/api/templates", strings.NewReader("not multipart"))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListAndGetTemplates(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)
	h := srv.Handler()
	created := uploadTemplate(t, h, "letter.docx", docxBytes(t, []string{"A"}, "hi"))

	rr := get(h, "/api/templates")
	require.Equal(t, http.StatusOK, rr.Code)
	var list TemplateListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rr = get(h, "/api/templates/"+created.ID)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = get(h, "/api/templates/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "template_not_found")
}

func TestGenerateAndDownload(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)
	h := srv.Handler()
	tpl := uploadTemplate(t, h, "letter.docx", docxBytes(t, []string{"CustomerName"}, "hi"))

	rr := postJSON(t, h, "/api/generate", map[string]any{
		"template_id": tpl.ID,
		"values":      map[string]string{"CustomerName": "ACME"},
		"format":      "original",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ProcessedPlaceholders)
	require.NotEmpty(t, resp.DownloadURL)

	// Artifacts stay downloadable until they expire.
	for range 2 {
		dl := get(h, resp.DownloadURL)
		require.Equal(t, http.StatusOK, dl.Code)
		assert.Contains(t, dl.Header().Get("Content-Disposition"), resp.FileName)
		assert.Equal(t, contentTypes[".docx"], dl.Header().Get("Content-Type"))
		assert.NotZero(t, dl.Body.Len())
	}
}

func TestGenerateUnknownTemplateIs404(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)

	rr := postJSON(t, srv.Handler(), "/api/generate", map[string]any{"template_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGenerateRejectsBadFormat(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)
	h := srv.Handler()
	tpl := uploadTemplate(t, h, "letter.docx", docxBytes(t, nil, "hi"))

	rr := postJSON(t, h, "/api/generate", map[string]any{"template_id": tpl.ID, "format": "rtf"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGenerateRequiresTemplateID(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)

	rr := postJSON(t, srv.Handler(), "/api/generate", map[string]any{"format": "pdf"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompositeGenerateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)
	h := srv.Handler()
	main := uploadTemplate(t, h, "report.docx", docxBytes(t, nil, "Intro", "BodySection"))
	sub := uploadTemplate(t, h, "chapter.docx", docxBytes(t, nil, "chapter text"))

	rr := postJSON(t, h, "/api/generate/composite", map[string]any{
		"template_id": main.ID,
		"format":      "original",
		"embeds": []map[string]any{
			{"placeholder": "BodySection", "template_id": sub.ID},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.EmbedResults, 1)
	assert.Equal(t, "BodySection: success", resp.EmbedResults[0])
}

func TestDownloadUnknownArtifact(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)

	rr := get(srv.Handler(), "/api/downloads/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "artifact_not_found")
}

func TestDownloadExpiredArtifactIs410(t *testing.T) {
	srv, _ := newTestServer(t, time.Millisecond)
	h := srv.Handler()
	tpl := uploadTemplate(t, h, "letter.docx", docxBytes(t, nil, "hi"))

	rr := postJSON(t, h, "/api/generate", map[string]any{"template_id": tpl.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	time.Sleep(20 * time.Millisecond)
	dl := get(h, resp.DownloadURL)
	assert.Equal(t, http.StatusGone, dl.Code)

	// The expired entry is evicted on first touch.
	dl = get(h, resp.DownloadURL)
	assert.Equal(t, http.StatusNotFound, dl.Code)
}

func TestEvictEndpoint(t *testing.T) {
	srv, manager := newTestServer(t, time.Minute)
	h := srv.Handler()
	tpl := uploadTemplate(t, h, "letter.docx", docxBytes(t, nil, "hi"))

	rr := postJSON(t, h, "/api/generate", map[string]any{"template_id": tpl.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodDelete, resp.DownloadURL, nil)
	del := httptest.NewRecorder()
	h.ServeHTTP(del, req)
	assert.Equal(t, http.StatusNoContent, del.Code)
	assert.Zero(t, manager.Len())

	dl := get(h, resp.DownloadURL)
	assert.Equal(t, http.StatusNotFound, dl.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)

	rr := get(srv.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv, _ := newTestServer(t, time.Minute)

	rr := get(srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
}
