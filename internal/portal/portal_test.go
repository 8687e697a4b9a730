package portal

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pratikwayal01/bore-interactive-inputs/internal/fields"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	title     string
	defs      fields.Set
	staging   string
	closed    bool
	submitErr error
	submitted map[string]any
}

func (f *fakeSession) Title() string            { return f.title }
func (f *fakeSession) Fields() fields.Set       { return f.defs }
func (f *fakeSession) Remaining() time.Duration { return 5 * time.Minute }
func (f *fakeSession) StagingDir() string       { return f.staging }
func (f *fakeSession) Closed() bool             { return f.closed }
func (f *fakeSession) RedirectURL() string      { return "https://github.com/acme/deploys/actions/runs/42" }

func (f *fakeSession) Submit(raw map[string]any) error {
	f.submitted = raw
	return f.submitErr
}

func newFakeSession(t *testing.T) *fakeSession {
	return &fakeSession{
		title: "Release Inputs",
		defs: fields.Set{
			{Name: "env", Kind: fields.KindSelect, Required: true, Choices: []string{"dev", "prod"}},
			{Name: "report", Kind: fields.KindFile},
		},
		staging: t.TempDir(),
	}
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestFormIsServedAndRepeatable(t *testing.T) {
	srv := New(newFakeSession(t))

	for i := 0; i < 2; i++ {
		resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, FormPath, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Release Inputs")
	}
}

func TestConfigEndpoint(t *testing.T) {
	srv := New(newFakeSession(t))

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, ConfigPath, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cfg := decodeJSON[configResp](t, resp)
	assert.Equal(t, "Release Inputs", cfg.Title)
	assert.Equal(t, 300, cfg.Timeout)
	require.Len(t, cfg.Fields, 2)
	assert.Equal(t, "env", cfg.Fields[0].Name)
}

func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("field", field))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, UploadPath, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadStagesFile(t *testing.T) {
	sess := newFakeSession(t)
	srv := New(sess)

	resp, err := srv.App().Test(uploadRequest(t, "report", "report.txt", "hello"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[uploadResp](t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, "report.txt", out.Filename)
	assert.NotEmpty(t, out.Checksum)

	staged, err := os.ReadFile(filepath.Join(sess.staging, "report", "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(staged))
}

func TestUploadStripsPathComponents(t *testing.T) {
	sess := newFakeSession(t)
	srv := New(sess)

	resp, err := srv.App().Test(uploadRequest(t, "report", "../../etc/passwd", "nope"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[uploadResp](t, resp)
	assert.Equal(t, "passwd", out.Filename)
	assert.FileExists(t, filepath.Join(sess.staging, "report", "passwd"))
}

func TestUploadReplacesSingleFileField(t *testing.T) {
	sess := newFakeSession(t)
	srv := New(sess)

	// Second upload to a single-file field replaces the first, so a
	// wrong pick stays correctable.
	for _, name := range []string{"draft.txt", "final.txt"} {
		resp, err := srv.App().Test(uploadRequest(t, "report", name, name))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	entries, err := os.ReadDir(filepath.Join(sess.staging, "report"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "final.txt", entries[0].Name())
}

func TestUploadRejectsNonFileField(t *testing.T) {
	srv := New(newFakeSession(t))

	resp, err := srv.App().Test(uploadRequest(t, "env", "x.txt", "x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectedWhenClosed(t *testing.T) {
	sess := newFakeSession(t)
	sess.closed = true
	srv := New(sess)

	resp, err := srv.App().Test(uploadRequest(t, "report", "x.txt", "x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func submitRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, SubmitPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSubmitSuccess(t *testing.T) {
	sess := newFakeSession(t)
	srv := New(sess)

	resp, err := srv.App().Test(submitRequest(`{"env":"prod"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[submitResp](t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, "https://github.com/acme/deploys/actions/runs/42", out.RedirectURL)
	assert.Equal(t, map[string]any{"env": "prod"}, sess.submitted)
}

func TestSubmitValidationFailure(t *testing.T) {
	sess := newFakeSession(t)
	sess.submitErr = &fields.ValidationError{Fields: []fields.FieldError{{Name: "env", Reason: "required"}}}
	srv := New(sess)

	resp, err := srv.App().Test(submitRequest(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	out := decodeJSON[submitResp](t, resp)
	assert.False(t, out.Success)
	assert.Equal(t, map[string]string{"env": "required"}, out.Errors)
}

func TestSubmitRejectedWhenClosed(t *testing.T) {
	sess := newFakeSession(t)
	sess.submitErr = session.ErrSessionClosed
	srv := New(sess)

	resp, err := srv.App().Test(submitRequest(`{"env":"prod"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSubmitRejectedBeforeReady(t *testing.T) {
	sess := newFakeSession(t)
	sess.submitErr = session.ErrNotReady
	srv := New(sess)

	resp, err := srv.App().Test(submitRequest(`{"env":"prod"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooEarly, resp.StatusCode)
}

func TestSubmitRejectsMalformedBody(t *testing.T) {
	srv := New(newFakeSession(t))

	resp, err := srv.App().Test(submitRequest(`not json`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
