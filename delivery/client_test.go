package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"demos-to-discord/demos"
	"demos-to-discord/host"
)

type part struct {
	name        string
	filename    string
	contentType string
	body        []byte
}

type capture struct {
	mu       sync.Mutex
	requests []*capturedRequest
}

type capturedRequest struct {
	contentType string
	userAgent   string
	body        []byte
	parts       []part
}

func (c *capture) handler(t *testing.T, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cr := &capturedRequest{
			contentType: r.Header.Get("Content-Type"),
			userAgent:   r.Header.Get("User-Agent"),
		}
		mediaType, _, err := mime.ParseMediaType(cr.contentType)
		if assert.NoError(t, err) && mediaType == "multipart/form-data" {
			mr, err := r.MultipartReader()
			require.NoError(t, err)
			for {
				p, err := mr.NextPart()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				b, err := io.ReadAll(p)
				require.NoError(t, err)
				cr.parts = append(cr.parts, part{
					name:        p.FormName(),
					filename:    p.FileName(),
					contentType: p.Header.Get("Content-Type"),
					body:        b,
				})
			}
		} else {
			cr.body, _ = io.ReadAll(r.Body)
		}

		c.mu.Lock()
		c.requests = append(c.requests, cr)
		c.mu.Unlock()

		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"id":"1"}`)
	}
}

func (c *capture) all() []*capturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*capturedRequest(nil), c.requests...)
}

func testReport() demos.ReportContext {
	return demos.ReportContext{
		RunID:      "run-1",
		Reporter:   host.Player{ClientID: 2, Name: "Rep^1orter"},
		Target:     host.Player{ClientID: 7, Name: "Cheater", NetworkID: "abc123"},
		ServerName: "^2My ^7Server",
		Game:       host.GameT6,
		Map:        "mp_nuketown_2020",
		Mode:       "tdm",
		ReportedAt: time.Date(2024, 3, 5, 14, 33, 0, 0, time.UTC),
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c := New(zaptest.NewLogger(t), Config{
		WebhookURL:   url,
		WebfrontURL:  "http://webfront.example:1624",
		Version:      "1.1.0",
		CleanupDelay: 10 * time.Millisecond,
	})
	c.now = func() time.Time { return time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC) }
	return c
}

func writeDemo(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDeliver_UploadWithSidecar(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(t, http.StatusOK))
	defer srv.Close()

	dir := t.TempDir()
	demo := writeDemo(t, dir, "tdm_mp_nuketown_2020_2024_03_05_14_31.demo", "DEMO-BYTES")
	sidecar := writeDemo(t, dir, "tdm_mp_nuketown_2020_2024_03_05_14_31.json", `{"k":1}`)

	client := newTestClient(t, srv.URL)
	out := client.Deliver(context.Background(), Request{
		Report:       testReport(),
		ArtifactPath: demo,
		SidecarPath:  sidecar,
		Matched:      true,
	})
	client.Wait()

	require.NoError(t, out.Err)
	assert.True(t, out.Sent)
	assert.True(t, out.Attached)
	assert.Equal(t, http.StatusOK, out.StatusCode)

	reqs := c.all()
	require.Len(t, reqs, 1)
	r := reqs[0]
	assert.Equal(t, "DemosToDiscord", r.userAgent)
	require.Len(t, r.parts, 3)

	assert.Equal(t, "payload_json", r.parts[0].name)
	assert.Equal(t, "application/json", r.parts[0].contentType)
	var msg Message
	require.NoError(t, json.Unmarshal(r.parts[0].body, &msg))
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, statusAttached, msg.Embeds[0].Fields[5].Value)

	assert.Equal(t, "files[0]", r.parts[1].name)
	assert.Equal(t, filepath.Base(demo), r.parts[1].filename)
	assert.Equal(t, "application/octet-stream", r.parts[1].contentType)
	assert.Equal(t, "DEMO-BYTES", string(r.parts[1].body))

	assert.Equal(t, "files[1]", r.parts[2].name)
	assert.Equal(t, "application/json", r.parts[2].contentType)
	assert.Equal(t, `{"k":1}`, string(r.parts[2].body))

	// The original recording is untouched.
	_, err := os.Stat(demo)
	assert.NoError(t, err)
}

func TestDeliver_UploadWithoutSidecar(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(t, http.StatusOK))
	defer srv.Close()

	demo := writeDemo(t, t.TempDir(), "sd_mp_raid_2024_03_05_14_31.demo", "x")
	client := newTestClient(t, srv.URL)
	out := client.Deliver(context.Background(), Request{Report: testReport(), ArtifactPath: demo, Matched: true})
	client.Wait()

	require.NoError(t, out.Err)
	reqs := c.all()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].parts, 2)
	assert.Equal(t, "files[0]", reqs[0].parts[1].name)
}

func TestDeliver_NotFoundSendsJSON(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(t, http.StatusNoContent))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	out := client.Deliver(context.Background(), Request{Report: testReport()})

	require.NoError(t, out.Err)
	assert.True(t, out.Sent)
	assert.False(t, out.Attached)

	reqs := c.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "application/json", reqs[0].contentType)
	var msg Message
	require.NoError(t, json.Unmarshal(reqs[0].body, &msg))
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, statusNotFound, msg.Embeds[0].Fields[5].Value)
}

func TestDeliver_StagingFailureFallsBack(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(t, http.StatusOK))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	out := client.Deliver(context.Background(), Request{
		Report:       testReport(),
		ArtifactPath: filepath.Join(t.TempDir(), "gone.demo"),
		Matched:      true,
	})

	require.Error(t, out.Err)
	assert.True(t, out.Sent)
	assert.False(t, out.Attached)
	reqs := c.all()
	require.Len(t, reqs, 1)
	assert.Contains(t, string(reqs[0].body), statusNotFound)
}

func TestDeliver_NoWebhookSkipsNetwork(t *testing.T) {
	client := newTestClient(t, "  ")
	out := client.Deliver(context.Background(), Request{Report: testReport()})
	assert.ErrorIs(t, out.Err, ErrNoWebhook)
	assert.False(t, out.Sent)
	assert.ErrorIs(t, client.SendStartup(context.Background()), ErrNoWebhook)
}

func TestDeliver_ErrorStatusStillCleansUp(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(t, http.StatusInternalServerError))
	defer srv.Close()

	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	demo := writeDemo(t, t.TempDir(), "tdm_mp_raid_2024_03_05_14_31.demo", "x")
	client := newTestClient(t, srv.URL)
	out := client.Deliver(context.Background(), Request{Report: testReport(), ArtifactPath: demo, Matched: true})
	client.Wait()

	var se *StatusError
	require.ErrorAs(t, out.Err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.False(t, out.Sent)

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDeliver_IgnoresCallerCancellation(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(t, http.StatusOK))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL)
	out := client.Deliver(ctx, Request{Report: testReport()})
	require.NoError(t, out.Err)
	assert.Len(t, c.all(), 1)
}

func TestSendStartup(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(t, http.StatusNoContent))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.SendStartup(context.Background()))

	reqs := c.all()
	require.Len(t, reqs, 1)
	var body map[string]string
	require.NoError(t, json.Unmarshal(reqs[0].body, &body))
	assert.Equal(t, "✅ **DemosToDiscord Loaded**\nDiscord API Test Complete.", body["content"])
}

func TestSendStartup_ErrorStatus(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(t, http.StatusUnauthorized))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	var se *StatusError
	require.ErrorAs(t, client.SendStartup(context.Background()), &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestMultipartBody_FieldOrder(t *testing.T) {
	dir := t.TempDir()
	demo := writeDemo(t, dir, "a.demo", "d")
	sidecar := writeDemo(t, dir, "a.json", "{}")

	body, contentType, err := multipartBody(Embed{Title: "t"}, stagedFor(demo, sidecar))
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	mr := multipart.NewReader(body, params["boundary"])
	var names []string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, p.FormName())
	}
	assert.Equal(t, []string{"payload_json", "files[0]", "files[1]"}, names)
}
