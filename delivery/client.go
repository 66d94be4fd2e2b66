// Package delivery sends report notifications, with the matched demo
// attached, to the configured webhook.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"demos-to-discord/demos"
	"demos-to-discord/evidence"
)

const (
	userAgent           = "DemosToDiscord"
	defaultTimeout      = 10 * time.Minute
	defaultCleanupDelay = 15 * time.Second
	maxResponseBody     = 64 << 10

	startupContent = "✅ **DemosToDiscord Loaded**\nDiscord API Test Complete."
)

// ErrNoWebhook is returned when no webhook URL is configured. Nothing is
// sent in that case.
var ErrNoWebhook = errors.New("webhook URL is not configured")

// StatusError is a non-2xx answer from the webhook.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned HTTP %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	WebhookURL  string
	WebfrontURL string
	Version     string
	// Timeout bounds each HTTP request, independently of workflow deadlines.
	Timeout time.Duration
	// CleanupDelay is the grace period before staged copies are removed.
	CleanupDelay time.Duration
}

// Request is one notification for one report.
type Request struct {
	Report       demos.ReportContext
	ArtifactPath string
	SidecarPath  string
	Matched      bool
}

// Outcome reports what happened to a Request. Err is nil only when the
// sink accepted the message and, for matched reports, the demo was attached.
type Outcome struct {
	Sent       bool
	Attached   bool
	StatusCode int
	Err        error
}

type Client struct {
	logger     *zap.Logger
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	cleanups sync.WaitGroup
}

func New(logger *zap.Logger, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = defaultCleanupDelay
	}
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	return &Client{
		logger:     logger.Named("delivery"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// SendStartup posts the one-shot health check message.
func (c *Client) SendStartup(ctx context.Context) error {
	if c.cfg.WebhookURL == "" {
		c.logger.Error("Webhook empty, startup message skipped")
		return ErrNoWebhook
	}

	body, err := json.Marshal(map[string]string{"content": startupContent})
	if err != nil {
		return fmt.Errorf("marshal startup message: %w", err)
	}
	status, resp, err := c.post(context.WithoutCancel(ctx), "startup", "application/json", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("Startup message failed",
			zap.String("url", RedactURL(c.cfg.WebhookURL)),
			zap.Error(err),
		)
		return err
	}
	c.logger.Info("Startup message sent", zap.Int("status", status), zap.String("body", resp))
	return nil
}

// Deliver sends exactly one message for req. Matched demos are staged,
// attached and their staged copies removed after CleanupDelay whatever the
// upload result. The request is not bound to ctx's cancellation.
func (c *Client) Deliver(ctx context.Context, req Request) Outcome {
	log := c.logger.With(zap.String("run_id", req.Report.RunID))
	if c.cfg.WebhookURL == "" {
		log.Error("Webhook empty, delivery skipped", zap.Bool("matched", req.Matched))
		return Outcome{Err: ErrNoWebhook}
	}
	ctx = context.WithoutCancel(ctx)

	if !req.Matched || req.ArtifactPath == "" {
		return c.sendWithoutDemo(ctx, req, log, nil)
	}

	staged, err := evidence.Stage(req.ArtifactPath, req.SidecarPath)
	if err != nil {
		log.Error("Staging demo failed, sending report without it", zap.Error(err))
		return c.sendWithoutDemo(ctx, req, log, err)
	}
	defer c.scheduleCleanup(staged, log)

	embed := BuildEmbed(req.Report, Attachment{Attached: true, SHA256: staged.SHA256}, c.embedOptions())
	body, contentType, err := multipartBody(embed, staged)
	if err != nil {
		log.Error("Building upload failed", zap.Error(err))
		return Outcome{Err: err}
	}

	status, resp, err := c.post(ctx, "upload", contentType, body)
	if err != nil {
		log.Error("Upload failed",
			zap.String("file", filepath.Base(staged.Artifact)),
			zap.Int("status", status),
			zap.Error(err),
		)
		return Outcome{StatusCode: status, Err: err}
	}
	log.Info("Demo uploaded",
		zap.String("file", filepath.Base(staged.Artifact)),
		zap.Int64("size_bytes", staged.Size),
		zap.Bool("sidecar", staged.Sidecar != ""),
		zap.Int("status", status),
		zap.String("body", resp),
	)
	return Outcome{Sent: true, Attached: true, StatusCode: status}
}

// Wait blocks until every scheduled cleanup has run. Workflows never call
// it; it exists for shutdown.
func (c *Client) Wait() {
	c.cleanups.Wait()
}

// sendWithoutDemo posts the embed alone with the not-found indicator.
// cause, when set, is reported as the outcome error even if the post works.
func (c *Client) sendWithoutDemo(ctx context.Context, req Request, log *zap.Logger, cause error) Outcome {
	embed := BuildEmbed(req.Report, Attachment{}, c.embedOptions())
	body, err := json.Marshal(Message{Embeds: []Embed{embed}})
	if err != nil {
		return Outcome{Err: fmt.Errorf("marshal message: %w", err)}
	}

	status, resp, err := c.post(ctx, "no_demo", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Error("No-demo notification failed", zap.Int("status", status), zap.Error(err))
		return Outcome{StatusCode: status, Err: err}
	}
	log.Info("No-demo notification sent", zap.Int("status", status), zap.String("body", resp))
	return Outcome{Sent: true, StatusCode: status, Err: cause}
}

func (c *Client) embedOptions() EmbedOptions {
	return EmbedOptions{WebfrontURL: c.cfg.WebfrontURL, Version: c.cfg.Version, Now: c.now()}
}

func (c *Client) scheduleCleanup(s evidence.Staged, log *zap.Logger) {
	c.cleanups.Add(1)
	go func() {
		defer c.cleanups.Done()
		time.Sleep(c.cfg.CleanupDelay)
		if err := s.Remove(); err != nil {
			log.Debug("Removing staged demo failed", zap.String("dir", s.Dir), zap.Error(err))
		}
	}()
}

func (c *Client) post(ctx context.Context, kind, contentType string, body io.Reader) (int, string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, body)
	if err != nil {
		webhookSendTotal.WithLabelValues(kind, "error").Inc()
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	webhookSendDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		webhookSendTotal.WithLabelValues(kind, "error").Inc()
		return 0, "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		webhookSendTotal.WithLabelValues(kind, "error").Inc()
		return resp.StatusCode, string(b), &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	webhookSendTotal.WithLabelValues(kind, "success").Inc()
	return resp.StatusCode, string(b), nil
}

// multipartBody lays out payload_json first, then files[0] (the demo) and
// files[1] (the sidecar, when staged).
func multipartBody(embed Embed, staged evidence.Staged) (*bytes.Buffer, string, error) {
	payload, err := json.Marshal(Message{Embeds: []Embed{embed}})
	if err != nil {
		return nil, "", fmt.Errorf("marshal message: %w", err)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="payload_json"`)
	h.Set("Content-Type", "application/json")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := pw.Write(payload); err != nil {
		return nil, "", err
	}

	if err := addFile(mw, "files[0]", staged.Artifact, "application/octet-stream"); err != nil {
		return nil, "", err
	}
	if staged.Sidecar != "" {
		if err := addFile(mw, "files[1]", staged.Sidecar, "application/json"); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func addFile(mw *multipart.Writer, field, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filepath.Base(path))))
	h.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}
