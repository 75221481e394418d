package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mixsplit/internal/config"
	"mixsplit/internal/report"
)

const userAgent = "mixsplit/0.1.0"

// Service defines the notification surface used by the pipeline.
type Service interface {
	NotifyRunCompleted(ctx context.Context, run *report.RunReport) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		runCompleted: cfg.Notifications.RunCompleted,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runCompleted bool
	errors       bool
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, run *report.RunReport) error {
	if !n.runCompleted || run == nil {
		return nil
	}
	elapsed := run.Elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	totals := run.Totals
	var builder strings.Builder
	fmt.Fprintf(&builder, "%d tracks from %d batches in %s\n", totals.Produced, len(run.Batches), elapsed)
	fmt.Fprintf(&builder, "✅ %d identified, ❓ %d unidentified", totals.Identified, totals.Unidentified)
	if totals.Skipped > 0 {
		fmt.Fprintf(&builder, ", ⏭️ %d skipped", totals.Skipped)
	}
	if len(run.Skipped) > 0 {
		fmt.Fprintf(&builder, "\n%d unsupported inputs", len(run.Skipped))
	}

	data := payload{
		title:   "mixsplit - Run Complete",
		message: builder.String(),
		tags:    []string{"mixsplit", "run", "completed"},
	}
	switch {
	case run.Halted:
		data.title = "mixsplit - Run Halted"
		data.tags = []string{"mixsplit", "run", "halted"}
		data.priority = "high"
	case run.Stopped:
		data.title = "mixsplit - Run Stopped"
		data.tags = []string{"mixsplit", "run", "stopped"}
	case len(run.Failures) > 0:
		data.title = "mixsplit - Run Complete (with errors)"
		fmt.Fprintf(&builder, "\n❌ %d failures", len(run.Failures))
		data.message = builder.String()
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "mixsplit - Error",
		message:  builder.String(),
		tags:     []string{"mixsplit", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "mixsplit - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"mixsplit", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, *report.RunReport) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
