package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service/logging"
)

const (
	DefaultTimeout = 10 * time.Second
	appendMethod   = "logseq.Editor.appendBlockInPage"
	dateLayout     = "2006-01-02"

	unreachableMessage = "Cannot connect to Logseq. Make sure Logseq is running with HTTP API Server enabled."
)

// Client talks to the HTTP API embedded in the Logseq desktop app.
type Client struct {
	url    string
	http   *http.Client
	now    func() time.Time
	logger *slog.Logger
}

func New(cfg domain.Config, logger *slog.Logger) *Client {
	url := cfg.JournalURL
	if url == "" {
		url = domain.DefaultJournalURL
	}
	timeout := cfg.JournalTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		now:    time.Now,
		logger: logger,
	}
}

// AppendToJournal appends content as a new block on today's journal page.
//
// The desktop app answers null when the append succeeded on an existing page;
// that is reported as success without data. A genuine "page not found" is
// indistinguishable from it.
func (c *Client) AppendToJournal(ctx context.Context, content, token string) (domain.JournalResult, error) {
	today := c.now().Format(dateLayout)
	logging.Request(c.logger).Info("Appending to journal", "date", today)

	payload, err := json.Marshal(domain.JournalRequest{
		Method: appendMethod,
		Args:   []string{today, content},
	})
	if err != nil {
		return c.fail(domain.UpstreamFailure, err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return c.fail(domain.UpstreamFailure, err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return c.fail(domain.UpstreamTimeout, "Logseq API request timed out after "+domain.Seconds(c.http.Timeout), err)
		}
		return c.fail(domain.UpstreamUnavailable, unreachableMessage, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(domain.UpstreamFailure, err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(domain.UpstreamFailure, fmt.Sprintf("Logseq API error: %d - %s", resp.StatusCode, string(body)), nil)
	}

	text := strings.TrimSpace(string(body))
	if text == "" || text == "null" {
		return domain.JournalResult{Success: true}, nil
	}
	if !json.Valid([]byte(text)) {
		return c.fail(domain.UpstreamFailure, fmt.Sprintf("invalid JSON from Logseq API: %.80s", text), nil)
	}
	return domain.JournalResult{Success: true, Data: json.RawMessage(text)}, nil
}

func (c *Client) fail(kind domain.UpstreamKind, msg string, err error) (domain.JournalResult, error) {
	logging.Failure(c.logger).Error("Logseq API call failed", "kind", kind.String(), "error", msg)
	return domain.JournalResult{Success: false, Error: msg}, &domain.UpstreamError{Kind: kind, Message: msg, Err: err}
}
