// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package publish fans one message out to every active destination a user
// has linked. Each destination is delivered independently: a failure, a
// timeout or a panic on one page is recorded against that page only, and
// the aggregate is returned once every page has been attempted.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"broadcaster/internal/facebook"
	"broadcaster/internal/metrics"
	"broadcaster/internal/models"
)

// ErrNoActiveDestinations is returned when the user has nothing to publish to.
var ErrNoActiveDestinations = errors.New("no active Facebook pages found for this user")

// ValidationError reports a request rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Defaults applied when Options leaves a value unset.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultConcurrency  = 4
	DefaultBatchTimeout = 75 * time.Second
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	msgNoToken = "No access token"
)

// Registry supplies the active destinations of a user.
type Registry interface {
	ListActive(userID uuid.UUID) ([]models.FacebookPage, error)
}

// Poster performs the network delivery to a single page.
type Poster interface {
	PostFeed(ctx context.Context, pageID, accessToken, message, link string) (string, error)
	PostPhoto(ctx context.Context, pageID, accessToken, imageURL, caption string) (string, error)
}

// Message is what gets published.
type Message struct {
	Text     string `json:"message"`
	Link     string `json:"link,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Outcome is the result for one destination.
type Outcome struct {
	PageID   string `json:"pageId"`
	PageName string `json:"pageName"`
	Status   string `json:"status"`
	PostID   string `json:"postId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Result is the aggregate of a batch. Success is true when at least one
// destination succeeded.
type Result struct {
	Success bool      `json:"success"`
	Summary Summary   `json:"summary"`
	Results []Outcome `json:"results"`
	Errors  []Outcome `json:"errors"`
}

// Outcomes returns every outcome, successes first.
func (r *Result) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(r.Results)+len(r.Errors))
	out = append(out, r.Results...)
	return append(out, r.Errors...)
}

// Options tune a Publisher.
type Options struct {
	// FallbackToken is used for pages without their own token.
	FallbackToken string
	Timeout       time.Duration
	// BatchTimeout bounds a whole fan-out. Pages still in flight or not
	// yet started when it expires are reported as failed.
	BatchTimeout  time.Duration
	Concurrency   int
	Metrics       metrics.Recorder
	Logger        *slog.Logger
}

// Publisher delivers messages to a user's active pages.
type Publisher struct {
	registry Registry
	poster   Poster
	opts     Options
}

// New creates a Publisher.
func New(registry Registry, poster Poster, opts Options) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = DefaultBatchTimeout
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Publisher{registry: registry, poster: poster, opts: opts}
}

// PublishToAllActive delivers msg to every active page of userID.
func (p *Publisher) PublishToAllActive(ctx context.Context, userID uuid.UUID, msg Message) (*Result, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, &ValidationError{Field: "message", Message: "Missing required fields: message is required"}
	}

	pages, err := p.registry.ListActive(userID)
	if err != nil {
		return nil, fmt.Errorf("list active destinations: %w", err)
	}
	active := pages[:0:0]
	for _, page := range pages {
		if page.IsActive {
			active = append(active, page)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoActiveDestinations
	}

	start := time.Now()
	outcomes := make([]Outcome, len(active))

	batchCtx, cancel := context.WithTimeout(ctx, p.opts.BatchTimeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, page := range active {
		g.Go(func() error {
			outcomes[i] = p.deliver(batchCtx, page, msg)
			return nil
		})
	}
	_ = g.Wait() // deliveries never return errors

	result := aggregate(outcomes)
	p.opts.Metrics.RecordBatch(result.Summary.Succeeded, result.Summary.Failed, time.Since(start))
	p.opts.Logger.Info("publish batch finished",
		"user_id", userID,
		"total", result.Summary.Total,
		"succeeded", result.Summary.Succeeded,
		"failed", result.Summary.Failed,
		"duration", time.Since(start),
	)
	return result, nil
}

// deliver posts to one page and always returns an outcome.
func (p *Publisher) deliver(ctx context.Context, page models.FacebookPage, msg Message) (out Outcome) {
	out = Outcome{PageID: page.PageID, PageName: page.PageName}
	defer func() {
		if r := recover(); r != nil {
			p.opts.Logger.Error("panic during delivery", "page_id", page.PageID, "panic", r)
			out.Status, out.PostID, out.Error = StatusFailed, "", fmt.Sprintf("internal error: %v", r)
		}
		p.opts.Metrics.RecordDestination(out.Status)
	}()

	token := page.Token(p.opts.FallbackToken)
	if token == "" {
		out.Status, out.Error = StatusFailed, msgNoToken
		return out
	}

	if err := ctx.Err(); err != nil {
		out.Status, out.Error = StatusFailed, p.describe(ctx, err)
		return out
	}

	batchCtx := ctx
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	var (
		postID string
		err    error
	)
	if msg.ImageURL != "" {
		postID, err = p.poster.PostPhoto(ctx, page.PageID, token, msg.ImageURL, msg.Text)
	} else {
		postID, err = p.poster.PostFeed(ctx, page.PageID, token, msg.Text, msg.Link)
	}
	if err != nil {
		p.opts.Logger.Warn("delivery failed", "page_id", page.PageID, "error", err)
		out.Status, out.Error = StatusFailed, p.describe(batchCtx, err)
		return out
	}

	out.Status, out.PostID = StatusSuccess, postID
	return out
}

// describe turns a delivery error into the message shown to callers.
// batchCtx tells a batch deadline apart from the per-page one.
func (p *Publisher) describe(batchCtx context.Context, err error) string {
	var ue *facebook.UpstreamError
	switch {
	case errors.As(err, &ue):
		return ue.Message
	case errors.Is(err, context.DeadlineExceeded) && errors.Is(batchCtx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("Batch timed out after %s", p.opts.BatchTimeout)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Timed out after %s", p.opts.Timeout)
	default:
		return err.Error()
	}
}

func aggregate(outcomes []Outcome) *Result {
	r := &Result{
		Summary: Summary{Total: len(outcomes)},
		Results: []Outcome{},
		Errors:  []Outcome{},
	}
	for _, o := range outcomes {
		if o.Status == StatusSuccess {
			r.Results = append(r.Results, o)
		} else {
			r.Errors = append(r.Errors, o)
		}
	}
	r.Summary.Succeeded = len(r.Results)
	r.Summary.Failed = len(r.Errors)
	r.Success = r.Summary.Succeeded > 0
	return r
}
