// Package notify delivers new-post and welcome emails to subscribers.
// Dispatch never blocks the triggering request and never fails it.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/pkg/mail"
	"github.com/quillspace/core/internal/pkg/markdown"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// sendTimeout bounds a single delivery attempt so a hung transport
	// cannot leak goroutines indefinitely.
	sendTimeout = 10 * time.Second

	excerptLength = 200
)

// Sender is the outbound notification capability. mail.Sender implements it;
// tests substitute a fake.
type Sender interface {
	SendNewPost(to string, data mail.NewPostData) error
	SendWelcome(to string) error
}

// RecipientFailure records one failed delivery within a dispatch run.
type RecipientFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// Report summarizes a synchronous dispatch run.
type Report struct {
	Total    int                `json:"total"`
	Sent     int                `json:"sent"`
	Failures []RecipientFailure `json:"failures"`
}

// Dispatcher fans out notifications to the current subscribed set. Background
// runs are tracked so shutdown can flush in-flight work; no request context
// propagates into them.
type Dispatcher struct {
	db     *gorm.DB
	sender Sender
	webURL string
	log    *zap.Logger

	wg sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, sender Sender, webURL string, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:     db,
		sender: sender,
		webURL: strings.TrimRight(webURL, "/"),
		log:    log,
	}
}

// recipients returns the emails subscribed at this moment. No snapshot
// isolation beyond the single read.
func (d *Dispatcher) recipients() ([]string, error) {
	var emails []string
	err := d.db.Model(&models.SubscriberModel{}).
		Where("is_subscribed = ?", true).
		Pluck("email", &emails).Error
	return emails, err
}

// DispatchNewPost starts a fire-and-forget notification run for a freshly
// published post. The caller returns immediately; per-recipient failures are
// logged and never propagated.
func (d *Dispatcher) DispatchNewPost(post *models.PostModel) {
	data := d.newPostData(post)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		report := d.run(data)
		if len(report.Failures) > 0 {
			d.log.Warn("post notification partially failed",
				zap.String("slug", post.Slug),
				zap.Int("sent", report.Sent),
				zap.Int("failed", len(report.Failures)),
			)
			return
		}
		d.log.Info("post notification dispatched",
			zap.String("slug", post.Slug),
			zap.Int("sent", report.Sent),
		)
	}()
}

// NotifyNow delivers notifications for the post synchronously and reports the
// per-recipient outcome. This is the only variant where the caller blocks on
// delivery.
func (d *Dispatcher) NotifyNow(ctx context.Context, post *models.PostModel) (*Report, error) {
	data := d.newPostData(post)
	done := make(chan *Report, 1)
	go func() { done <- d.run(data) }()
	select {
	case report := <-done:
		return report, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendWelcome attempts a welcome email in the background. Best-effort: the
// subscribe operation has already succeeded by the time this runs.
func (d *Dispatcher) SendWelcome(email string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sendBounded(func() error { return d.sender.SendWelcome(email) }); err != nil {
			d.log.Warn("welcome email failed", zap.String("email", email), zap.Error(err))
		}
	}()
}

// Flush waits for in-flight dispatch runs, bounded by ctx.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run reads the subscribed set and attempts delivery to every recipient
// independently: one failure neither stops the others nor fails the batch.
func (d *Dispatcher) run(data mail.NewPostData) *Report {
	emails, err := d.recipients()
	if err != nil {
		d.log.Error("load subscribers for dispatch", zap.Error(err))
		return &Report{}
	}
	if len(emails) == 0 {
		return &Report{}
	}

	type outcome struct {
		email string
		err   error
	}
	results := make(chan outcome, len(emails))

	for _, email := range emails {
		go func(email string) {
			err := d.sendBounded(func() error { return d.sender.SendNewPost(email, data) })
			results <- outcome{email: email, err: err}
		}(email)
	}

	report := &Report{Total: len(emails), Failures: []RecipientFailure{}}
	for range emails {
		res := <-results
		if res.err != nil {
			report.Failures = append(report.Failures, RecipientFailure{
				Email: res.email,
				Error: res.err.Error(),
			})
			continue
		}
		report.Sent++
	}
	return report
}

// sendBounded enforces the per-delivery timeout around a sender call. The
// underlying SMTP call cannot be cancelled, so on timeout the goroutine is
// abandoned and its result discarded.
func (d *Dispatcher) sendBounded(send func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- send() }()

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

func (d *Dispatcher) newPostData(post *models.PostModel) mail.NewPostData {
	return mail.NewPostData{
		Title:   post.Title,
		Excerpt: markdown.Excerpt(post.Content, excerptLength),
		URL:     d.webURL + "/posts/" + post.Slug,
	}
}
