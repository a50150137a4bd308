// internal/fetch/service.go
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	gc "github.com/joshsymonds/mailrake/internal/gmail"
	"github.com/joshsymonds/mailrake/internal/rate"
	"github.com/joshsymonds/mailrake/internal/store"
)

// EmailStore is the slice of the store the fetcher writes through.
type EmailStore interface {
	UpsertEmail(ctx context.Context, e store.Email) (int64, error)
}

// Options controls one fetch run.
type Options struct {
	Limit    int // maximum messages to fetch
	PageSize int // Gmail list page size (<=500)
}

// Service pulls inbox messages from Gmail into the local store.
type Service struct {
	Client  gc.Client
	Store   EmailStore
	Limiter rate.Limiter
	Logger  *slog.Logger
	Clock   func() time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(client gc.Client, st EmailStore, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	return &Service{
		Client:  client,
		Store:   st,
		Limiter: limiter,
		Logger:  logger,
		Clock:   time.Now,
	}
}

// Run fetches up to opts.Limit inbox messages and upserts them into the
// store, returning the store IDs of everything fetched.
func (s *Service) Run(ctx context.Context, opts Options) ([]int64, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 500
	}
	if pageSize > limit {
		pageSize = limit
	}

	q := gc.Query{Raw: "in:inbox"}
	var ids []gc.MessageID
	pageToken := ""
	for len(ids) < limit {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := s.Client.List(ctx, q, pageToken, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		ids = append(ids, page.IDs...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		s.Logger.InfoContext(ctx, "no messages found")
		return nil, nil
	}

	stored := make([]int64, 0, len(ids))
	for _, id := range ids {
		if err := s.Limiter.Wait(ctx); err != nil {
			return stored, err
		}
		msg, err := s.Client.GetFull(ctx, id)
		if err != nil {
			return stored, fmt.Errorf("get message %s: %w", id, err)
		}
		email := s.parseMessage(msg)
		storeID, err := s.Store.UpsertEmail(ctx, email)
		if err != nil {
			return stored, fmt.Errorf("store message %s: %w", id, err)
		}
		stored = append(stored, storeID)
	}
	s.Logger.InfoContext(ctx, "fetched messages", "count", len(stored))
	return stored, nil
}

// parseMessage converts a full-format Gmail message into a store row.
func (s *Service) parseMessage(m gc.FullMessage) store.Email {
	e := store.Email{
		MessageID:   string(m.ID),
		ThreadID:    m.ThreadID,
		FromAddress: m.Headers["From"],
		ToAddress:   m.Headers["To"],
		Subject:     m.Headers["Subject"],
		Snippet:     m.Snippet,
		IsRead:      !m.HasLabel(gc.LabelUnread),
		Labels:      joinLabels(m.Labels),
	}
	if e.Subject == "" {
		e.Subject = "(No Subject)"
	}
	if m.BodyText != "" {
		body := m.BodyText
		e.BodyText = &body
	}
	if m.BodyHTML != "" {
		body := m.BodyHTML
		e.BodyHTML = &body
	}
	// A missing Date header leaves the receive time unknown; a malformed one
	// falls back to fetch time.
	if raw, ok := m.Headers["Date"]; ok {
		received, err := mail.ParseDate(raw)
		if err != nil {
			received = s.Clock().UTC()
		}
		received = received.UTC()
		e.ReceivedDate = &received
	}
	return e
}

func joinLabels(labels []gc.LabelID) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}
