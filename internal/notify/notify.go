// Package notify records user notifications and delivers them best-effort.
//
// Recording happens inside the transaction that caused the notification, so
// a rolled back operation leaves no rows behind. Delivery happens after
// commit. Neither step can fail the owning operation.
package notify

import (
	"context"
	"log/slog"

	"github.com/jensholdgaard/clubhub/internal/store"
)

// Notification types.
const (
	TypePromotion  = "promotion"
	TypeLink       = "link"
	TypeProposal   = "proposal"
	TypeAssignment = "assignment"
	TypeMatch      = "match"
	TypeSession    = "session"
	TypeTournament = "tournament"
)

// Message is a single notification for a user.
type Message struct {
	UserID string
	Title  string
	Body   string
	Type   string
}

// Sink delivers a message to the user outside the store.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier records and delivers messages.
type Notifier struct {
	sink   Sink
	logger *slog.Logger
}

// NewNotifier returns a Notifier delivering through sink. A nil sink only
// records.
func NewNotifier(sink Sink, logger *slog.Logger) *Notifier {
	return &Notifier{sink: sink, logger: logger}
}

// Record persists msgs through repo.
func (n *Notifier) Record(ctx context.Context, repo store.NotificationRepository, msgs ...Message) {
	for _, msg := range msgs {
		row := &store.Notification{
			UserID:  msg.UserID,
			Title:   msg.Title,
			Message: msg.Body,
			Type:    msg.Type,
		}
		if err := repo.Create(ctx, row); err != nil {
			n.logger.WarnContext(ctx, "failed to record notification",
				slog.String("user_id", msg.UserID),
				slog.String("title", msg.Title),
				slog.Any("error", err),
			)
		}
	}
}

// Deliver hands msgs to the sink.
func (n *Notifier) Deliver(ctx context.Context, msgs ...Message) {
	if n == nil || n.sink == nil {
		return
	}
	for _, msg := range msgs {
		if err := n.sink.Send(ctx, msg); err != nil {
			n.logger.WarnContext(ctx, "failed to deliver notification",
				slog.String("user_id", msg.UserID),
				slog.String("title", msg.Title),
				slog.Any("error", err),
			)
		}
	}
}

// LogSink writes messages to a logger. Used when no chat transport is
// configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, msg Message) error {
	s.Logger.InfoContext(ctx, "notification",
		slog.String("user_id", msg.UserID),
		slog.String("type", msg.Type),
		slog.String("title", msg.Title),
	)
	return nil
}
