// Package notify announces newly scored posts that reach the top of the
// leaderboard.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"post-judge/model"
)

const defaultTopN = 10

// MessageSender sends messages to Telegram.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, html bool) (int64, error)
}

// Ranker looks up a post's leaderboard position.
type Ranker interface {
	Rank(ctx context.Context, post *model.Post) (int, bool)
}

// Notifier posts a message for every scored post ranked within topN.
type Notifier struct {
	sender MessageSender
	ranker Ranker
	chatID int64
	topN   int
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithTopN sets the rank cutoff for announcements.
func WithTopN(n int) Option {
	return func(nt *Notifier) {
		nt.topN = n
	}
}

// NewNotifier creates a notifier sending to chatID.
func NewNotifier(sender MessageSender, ranker Ranker, chatID int64, opts ...Option) *Notifier {
	n := &Notifier{
		sender: sender,
		ranker: ranker,
		chatID: chatID,
		topN:   defaultTopN,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyScored announces post if it is scored and ranks within the cutoff.
func (n *Notifier) NotifyScored(ctx context.Context, post *model.Post) error {
	if n.chatID == 0 {
		return fmt.Errorf("chat_id not set")
	}
	if post.Status != model.StatusScored || post.AverageScore == nil {
		return nil
	}

	rank, ok := n.ranker.Rank(ctx, post)
	if !ok || rank > n.topN {
		slog.Debug("post outside announcement range", "post_id", post.ID, "rank", rank, "known", ok)
		return nil
	}

	msgID, err := n.sender.SendMessage(ctx, n.chatID, FormatScoredPost(post, rank), true)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	slog.Info("announced scored post", "post_id", post.ID, "rank", rank, "message_id", msgID)
	return nil
}

// FormatScoredPost formats a scored post for display in Telegram.
func FormatScoredPost(post *model.Post, rank int) string {
	nickname := html.EscapeString(post.Nickname)
	body := html.EscapeString(post.Body)

	avg := 0.0
	if post.AverageScore != nil {
		avg = *post.AverageScore
	}

	return fmt.Sprintf(
		"🏆 <b>#%d</b> %s\n\n"+
			"<i>%s</i>\n\n"+
			"⭐ %.1f / 100 | 🧑‍⚖️ %d judges",
		rank, nickname, body, avg, post.JudgesCount,
	)
}
