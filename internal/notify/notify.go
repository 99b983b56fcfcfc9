// Package notify tells the admin chat about frozen quotes and stale prices.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
)

// Sender is the part of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	api    Sender
	chatID int64
	log    *slog.Logger
}

func NewTelegram(api Sender, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: log.With("component", "notify")}
}

func (t *Telegram) BatchFrozen(ctx context.Context, s batches.Snapshot) error {
	return t.send(ctx, FormatBatchFrozen(s))
}

func (t *Telegram) BatchSetFrozen(ctx context.Context, set batches.BatchSet, snaps []batches.Snapshot) error {
	return t.send(ctx, FormatBatchSetFrozen(set, snaps))
}

func (t *Telegram) StaleBatches(ctx context.Context, partID int64, stale []batches.Batch) error {
	return t.send(ctx, FormatStale(partID, stale))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.log.Debug("notification sent", "chat_id", t.chatID)
	return nil
}

// Nop drops every notification. Used when no bot token is configured.
type Nop struct{}

func (Nop) BatchFrozen(context.Context, batches.Snapshot) error                        { return nil }
func (Nop) BatchSetFrozen(context.Context, batches.BatchSet, []batches.Snapshot) error { return nil }
func (Nop) StaleBatches(context.Context, int64, []batches.Batch) error                 { return nil }

func FormatBatchFrozen(s batches.Snapshot) string {
	t := s.Breakdown.Totals
	return fmt.Sprintf("Batch #%d frozen (part #%d, qty %d)\nunit price %s, total %s",
		s.BatchID, s.PartID, s.Quantity, t.UnitPrice, t.TotalCost)
}

func FormatBatchSetFrozen(set batches.BatchSet, snaps []batches.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Batch set #%d %q frozen (part #%d)", set.ID, set.Name, set.PartID)
	for _, s := range snaps {
		fmt.Fprintf(&sb, "\n%6d pcs: %s / pc, %s total", s.Quantity, s.Breakdown.Totals.UnitPrice, s.Breakdown.Totals.TotalCost)
	}
	return sb.String()
}

func FormatStale(partID int64, stale []batches.Batch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Part #%d: %d draft batch(es) priced before the last rate change", partID, len(stale))
	for _, b := range stale {
		fmt.Fprintf(&sb, "\n#%d qty %d, recalculated %s", b.ID, b.Quantity, b.RecalculatedAt.Format("2006-01-02 15:04"))
	}
	return sb.String()
}
