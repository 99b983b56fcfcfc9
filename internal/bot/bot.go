// Package bot answers quoting commands from the admin Telegram chat.
package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetFileDirectURL(fileID string) (string, error)
}

type Quoter interface {
	Series(ctx context.Context, partID int64, quantities []int) ([]pricing.Breakdown, error)
}

type Lifecycle interface {
	FreezeBatch(ctx context.Context, batchID, expectedVersion int64) (batches.Snapshot, error)
	FreezeBatchSet(ctx context.Context, setID int64) ([]batches.Snapshot, error)
	ReportStale(ctx context.Context, partID int64) ([]batches.Batch, error)
}

type Parts interface {
	GetPart(ctx context.Context, id int64) (parts.Part, bool, error)
}

type Categories interface {
	GetPriceCategory(ctx context.Context, id int64) (materials.PriceCategory, bool, error)
}

type TierWriter interface {
	ReplaceTiers(ctx context.Context, categoryID, expectedVersion int64, tiers []materials.PriceTier) (int64, error)
}

type Deps struct {
	Quoter     Quoter
	Lifecycle  Lifecycle
	Parts      Parts
	Categories Categories
	TierWriter TierWriter
}

type Bot struct {
	api       API
	log       *slog.Logger
	adminChat int64
	deps      Deps
	client    *http.Client
}

func New(api API, log *slog.Logger, adminChatID int64, deps Deps) *Bot {
	return &Bot{
		api:       api,
		log:       log.With("component", "bot"),
		adminChat: adminChatID,
		deps:      deps,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				b.onMessage(ctx, upd.Message)
			}
		}
	}
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	if msg.Chat.ID != b.adminChat {
		b.reply(msg.Chat.ID, "This bot only serves the quoting office chat.")
		return
	}
	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// downloadTelegramFile fetches an uploaded file by its FileID.
func (b *Bot) downloadTelegramFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram returned status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
