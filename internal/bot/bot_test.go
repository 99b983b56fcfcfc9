package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/export"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/infra/memstore"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/snapshot"
)

const adminChat = 42

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	fileURL string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) { return f.fileURL, nil }

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) documents() []tgbotapi.DocumentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.DocumentConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

type harness struct {
	bot   *Bot
	api   *fakeAPI
	store *memstore.Store
	demo  memstore.Demo
	cache *pricing.Cache
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := memstore.New()
	d := memstore.SeedDemo(s)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := pricing.NewCache(s)
	p := pricing.NewPricer(pricing.Catalog{Parts: s, WorkCenters: s, Materials: cache, Config: s}, pricing.Options{}, log)
	eng := snapshot.New(s, p, s, snapshot.Options{}, log)

	api := &fakeAPI{}
	b := New(api, log, adminChat, Deps{
		Quoter:     p,
		Lifecycle:  eng,
		Parts:      s,
		Categories: cache,
		TierWriter: pricing.NewCatalogWriter(cache, s),
	})
	return &harness{bot: b, api: api, store: s, demo: d, cache: cache}
}

func command(text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: adminChat},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestQuoteRepliesWithSummaryAndWorkbook(t *testing.T) {
	h := newHarness(t)
	h.bot.onMessage(context.Background(), command(fmt.Sprintf("/quote %d 1 100", h.demo.PartID)))

	texts := h.api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "SHAFT-01 Drive shaft")
	assert.Contains(t, texts[0], "     1 pcs: 849.57 / pc")

	docs := h.api.documents()
	require.Len(t, docs, 1)
	assert.True(t, strings.HasPrefix(docs[0].File.(tgbotapi.FileBytes).Name, fmt.Sprintf("quote_%d_", h.demo.PartID)))
}

func TestQuoteReportsReasonCode(t *testing.T) {
	h := newHarness(t)
	h.bot.onMessage(context.Background(), command(fmt.Sprintf("/quote %d 0", h.demo.PartID)))

	texts := h.api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "invalid_quantity")
	assert.Empty(t, h.api.documents())
}

func TestForeignChatIsRefused(t *testing.T) {
	h := newHarness(t)
	msg := command("/quote 1 1")
	msg.Chat.ID = 7
	h.bot.onMessage(context.Background(), msg)

	texts := h.api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "only serves")
}

func TestUsageMessages(t *testing.T) {
	h := newHarness(t)
	for _, c := range []string{"/freeze", "/freezeset x", "/stale 1 2", "/tiers", "/quote 1"} {
		h.bot.onMessage(context.Background(), command(c))
	}
	for _, txt := range h.api.texts() {
		assert.True(t, strings.HasPrefix(txt, "Usage:"), txt)
	}
}

func TestTiersImportFromUpload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// warm the cache so the import has to invalidate it
	_, _, err := h.cache.GetPriceCategory(ctx, h.demo.SteelCategoryID)
	require.NoError(t, err)

	cat, _, _ := h.store.GetPriceCategory(ctx, h.demo.SteelCategoryID)
	cat.Tiers = []materials.PriceTier{
		{MinWeight: decimal.Zero, PricePerKg: money.MustNew("150")},
	}
	book, err := export.TiersWorkbook(cat)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(book.Bytes())
	}))
	defer srv.Close()
	h.api.fileURL = srv.URL

	msg := &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: adminChat},
		Caption:  fmt.Sprintf("/tiers %d", h.demo.SteelCategoryID),
		Document: &tgbotapi.Document{FileID: "f1"},
	}
	h.bot.onMessage(ctx, msg)

	texts := h.api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "1 brackets saved (version 2)")

	got, _, err := h.cache.GetPriceCategory(ctx, h.demo.SteelCategoryID)
	require.NoError(t, err)
	require.Len(t, got.Tiers, 1)
	assert.Equal(t, "150.00", got.Tiers[0].PricePerKg.String())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, h.bot.Run(ctx, 1), context.DeadlineExceeded)
}
