package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/export"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

const helpText = `/quote <part> <qty> [qty...] - price a part, reply with the quote workbook
/freeze <batch> - freeze a draft batch
/freezeset <set> - freeze every batch of a set
/stale <part> - list draft batches priced before a rate change
/tiers <category> - download the price brackets
Send a workbook with caption "/tiers <category>" to replace the brackets.`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)

	case "quote":
		ids, err := parseInts(args)
		if err != nil || len(ids) < 2 {
			b.reply(chatID, "Usage: /quote <part> <qty> [qty...]")
			return
		}
		b.quote(ctx, chatID, ids[0], ids[1:])

	case "freeze":
		id, ok := single(args)
		if !ok {
			b.reply(chatID, "Usage: /freeze <batch>")
			return
		}
		if _, err := b.deps.Lifecycle.FreezeBatch(ctx, id, 0); err != nil {
			b.replyErr(chatID, "freeze", err)
		}
		// the engine notifies the chat on success

	case "freezeset":
		id, ok := single(args)
		if !ok {
			b.reply(chatID, "Usage: /freezeset <set>")
			return
		}
		if _, err := b.deps.Lifecycle.FreezeBatchSet(ctx, id); err != nil {
			b.replyErr(chatID, "freeze set", err)
		}

	case "stale":
		id, ok := single(args)
		if !ok {
			b.reply(chatID, "Usage: /stale <part>")
			return
		}
		stale, err := b.deps.Lifecycle.ReportStale(ctx, id)
		if err != nil {
			b.replyErr(chatID, "stale check", err)
			return
		}
		if len(stale) == 0 {
			b.reply(chatID, fmt.Sprintf("Part #%d: every draft batch is up to date.", id))
		}

	case "tiers":
		id, ok := single(args)
		if !ok {
			b.reply(chatID, "Usage: /tiers <category>")
			return
		}
		b.exportTiers(ctx, chatID, id)

	default:
		b.reply(chatID, "Unknown command.\n\n"+helpText)
	}
}

func (b *Bot) quote(ctx context.Context, chatID, partID int64, qtys []int64) {
	quantities := make([]int, len(qtys))
	for i, q := range qtys {
		quantities[i] = int(q)
	}
	bds, err := b.deps.Quoter.Series(ctx, partID, quantities)
	if err != nil {
		b.replyErr(chatID, "quote", err)
		return
	}

	title := fmt.Sprintf("Part #%d", partID)
	if p, ok, err := b.deps.Parts.GetPart(ctx, partID); err == nil && ok {
		title = p.Number + " " + p.Name
	}

	var sb strings.Builder
	sb.WriteString(title)
	for _, bd := range bds {
		fmt.Fprintf(&sb, "\n%6d pcs: %s / pc, %s total", bd.Quantity, bd.Totals.UnitPrice, bd.Totals.TotalCost)
		if bd.Degraded {
			sb.WriteString(" (default density)")
		}
	}
	b.reply(chatID, sb.String())

	buf, err := export.QuoteWorkbook(title, bds)
	if err != nil {
		b.log.Error("quote workbook failed", "part_id", partID, "err", err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("quote_%d_%s.xlsx", partID, time.Now().Format("20060102_150405")),
		Bytes: buf.Bytes(),
	})
	b.send(doc)
}

func (b *Bot) exportTiers(ctx context.Context, chatID, categoryID int64) {
	cat, ok, err := b.deps.Categories.GetPriceCategory(ctx, categoryID)
	if err != nil {
		b.replyErr(chatID, "tiers", err)
		return
	}
	if !ok {
		b.reply(chatID, fmt.Sprintf("Price category #%d not found.", categoryID))
		return
	}
	buf, err := export.TiersWorkbook(cat)
	if err != nil {
		b.replyErr(chatID, "tiers", err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("tiers_%s.xlsx", cat.Code),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Edit the rows and send the file back with caption /tiers %d", cat.ID)
	b.send(doc)
}

// handleDocument imports price brackets from an uploaded workbook. The
// caption names the category; the write is checked against the version read
// just before parsing.
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	fields := strings.Fields(msg.Caption)
	if len(fields) != 2 || strings.TrimPrefix(fields[0], "/") != "tiers" {
		b.reply(chatID, `Add the caption "/tiers <category>" to import price brackets.`)
		return
	}
	categoryID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		b.reply(chatID, "Category id must be a number.")
		return
	}

	cat, ok, err := b.deps.Categories.GetPriceCategory(ctx, categoryID)
	if err != nil {
		b.replyErr(chatID, "tiers import", err)
		return
	}
	if !ok {
		b.reply(chatID, fmt.Sprintf("Price category #%d not found.", categoryID))
		return
	}

	data, err := b.downloadTelegramFile(ctx, msg.Document.FileID)
	if err != nil {
		b.log.Error("download failed", "file_id", msg.Document.FileID, "err", err)
		b.reply(chatID, "Could not download the file.")
		return
	}
	tiers, err := export.ParseTiers(bytes.NewReader(data))
	if err != nil {
		b.reply(chatID, "Workbook rejected: "+err.Error())
		return
	}
	v, err := b.deps.TierWriter.ReplaceTiers(ctx, cat.ID, cat.Version, tiers)
	if err != nil {
		b.replyErr(chatID, "tiers import", err)
		return
	}
	b.log.Info("price tiers imported", "category_id", cat.ID, "tiers", len(tiers), "version", v)
	b.reply(chatID, fmt.Sprintf("Category %s: %d brackets saved (version %d).", cat.Code, len(tiers), v))
}

func (b *Bot) replyErr(chatID int64, what string, err error) {
	code := pricing.Reason(err)
	if code == "internal" {
		b.log.Error(what+" failed", "err", err)
		b.reply(chatID, what+" failed, see the service log.")
		return
	}
	var se *pricing.BatchSetFreezeError
	if errors.As(err, &se) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s rejected, nothing was frozen:", what)
		for _, f := range se.Failures {
			fmt.Fprintf(&sb, "\nbatch #%d: %s", f.BatchID, f.Reason)
		}
		b.reply(chatID, sb.String())
		return
	}
	b.reply(chatID, fmt.Sprintf("%s: %s (%v)", what, code, err))
}

func parseInts(args []string) ([]int64, error) {
	out := make([]int64, len(args))
	for i, a := range args {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func single(args []string) (int64, bool) {
	ids, err := parseInts(args)
	if err != nil || len(ids) != 1 {
		return 0, false
	}
	return ids[0], true
}

