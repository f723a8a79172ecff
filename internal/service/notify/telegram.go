// Package notify delivers ENTER spreads to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SpreadScout/internal/domain/models"
	drepo "SpreadScout/internal/domain/repository"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramConfig struct {
	BotToken       string
	ChatID         string
	MaxRetries     int
	RetryDelayBase time.Duration
	MaxRows        int
}

// Telegram posts the ENTER list of a finished run.
type Telegram struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	maxRows        int
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegram(bot, cfg)
}

func newTelegram(bot sender, cfg TelegramConfig) (*Telegram, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10
	}
	return &Telegram{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		maxRows:        cfg.MaxRows,
	}, nil
}

var _ drepo.Notifier = (*Telegram)(nil)

// NotifyEntries sends one message listing the run's ENTER spreads. Runs
// without ENTER spreads send nothing.
func (t *Telegram) NotifyEntries(ctx context.Context, run *models.RunResult) error {
	entries := run.EnterTrades()
	if len(entries) == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, t.format(run, entries))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("telegram send after %d retries: %w", t.maxRetries, lastErr)
}

func (t *Telegram) format(run *models.RunResult, entries []models.SpreadRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Credit spreads: %d ENTER*\n", len(entries))
	fmt.Fprintf(&b, "%s\n\n", escapeMarkdownV2(fmt.Sprintf("run %s, coverage %.1f%%, rate %.2f%% (%s)",
		shortID(run.RunID), run.Collection.CoveragePct, run.Rate.Value*100, run.Rate.Source)))

	for i, s := range entries {
		if i == t.maxRows {
			fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(fmt.Sprintf("... and %d more", len(entries)-i)))
			break
		}
		line := fmt.Sprintf("%d. %s %s %g/%g exp %s (%dd)", s.Rank, s.Ticker, s.Type,
			s.ShortStrike, s.LongStrike, s.Expiration.Date, s.Expiration.DTE)
		detail := fmt.Sprintf("credit %.2f, max loss %.2f, ROI %.1f%%, PoP %.1f%%",
			s.NetCredit, s.MaxLoss, s.ROI, s.PoP)
		fmt.Fprintf(&b, "%s\n   %s\n", escapeMarkdownV2(line), escapeMarkdownV2(detail))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// escapeMarkdownV2 escapes the characters Telegram reserves in MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Nop is the notifier used when Telegram is disabled.
type Nop struct{}

func (Nop) NotifyEntries(context.Context, *models.RunResult) error { return nil }
