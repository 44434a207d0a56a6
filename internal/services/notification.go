package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxListedFailures caps the failures quoted in one message.
const maxListedFailures = 10

// messageSender is the subset of *bot.Bot the notifier needs.
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// NotificationService posts precompute sweep summaries to a Telegram chat.
type NotificationService struct {
	sender  messageSender
	chatID  int64
	printer *message.Printer
}

// NewNotificationService returns nil when the token or chat id is missing;
// a nil service is a valid no-op notifier.
func NewNotificationService(telegramBotToken string, chatID int64) (*NotificationService, error) {
	if telegramBotToken == "" || chatID == 0 {
		return nil, nil
	}
	telegramBot, err := bot.New(telegramBotToken, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newNotificationService(telegramBot, chatID), nil
}

func newNotificationService(sender messageSender, chatID int64) *NotificationService {
	return &NotificationService{
		sender:  sender,
		chatID:  chatID,
		printer: message.NewPrinter(language.English),
	}
}

// NotifySweep sends a summary when the sweep had failures. Clean sweeps
// are not reported.
func (ns *NotificationService) NotifySweep(ctx context.Context, report SweepReport) error {
	if ns == nil || report.Failed == 0 {
		return nil
	}
	if ns.sender == nil {
		return errors.New("telegram bot not initialized")
	}

	_, err := ns.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: ns.chatID,
		Text:   ns.formatSweepMessage(report),
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (ns *NotificationService) formatSweepMessage(report SweepReport) string {
	var b strings.Builder
	b.WriteString(ns.printer.Sprintf("Forecast precompute (%s): %d of %d series failed\n",
		report.Scope, report.Failed, report.Total))
	b.WriteString(ns.printer.Sprintf("Computed %d, reused %d in %.1fs\n",
		report.Computed, report.Reused, report.Duration.Seconds()))
	b.WriteString("Run " + report.RunID.String() + "\n")

	ids := make([]string, 0, len(report.Failures))
	for id := range report.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		if i == maxListedFailures {
			b.WriteString(ns.printer.Sprintf("... and %d more\n", len(ids)-maxListedFailures))
			break
		}
		b.WriteString(fmt.Sprintf("- %s: %s\n", id, truncate(report.Failures[id], 200)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
