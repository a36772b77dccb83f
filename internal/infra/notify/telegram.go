package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"salesops-console/internal/domain/ports/adapter"
)

// TelegramNotifier posts settlement results to the sales-ops chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ adapter.Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is zero")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) NotifySettlement(ctx context.Context, orgName, txnCode string, amount int64, ok bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var b strings.Builder
	if ok {
		b.WriteString("✅ Payment settled\n")
	} else {
		b.WriteString("❌ Payment failed\n")
	}
	b.WriteString("Org: " + orgName + "\n")
	b.WriteString("Txn: " + txnCode + "\n")
	b.WriteString("Amount: " + formatAmount(amount))

	msg := tgbotapi.NewMessage(n.chatID, b.String())
	_, err := n.bot.Send(msg)
	return err
}

func formatAmount(v int64) string {
	s := strconv.FormatInt(v, 10)
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	pre := n % 3
	if pre == 0 {
		pre = 3
	}
	b.WriteString(s[:pre])
	for i := pre; i < n; i += 3 {
		b.WriteString(",")
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
