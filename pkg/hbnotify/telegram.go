package hbnotify

import (
	"context"
	"fmt"
	"github.com/function61/gokit/ezhttp"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"strings"
)

const telegramApiBaseUrl = "https://api.telegram.org"

type Telegram struct {
	botToken string
	chatId   string
	baseUrl  string
}

func NewTelegram(botToken string, chatId string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatId:   chatId,
		baseUrl:  telegramApiBaseUrl,
	}
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	req := struct {
		ChatId    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}{
		ChatId:    t.chatId,
		Text:      EscapeMarkdownV2(text),
		ParseMode: "MarkdownV2",
	}

	res := struct {
		Ok          bool   `json:"ok"`
		Description string `json:"description"`
	}{}

	if _, err := ezhttp.Post(
		ctx,
		fmt.Sprintf("%s/bot%s/sendMessage", t.baseUrl, t.botToken),
		ezhttp.SendJson(&req),
		ezhttp.RespondsJson(&res, true),
	); err != nil {
		// the URL embeds the bot token, so don't echo err as-is
		return fmt.Errorf("%w: telegram: %s", hbdomain.ErrDeliveryFailed, redact(err.Error(), t.botToken))
	}

	if !res.Ok {
		return fmt.Errorf("%w: telegram: %s", hbdomain.ErrDeliveryFailed, res.Description)
	}

	return nil
}

// characters that MarkdownV2 treats as markup outside of code spans
const markdownV2Special = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes markup characters outside of `code spans`. Text inside a code
// span is left as-is.
func EscapeMarkdownV2(text string) string {
	escaped := strings.Builder{}
	inCode := false

	for _, ch := range text {
		switch {
		case ch == '`':
			inCode = !inCode
		case !inCode && strings.ContainsRune(markdownV2Special, ch):
			escaped.WriteRune('\\')
		}

		escaped.WriteRune(ch)
	}

	return escaped.String()
}

func redact(text string, secret string) string {
	if secret == "" {
		return text
	}

	return strings.ReplaceAll(text, secret, "[redacted]")
}
