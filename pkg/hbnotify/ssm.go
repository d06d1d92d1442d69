package hbnotify

import (
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
)

const (
	DefaultBotTokenParam = "/heartbeat/telegram-bot-token"
	DefaultChatIdParam   = "/heartbeat/telegram-chat-id"
)

// resolves bot token and chat id from (encrypted) SSM parameters
func TelegramFromParameterStore(
	ctx context.Context,
	ssmSvc ssmiface.SSMAPI,
	botTokenParam string,
	chatIdParam string,
) (*Telegram, error) {
	botToken, err := getParameter(ctx, ssmSvc, botTokenParam)
	if err != nil {
		return nil, err
	}

	chatId, err := getParameter(ctx, ssmSvc, chatIdParam)
	if err != nil {
		return nil, err
	}

	return NewTelegram(botToken, chatId), nil
}

func getParameter(ctx context.Context, ssmSvc ssmiface.SSMAPI, name string) (string, error) {
	out, err := ssmSvc.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("SSM parameter %s: %w", name, err)
	}

	if out.Parameter == nil || aws.StringValue(out.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s: empty value", name)
	}

	return *out.Parameter.Value, nil
}
