package hbnotify

import (
	"context"
	"errors"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/function61/gokit/assert"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"testing"
)

func TestSNSSend(t *testing.T) {
	fake := &fakeSNS{}

	text := "⚠️ OVERDUE: `db-dump` | interval: 5m | last: 14:02 UTC | 2m late"

	assert.Ok(t, NewSNS(fake, "arn:aws:sns:us-east-1:123456789012:alerts").Send(context.Background(), text))

	assert.EqualString(t, *fake.published.TopicArn, "arn:aws:sns:us-east-1:123456789012:alerts")
	assert.EqualString(t, *fake.published.MessageStructure, "json")
	assert.EqualString(t, *fake.published.Subject, "Heartbeat: ⚠️ OVERDUE: `db-dump`")
	assert.EqualString(t, *fake.published.Message, `{"default":"⚠️ OVERDUE: `+"`db-dump`"+` | interval: 5m | last: 14:02 UTC | 2m late","sms":"⚠️ OVERDUE: `+"`db-dump`"+` | interval: 5m | last: 14:02 UTC | 2m late"}`)
}

func TestSNSSendFailure(t *testing.T) {
	err := NewSNS(&fakeSNS{err: errors.New("throttled")}, "arn").Send(context.Background(), "hello")

	assert.Assert(t, errors.Is(err, hbdomain.ErrDeliveryFailed))
	assert.EqualString(t, err.Error(), "notification delivery failed: sns: throttled")
}

func TestTelegramFromParameterStore(t *testing.T) {
	fake := &fakeSSM{parameters: map[string]string{
		DefaultBotTokenParam: "123:token",
		DefaultChatIdParam:   "-100200",
	}}

	telegram, err := TelegramFromParameterStore(context.Background(), fake, DefaultBotTokenParam, DefaultChatIdParam)
	assert.Ok(t, err)
	assert.EqualString(t, telegram.botToken, "123:token")
	assert.EqualString(t, telegram.chatId, "-100200")

	_, err = TelegramFromParameterStore(context.Background(), fake, DefaultBotTokenParam, "/nonexistent")
	assert.EqualString(t, err.Error(), "SSM parameter /nonexistent: empty value")
}

type fakeSNS struct {
	snsiface.SNSAPI

	err       error
	published *sns.PublishInput
}

func (f *fakeSNS) PublishWithContext(_ aws.Context, input *sns.PublishInput, _ ...request.Option) (*sns.PublishOutput, error) {
	f.published = input

	if f.err != nil {
		return nil, f.err
	}

	return &sns.PublishOutput{MessageId: aws.String("1")}, nil
}

type fakeSSM struct {
	ssmiface.SSMAPI

	parameters map[string]string
}

func (f *fakeSSM) GetParameterWithContext(_ aws.Context, input *ssm.GetParameterInput, _ ...request.Option) (*ssm.GetParameterOutput, error) {
	if !aws.BoolValue(input.WithDecryption) {
		return nil, errors.New("expected WithDecryption")
	}

	value, found := f.parameters[*input.Name]
	if !found {
		return &ssm.GetParameterOutput{}, nil
	}

	return &ssm.GetParameterOutput{
		Parameter: &ssm.Parameter{
			Name:  input.Name,
			Value: aws.String(value),
		},
	}, nil
}
