package hbnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/function61/gokit/stringutils"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"strings"
)

// publishes to an SNS topic, which fans out to email, SMS etc. subscriptions
type SNS struct {
	sns      snsiface.SNSAPI
	topicArn string
}

func NewSNS(snsSvc snsiface.SNSAPI, topicArn string) *SNS {
	return &SNS{snsSvc, topicArn}
}

func (s *SNS) Send(ctx context.Context, text string) error {
	messagePerProtocol := struct {
		Default string `json:"default"` // email etc.
		Sms     string `json:"sms"`
	}{
		Default: stringutils.Truncate(text, 4*1024),
		Sms:     stringutils.Truncate(text, 160-7), // -7 for "ALERT >" prefix in SMS messages
	}

	messagePerProtocolJson, err := json.Marshal(&messagePerProtocol)
	if err != nil {
		return err
	}

	if _, err := s.sns.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn:         aws.String(s.topicArn),
		Subject:          aws.String(snsSubject(text)),
		Message:          aws.String(string(messagePerProtocolJson)),
		MessageStructure: aws.String("json"),
	}); err != nil {
		return fmt.Errorf("%w: sns: %v", hbdomain.ErrDeliveryFailed, err)
	}

	return nil
}

// email subject. SNS allows up to 100 characters.
func snsSubject(text string) string {
	return stringutils.Truncate("Heartbeat: "+strings.SplitN(text, " | ", 2)[0], 100)
}
