package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// QueueEnvelope is the SQS message body. It mirrors the EventBridge event shape so consumers
// can read either transport the same way.
type QueueEnvelope struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Time       time.Time       `json:"time"`
	Detail     json.RawMessage `json:"detail"`
}

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
	nowFunc  func() time.Time
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
		nowFunc:  time.Now,
	}
}

// PublishEvent sends a domain event to SQS wrapped in a QueueEnvelope. The detail type is also
// sent as the event_type message attribute for subscription filtering.
func (p *Publisher) PublishEvent(ctx context.Context, source, detailType string, detail []byte) error {
	body, err := json.Marshal(QueueEnvelope{
		Source:     source,
		DetailType: detailType,
		Time:       p.nowFunc().UTC(),
		Detail:     detail,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return p.SendMessage(ctx, string(body), map[string]string{
		"event_type": detailType,
		"source":     source,
	})
}

// SendMessage sends a raw message to SQS. attributes are sent as String MessageAttributes.
func (p *Publisher) SendMessage(ctx context.Context, messageBody string, attributes map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range attributes {
			if v == "" {
				continue
			}
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	_, err := p.SQS.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
