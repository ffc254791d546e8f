package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// EventBridgePublisher puts domain events on a custom event bus. busName may be a name or an ARN.
type EventBridgePublisher struct {
	client  EventBridgeAPI
	busName string
}

func NewEventBridgePublisher(client EventBridgeAPI, busName string) *EventBridgePublisher {
	return &EventBridgePublisher{client: client, busName: busName}
}

// PublishEvent puts a single entry. A partially failed batch is reported as an error since the
// batch only ever has one entry.
func (p *EventBridgePublisher) PublishEvent(ctx context.Context, source, detailType string, detail []byte) error {
	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				EventBusName: awsString(p.busName),
				Source:       awsString(source),
				DetailType:   awsString(detailType),
				Detail:       awsString(string(detail)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put events: %w", err)
	}
	if out.FailedEntryCount > 0 {
		code, msg := "unknown", ""
		if len(out.Entries) > 0 {
			if out.Entries[0].ErrorCode != nil {
				code = *out.Entries[0].ErrorCode
			}
			if out.Entries[0].ErrorMessage != nil {
				msg = *out.Entries[0].ErrorMessage
			}
		}
		return fmt.Errorf("put events: %d entries failed (%s: %s)", out.FailedEntryCount, code, msg)
	}
	return nil
}
