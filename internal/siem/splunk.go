package siem

import (
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	fhtypes "github.com/aws/aws-sdk-go-v2/service/firehose/types"
)

// Splunk HEC parameters.
const (
	ParamSplunkHECURL   = "/sec/splunk/hecUrl"
	ParamSplunkHECToken = "/sec/splunk/hecToken"
)

type splunkSink struct{}

func (splunkSink) Kind() Kind { return KindSplunk }

func (splunkSink) Parameters() []string {
	return []string{ParamSplunkHECURL, ParamSplunkHECToken}
}

func (s splunkSink) Configure(t Target) (*Resources, error) {
	creds, err := t.credentials(s.Parameters()...)
	if err != nil {
		return nil, err
	}
	hecURL, hecToken := creds[0], creds[1]

	r, n, err := newResources(t, KindSplunk, "Splunk")
	if err != nil {
		return nil, err
	}
	r.addSecrets(hecToken)

	r.Stream = &firehose.CreateDeliveryStreamInput{
		DeliveryStreamName: sdkaws.String(n.name("delivery")),
		DeliveryStreamType: fhtypes.DeliveryStreamTypeDirectPut,
		SplunkDestinationConfiguration: &fhtypes.SplunkDestinationConfiguration{
			HECEndpoint:     sdkaws.String(hecURL),
			HECEndpointType: fhtypes.HECEndpointTypeRaw,
			HECToken:        sdkaws.String(hecToken),
			S3BackupMode:    fhtypes.SplunkS3BackupModeFailedEventsOnly,
			S3Configuration: backupDestination(r),
			RetryOptions: &fhtypes.SplunkRetryOptions{
				DurationInSeconds: sdkaws.Int32(RetryDurationSeconds),
			},
		},
		Tags: streamTags(n),
	}
	return r, nil
}
