package siem

import (
	"encoding/base64"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	fhtypes "github.com/aws/aws-sdk-go-v2/service/firehose/types"
)

// Elastic Cloud parameters.
const (
	ParamElasticEndpoint = "/sec/elastic/endpoint"
	ParamElasticUsername = "/sec/elastic/username"
	ParamElasticPassword = "/sec/elastic/password"
)

type elasticSink struct{}

func (elasticSink) Kind() Kind { return KindElastic }

func (elasticSink) Parameters() []string {
	return []string{ParamElasticEndpoint, ParamElasticUsername, ParamElasticPassword}
}

func (s elasticSink) Configure(t Target) (*Resources, error) {
	creds, err := t.credentials(s.Parameters()...)
	if err != nil {
		return nil, err
	}
	endpoint, username, password := creds[0], creds[1], creds[2]

	r, n, err := newResources(t, KindElastic, "Elastic")
	if err != nil {
		return nil, err
	}
	auth := BasicAuth(username, password)
	r.addSecrets(password, auth)

	r.Stream = &firehose.CreateDeliveryStreamInput{
		DeliveryStreamName: sdkaws.String(n.name("delivery")),
		DeliveryStreamType: fhtypes.DeliveryStreamTypeDirectPut,
		HttpEndpointDestinationConfiguration: &fhtypes.HttpEndpointDestinationConfiguration{
			EndpointConfiguration: &fhtypes.HttpEndpointConfiguration{
				Url:       sdkaws.String(endpoint),
				Name:      sdkaws.String("Elastic Cloud Endpoint"),
				AccessKey: sdkaws.String(password),
			},
			RequestConfiguration: &fhtypes.HttpEndpointRequestConfiguration{
				ContentEncoding: fhtypes.ContentEncodingGzip,
				CommonAttributes: []fhtypes.HttpEndpointCommonAttribute{{
					AttributeName:  sdkaws.String("Authorization"),
					AttributeValue: sdkaws.String(auth),
				}},
			},
			RoleARN:         sdkaws.String(r.Role.ARN),
			S3BackupMode:    fhtypes.HttpEndpointS3BackupModeFailedDataOnly,
			S3Configuration: backupDestination(r),
			RetryOptions: &fhtypes.HttpEndpointRetryOptions{
				DurationInSeconds: sdkaws.Int32(RetryDurationSeconds),
			},
		},
		Tags: streamTags(n),
	}
	return r, nil
}

// BasicAuth is the value of an HTTP Basic Authorization header.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
