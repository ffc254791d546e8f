package siem

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/securitylake"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Resources is the deployment plan for one sink. Every field is an SDK input, so the plan is
// exactly what Provisioner sends.
type Resources struct {
	Kind   Kind   `json:"kind"`
	Bucket Bucket `json:"backupBucket"`
	Role   Role   `json:"firehoseRole"`
	Topic  Topic  `json:"alarmTopic"`

	// search-index sink only
	Collection *Collection                         `json:"collection,omitempty"`
	Subscriber *securitylake.CreateSubscriberInput `json:"subscriber,omitempty"`

	Stream *firehose.CreateDeliveryStreamInput `json:"deliveryStream"`
	Alarms []*cloudwatch.PutMetricAlarmInput   `json:"alarms"`

	secrets []string
}

// Bucket is the backup-on-failure bucket.
type Bucket struct {
	Name         string                                   `json:"name"`
	ARN          string                                   `json:"arn"`
	Create       *s3.CreateBucketInput                    `json:"create"`
	Encryption   *s3.PutBucketEncryptionInput             `json:"encryption"`
	PublicAccess *s3.PutPublicAccessBlockInput            `json:"publicAccess"`
	Versioning   *s3.PutBucketVersioningInput             `json:"versioning"`
	Lifecycle    *s3.PutBucketLifecycleConfigurationInput `json:"lifecycle"`
	Tagging      *s3.PutBucketTaggingInput                `json:"tagging"`
}

// Role is the role Firehose assumes to read the data lake and write backups.
type Role struct {
	Name   string                  `json:"name"`
	ARN    string                  `json:"arn"`
	Create *iam.CreateRoleInput    `json:"create"`
	Policy *iam.PutRolePolicyInput `json:"policy"`
}

// Topic receives the delivery alarms.
type Topic struct {
	Name   string                `json:"name"`
	ARN    string                `json:"arn"`
	Create *sns.CreateTopicInput `json:"create"`
}

// Collection is the OpenSearch Serverless collection and its policies.
type Collection struct {
	Name       string                                          `json:"name"`
	Encryption *opensearchserverless.CreateSecurityPolicyInput `json:"encryptionPolicy"`
	Create     *opensearchserverless.CreateCollectionInput     `json:"create"`
	Access     *opensearchserverless.CreateAccessPolicyInput   `json:"accessPolicy"`
}

// StreamName is the delivery stream name, the dimension both alarms watch.
func (r *Resources) StreamName() string {
	if r.Stream == nil || r.Stream.DeliveryStreamName == nil {
		return ""
	}
	return *r.Stream.DeliveryStreamName
}

// PlanJSON renders the plan with every credential value masked.
func (r *Resources) PlanJSON() ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	out := string(b)
	for _, s := range r.secrets {
		quoted, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("mask secret: %w", err)
		}
		out = strings.ReplaceAll(out, strings.Trim(string(quoted), `"`), "********")
	}
	return []byte(out), nil
}

func (r *Resources) addSecrets(values ...string) {
	for _, v := range values {
		if v != "" {
			r.secrets = append(r.secrets, v)
		}
	}
}
