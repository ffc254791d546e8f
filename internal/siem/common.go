package siem

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	fhtypes "github.com/aws/aws-sdk-go-v2/service/firehose/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
)

// Delivery and alarm settings shared by every variant.
const (
	RetryDurationSeconds = 300
	AlarmPeriodSeconds   = 300
	AlarmNamespace       = "AWS/Firehose"

	BackupLifecycleRuleID = "ArchiveAfter90Days"
	BackupTransitionDays  = 90
	BackupExpirationDays  = 365
	BackupPurposeTag      = "SIEM Sink Backup"
)

// naming derives resource names and ARNs from the target, so a plan is complete before anything
// exists.
type naming struct {
	prefix    string
	kind      Kind
	account   string
	region    string
	partition string
}

func newNaming(t Target, k Kind) naming {
	return naming{
		prefix:    strings.ToLower(strings.TrimSpace(t.NamePrefix)),
		kind:      k,
		account:   t.AccountID,
		region:    t.Region,
		partition: partitionFor(t.Region),
	}
}

func partitionFor(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	default:
		return "aws"
	}
}

func (n naming) name(suffix string) string {
	return fmt.Sprintf("%s-%s-%s", n.prefix, n.kind, suffix)
}

func (n naming) bucketName() string {
	return n.name(fmt.Sprintf("backup-%s-%s", n.account, n.region))
}

func (n naming) bucketARN(bucket string) string {
	return fmt.Sprintf("arn:%s:s3:::%s", n.partition, bucket)
}

func (n naming) roleARN(role string) string {
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", n.partition, n.account, role)
}

func (n naming) topicARN(topic string) string {
	return fmt.Sprintf("arn:%s:sns:%s:%s:%s", n.partition, n.region, n.account, topic)
}

func (n naming) collectionARNs() string {
	return fmt.Sprintf("arn:%s:aoss:%s:%s:collection/*", n.partition, n.region, n.account)
}

func (n naming) tags() map[string]string {
	return map[string]string{
		"Project": "Ecommerce",
		"Stack":   "SiemSinks",
		"Sink":    string(n.kind),
	}
}

// policyDocument is an IAM policy in its JSON wire form.
type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

type statement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

func (p policyDocument) String() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// newResources builds the parts every variant shares: backup bucket, Firehose role, alarm
// topic and the two delivery alarms. extra is appended to the role's inline policy.
func newResources(t Target, k Kind, label string, extra ...statement) (*Resources, naming, error) {
	if err := t.validate(); err != nil {
		return nil, naming{}, err
	}
	n := newNaming(t, k)

	bucket := n.bucketName()
	if len(bucket) > 63 {
		return nil, n, apperr.Configuration("backup bucket name %q exceeds 63 characters, shorten the name prefix", bucket)
	}

	r := &Resources{Kind: k}
	r.Bucket = backupBucket(n, bucket)
	r.Role = firehoseRole(n, t, r.Bucket.ARN, extra)
	r.Topic = alarmTopic(n)
	r.Alarms = deliveryAlarms(n, label, r.Topic.ARN)
	return r, n, nil
}

func backupBucket(n naming, name string) Bucket {
	b := sdkaws.String(name)

	create := &s3.CreateBucketInput{Bucket: b}
	// us-east-1 rejects an explicit location constraint
	if n.region != "us-east-1" {
		create.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(n.region),
		}
	}

	tagSet := []s3types.Tag{{Key: sdkaws.String("Purpose"), Value: sdkaws.String(BackupPurposeTag)}}
	for _, k := range sortedKeys(n.tags()) {
		tagSet = append(tagSet, s3types.Tag{Key: sdkaws.String(k), Value: sdkaws.String(n.tags()[k])})
	}

	return Bucket{
		Name:   name,
		ARN:    n.bucketARN(name),
		Create: create,
		Encryption: &s3.PutBucketEncryptionInput{
			Bucket: b,
			ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
				Rules: []s3types.ServerSideEncryptionRule{{
					ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
						SSEAlgorithm: s3types.ServerSideEncryptionAes256,
					},
				}},
			},
		},
		PublicAccess: &s3.PutPublicAccessBlockInput{
			Bucket: b,
			PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       sdkaws.Bool(true),
				BlockPublicPolicy:     sdkaws.Bool(true),
				IgnorePublicAcls:      sdkaws.Bool(true),
				RestrictPublicBuckets: sdkaws.Bool(true),
			},
		},
		Versioning: &s3.PutBucketVersioningInput{
			Bucket:                  b,
			VersioningConfiguration: &s3types.VersioningConfiguration{Status: s3types.BucketVersioningStatusEnabled},
		},
		Lifecycle: &s3.PutBucketLifecycleConfigurationInput{
			Bucket: b,
			LifecycleConfiguration: &s3types.BucketLifecycleConfiguration{
				Rules: []s3types.LifecycleRule{{
					ID:     sdkaws.String(BackupLifecycleRuleID),
					Status: s3types.ExpirationStatusEnabled,
					Filter: &s3types.LifecycleRuleFilter{Prefix: sdkaws.String("")},
					Transitions: []s3types.Transition{{
						Days:         sdkaws.Int32(BackupTransitionDays),
						StorageClass: s3types.TransitionStorageClassIntelligentTiering,
					}},
					Expiration: &s3types.LifecycleExpiration{Days: sdkaws.Int32(BackupExpirationDays)},
				}},
			},
		},
		Tagging: &s3.PutBucketTaggingInput{
			Bucket:  b,
			Tagging: &s3types.Tagging{TagSet: tagSet},
		},
	}
}

func firehoseRole(n naming, t Target, backupARN string, extra []statement) Role {
	name := n.name("firehose-role")

	trust := policyDocument{
		Version: "2012-10-17",
		Statement: []statement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "firehose.amazonaws.com"},
			Action:    []string{"sts:AssumeRole"},
		}},
	}

	policy := policyDocument{
		Version: "2012-10-17",
		Statement: append([]statement{
			{
				Effect:   "Allow",
				Action:   []string{"s3:GetObject*", "s3:GetBucket*", "s3:List*"},
				Resource: []string{t.DataLakeBucketARN, t.DataLakeBucketARN + "/*"},
			},
			{
				Effect:   "Allow",
				Action:   []string{"kms:Decrypt"},
				Resource: []string{t.KMSKeyARN},
			},
			{
				Effect: "Allow",
				Action: []string{
					"s3:AbortMultipartUpload", "s3:GetBucketLocation", "s3:ListBucket",
					"s3:ListBucketMultipartUploads", "s3:PutObject", "s3:DeleteObject*",
				},
				Resource: []string{backupARN, backupARN + "/*"},
			},
		}, extra...),
	}

	var tags []iamtypes.Tag
	for _, k := range sortedKeys(n.tags()) {
		tags = append(tags, iamtypes.Tag{Key: sdkaws.String(k), Value: sdkaws.String(n.tags()[k])})
	}

	return Role{
		Name: name,
		ARN:  n.roleARN(name),
		Create: &iam.CreateRoleInput{
			RoleName:                 sdkaws.String(name),
			AssumeRolePolicyDocument: sdkaws.String(trust.String()),
			Description:              sdkaws.String(fmt.Sprintf("Firehose delivery role for the %s SIEM sink", n.kind)),
			Tags:                     tags,
		},
		Policy: &iam.PutRolePolicyInput{
			RoleName:       sdkaws.String(name),
			PolicyName:     sdkaws.String(n.name("firehose-policy")),
			PolicyDocument: sdkaws.String(policy.String()),
		},
	}
}

func alarmTopic(n naming) Topic {
	name := n.name("alarms")
	var tags []snstypes.Tag
	for _, k := range sortedKeys(n.tags()) {
		tags = append(tags, snstypes.Tag{Key: sdkaws.String(k), Value: sdkaws.String(n.tags()[k])})
	}
	return Topic{
		Name:   name,
		ARN:    n.topicARN(name),
		Create: &sns.CreateTopicInput{Name: sdkaws.String(name), Tags: tags},
	}
}

// deliveryAlarms watches the client-side and server-side delivery success metrics. Each fires
// when fewer than one delivery succeeded in a five minute window.
func deliveryAlarms(n naming, label, topicARN string) []*cloudwatch.PutMetricAlarmInput {
	stream := n.name("delivery")
	alarm := func(suffix, metric, desc string) *cloudwatch.PutMetricAlarmInput {
		return &cloudwatch.PutMetricAlarmInput{
			AlarmName:          sdkaws.String(n.name(suffix)),
			AlarmDescription:   sdkaws.String(desc),
			Namespace:          sdkaws.String(AlarmNamespace),
			MetricName:         sdkaws.String(metric),
			Dimensions:         []cwtypes.Dimension{{Name: sdkaws.String("DeliveryStreamName"), Value: sdkaws.String(stream)}},
			Statistic:          cwtypes.StatisticSum,
			Period:             sdkaws.Int32(AlarmPeriodSeconds),
			EvaluationPeriods:  sdkaws.Int32(1),
			Threshold:          sdkaws.Float64(1),
			ComparisonOperator: cwtypes.ComparisonOperatorLessThanThreshold,
			AlarmActions:       []string{topicARN},
		}
	}
	return []*cloudwatch.PutMetricAlarmInput{
		alarm("4xx-errors", fmt.Sprintf("DeliveryTo%s.Success", label), fmt.Sprintf("Alarm for %s delivery 4xx errors.", label)),
		alarm("5xx-errors", fmt.Sprintf("DeliveryTo%s.HttpEndpoint.Success", label), fmt.Sprintf("Alarm for %s delivery 5xx errors.", label)),
	}
}

// backupDestination is the S3 leg every stream writes failed records to.
func backupDestination(r *Resources) *fhtypes.S3DestinationConfiguration {
	return &fhtypes.S3DestinationConfiguration{
		BucketARN:         sdkaws.String(r.Bucket.ARN),
		RoleARN:           sdkaws.String(r.Role.ARN),
		CompressionFormat: fhtypes.CompressionFormatGzip,
		ErrorOutputPrefix: sdkaws.String("errors/"),
	}
}

func streamTags(n naming) []fhtypes.Tag {
	var tags []fhtypes.Tag
	for _, k := range sortedKeys(n.tags()) {
		tags = append(tags, fhtypes.Tag{Key: sdkaws.String(k), Value: sdkaws.String(n.tags()[k])})
	}
	return tags
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
