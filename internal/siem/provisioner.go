package siem

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	aoss "github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/securitylake"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketEncryption(ctx context.Context, params *s3.PutBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
	PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
	PutBucketTagging(ctx context.Context, params *s3.PutBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error)
}

type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

type SNSAPI interface {
	CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
}

type FirehoseAPI interface {
	CreateDeliveryStream(ctx context.Context, params *firehose.CreateDeliveryStreamInput, optFns ...func(*firehose.Options)) (*firehose.CreateDeliveryStreamOutput, error)
}

type AlarmAPI interface {
	PutMetricAlarm(ctx context.Context, params *cloudwatch.PutMetricAlarmInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error)
}

type CollectionAPI interface {
	CreateSecurityPolicy(ctx context.Context, params *aoss.CreateSecurityPolicyInput, optFns ...func(*aoss.Options)) (*aoss.CreateSecurityPolicyOutput, error)
	CreateCollection(ctx context.Context, params *aoss.CreateCollectionInput, optFns ...func(*aoss.Options)) (*aoss.CreateCollectionOutput, error)
	CreateAccessPolicy(ctx context.Context, params *aoss.CreateAccessPolicyInput, optFns ...func(*aoss.Options)) (*aoss.CreateAccessPolicyOutput, error)
}

type SubscriberAPI interface {
	CreateSubscriber(ctx context.Context, params *securitylake.CreateSubscriberInput, optFns ...func(*securitylake.Options)) (*securitylake.CreateSubscriberOutput, error)
}

// Clients are the service clients a Provisioner drives. Collections and Subscribers are only
// used by the search-index sink.
type Clients struct {
	S3          S3API
	IAM         IAMAPI
	SNS         SNSAPI
	Firehose    FirehoseAPI
	CloudWatch  AlarmAPI
	Collections CollectionAPI
	Subscribers SubscriberAPI
}

// NewClients builds real service clients from cfg.
func NewClients(cfg sdkaws.Config) Clients {
	return Clients{
		S3:          s3.NewFromConfig(cfg),
		IAM:         iam.NewFromConfig(cfg),
		SNS:         sns.NewFromConfig(cfg),
		Firehose:    firehose.NewFromConfig(cfg),
		CloudWatch:  cloudwatch.NewFromConfig(cfg),
		Collections: aoss.NewFromConfig(cfg),
		Subscribers: securitylake.NewFromConfig(cfg),
	}
}

// Outputs are the identifiers of what Apply created.
type Outputs struct {
	Kind               Kind   `json:"kind"`
	BackupBucket       string `json:"backupBucket"`
	FirehoseRoleARN    string `json:"firehoseRoleArn"`
	AlarmTopicARN      string `json:"alarmTopicArn"`
	DeliveryStreamName string `json:"deliveryStreamName"`
	DeliveryStreamARN  string `json:"deliveryStreamArn"`
	CollectionARN      string `json:"collectionArn,omitempty"`
	CollectionEndpoint string `json:"collectionEndpoint,omitempty"`
	SubscriberARN      string `json:"subscriberArn,omitempty"`
}

// Provisioner applies a Resources plan.
type Provisioner struct {
	clients Clients
	region  string
	log     *zap.Logger
}

func NewProvisioner(clients Clients, region string, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{clients: clients, region: region, log: log}
}

// Apply creates the plan in dependency order: bucket, role, topic, collection and subscriber,
// stream, alarms. The first failure aborts the run. Re-running against existing bucket, role
// or policies continues past them.
func (p *Provisioner) Apply(ctx context.Context, r *Resources) (*Outputs, error) {
	out := &Outputs{
		Kind:               r.Kind,
		BackupBucket:       r.Bucket.Name,
		FirehoseRoleARN:    r.Role.ARN,
		DeliveryStreamName: r.StreamName(),
	}
	log := p.log.With(zap.String("sink", string(r.Kind)))

	if err := p.applyBucket(ctx, r.Bucket); err != nil {
		return nil, err
	}
	log.Info("backup bucket ready", zap.String("bucket", r.Bucket.Name))

	if _, err := p.clients.IAM.CreateRole(ctx, r.Role.Create); err != nil && !alreadyExists(err) {
		return nil, fmt.Errorf("create role %s: %w", r.Role.Name, err)
	}
	if _, err := p.clients.IAM.PutRolePolicy(ctx, r.Role.Policy); err != nil {
		return nil, fmt.Errorf("put role policy %s: %w", r.Role.Name, err)
	}
	log.Info("firehose role ready", zap.String("role", r.Role.ARN))

	topic, err := p.clients.SNS.CreateTopic(ctx, r.Topic.Create)
	if err != nil {
		return nil, fmt.Errorf("create topic %s: %w", r.Topic.Name, err)
	}
	out.AlarmTopicARN = sdkaws.ToString(topic.TopicArn)

	if r.Collection != nil {
		if err := p.applyCollection(ctx, r, out); err != nil {
			return nil, err
		}
		log.Info("collection ready", zap.String("endpoint", out.CollectionEndpoint))
	}

	stream, err := p.clients.Firehose.CreateDeliveryStream(ctx, r.Stream)
	if err != nil {
		return nil, fmt.Errorf("create delivery stream %s: %w", r.StreamName(), err)
	}
	out.DeliveryStreamARN = sdkaws.ToString(stream.DeliveryStreamARN)
	log.Info("delivery stream created", zap.String("stream", out.DeliveryStreamARN))

	for _, alarm := range r.Alarms {
		if out.AlarmTopicARN != "" {
			alarm.AlarmActions = []string{out.AlarmTopicARN}
		}
		if _, err := p.clients.CloudWatch.PutMetricAlarm(ctx, alarm); err != nil {
			return nil, fmt.Errorf("put alarm %s: %w", sdkaws.ToString(alarm.AlarmName), err)
		}
	}
	log.Info("delivery alarms ready", zap.Int("alarms", len(r.Alarms)))

	return out, nil
}

func (p *Provisioner) applyBucket(ctx context.Context, b Bucket) error {
	if _, err := p.clients.S3.CreateBucket(ctx, b.Create); err != nil && !alreadyExists(err) {
		return fmt.Errorf("create bucket %s: %w", b.Name, err)
	}
	if _, err := p.clients.S3.PutBucketEncryption(ctx, b.Encryption); err != nil {
		return fmt.Errorf("bucket %s encryption: %w", b.Name, err)
	}
	if _, err := p.clients.S3.PutPublicAccessBlock(ctx, b.PublicAccess); err != nil {
		return fmt.Errorf("bucket %s public access block: %w", b.Name, err)
	}
	if _, err := p.clients.S3.PutBucketVersioning(ctx, b.Versioning); err != nil {
		return fmt.Errorf("bucket %s versioning: %w", b.Name, err)
	}
	if _, err := p.clients.S3.PutBucketLifecycleConfiguration(ctx, b.Lifecycle); err != nil {
		return fmt.Errorf("bucket %s lifecycle: %w", b.Name, err)
	}
	if _, err := p.clients.S3.PutBucketTagging(ctx, b.Tagging); err != nil {
		return fmt.Errorf("bucket %s tagging: %w", b.Name, err)
	}
	return nil
}

func (p *Provisioner) applyCollection(ctx context.Context, r *Resources, out *Outputs) error {
	if p.clients.Collections == nil || p.clients.Subscribers == nil {
		return errors.New("search-index sink needs OpenSearch Serverless and Security Lake clients")
	}
	c := r.Collection

	if _, err := p.clients.Collections.CreateSecurityPolicy(ctx, c.Encryption); err != nil && !alreadyExists(err) {
		return fmt.Errorf("create encryption policy: %w", err)
	}
	created, err := p.clients.Collections.CreateCollection(ctx, c.Create)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", c.Name, err)
	}
	if created.CreateCollectionDetail == nil || created.CreateCollectionDetail.Id == nil {
		return fmt.Errorf("create collection %s: no collection id returned", c.Name)
	}
	out.CollectionARN = sdkaws.ToString(created.CreateCollectionDetail.Arn)
	out.CollectionEndpoint = CollectionEndpoint(*created.CreateCollectionDetail.Id, p.region)

	if _, err := p.clients.Collections.CreateAccessPolicy(ctx, c.Access); err != nil && !alreadyExists(err) {
		return fmt.Errorf("create access policy: %w", err)
	}

	sub, err := p.clients.Subscribers.CreateSubscriber(ctx, r.Subscriber)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	if sub.Subscriber != nil {
		out.SubscriberARN = sdkaws.ToString(sub.Subscriber.SubscriberArn)
	}

	if dest := r.Stream.AmazonOpenSearchServerlessDestinationConfiguration; dest != nil {
		dest.CollectionEndpoint = sdkaws.String(out.CollectionEndpoint)
	}
	return nil
}

// alreadyExists matches the "resource exists" codes of the services a re-run can hit.
func alreadyExists(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "BucketAlreadyOwnedByYou", "EntityAlreadyExists", "ConflictException":
		return true
	}
	return false
}
