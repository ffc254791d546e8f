package siem

import (
	"encoding/json"
	"strings"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	fhtypes "github.com/aws/aws-sdk-go-v2/service/firehose/types"
	aosstypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	sltypes "github.com/aws/aws-sdk-go-v2/service/securitylake/types"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTarget() Target {
	return Target{
		AccountID:         "123456789012",
		Region:            "us-west-2",
		NamePrefix:        "ecommerce-siem",
		DataLakeBucketARN: "arn:aws:s3:::aws-security-data-lake-us-west-2-abc",
		KMSKeyARN:         "arn:aws:kms:us-west-2:123456789012:key/1234",
		SubscriberRoleARN: "arn:aws:iam::123456789012:role/SecurityLakeSubscriber",
		Credentials: map[string]string{
			ParamSplunkHECURL:    "https://hec.splunk.example.com:8088",
			ParamSplunkHECToken:  "hec-token-123",
			ParamElasticEndpoint: "https://elastic.example.com/_bulk",
			ParamElasticUsername: "elastic",
			ParamElasticPassword: "s3cr3t",
		},
	}
}

func configure(t *testing.T, kind Kind) *Resources {
	t.Helper()
	sink, err := NewSink(string(kind))
	require.NoError(t, err)
	r, err := sink.Configure(testTarget())
	require.NoError(t, err)
	return r
}

func TestNewSink_Kinds(t *testing.T) {
	for _, k := range Kinds() {
		sink, err := NewSink(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, sink.Kind())
	}
}

func TestNewSink_Unsupported(t *testing.T) {
	for _, kind := range []string{"datadog", "", "Splunk"} {
		sink, err := NewSink(kind)
		assert.Nil(t, sink)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
		assert.Equal(t, "unsupported SIEM sink type: "+kind, err.Error())
	}
}

func TestParameters(t *testing.T) {
	cases := map[Kind][]string{
		KindOpenSearch: nil,
		KindSplunk:     {"/sec/splunk/hecUrl", "/sec/splunk/hecToken"},
		KindElastic:    {"/sec/elastic/endpoint", "/sec/elastic/username", "/sec/elastic/password"},
	}
	for k, want := range cases {
		sink, err := NewSink(string(k))
		require.NoError(t, err)
		assert.Equal(t, want, sink.Parameters(), k)
	}
}

func TestConfigure_SharedResources(t *testing.T) {
	for _, k := range Kinds() {
		t.Run(string(k), func(t *testing.T) {
			r := configure(t, k)
			assert.Equal(t, k, r.Kind)

			b := r.Bucket
			assert.Equal(t, "ecommerce-siem-"+string(k)+"-backup-123456789012-us-west-2", b.Name)
			assert.Equal(t, "arn:aws:s3:::"+b.Name, b.ARN)
			assert.Equal(t, s3types.BucketLocationConstraint("us-west-2"), b.Create.CreateBucketConfiguration.LocationConstraint)
			assert.Equal(t, s3types.ServerSideEncryptionAes256,
				b.Encryption.ServerSideEncryptionConfiguration.Rules[0].ApplyServerSideEncryptionByDefault.SSEAlgorithm)
			pab := b.PublicAccess.PublicAccessBlockConfiguration
			assert.True(t, *pab.BlockPublicAcls && *pab.BlockPublicPolicy && *pab.IgnorePublicAcls && *pab.RestrictPublicBuckets)
			assert.Equal(t, s3types.BucketVersioningStatusEnabled, b.Versioning.VersioningConfiguration.Status)

			rule := b.Lifecycle.LifecycleConfiguration.Rules[0]
			assert.Equal(t, "ArchiveAfter90Days", *rule.ID)
			assert.Equal(t, int32(90), *rule.Transitions[0].Days)
			assert.Equal(t, s3types.TransitionStorageClassIntelligentTiering, rule.Transitions[0].StorageClass)
			assert.Equal(t, int32(365), *rule.Expiration.Days)
			assert.Contains(t, b.Tagging.Tagging.TagSet, s3types.Tag{Key: sdkaws.String("Purpose"), Value: sdkaws.String("SIEM Sink Backup")})

			assert.Contains(t, *r.Role.Create.AssumeRolePolicyDocument, "firehose.amazonaws.com")
			policy := *r.Role.Policy.PolicyDocument
			assert.Contains(t, policy, testTarget().DataLakeBucketARN)
			assert.Contains(t, policy, "kms:Decrypt")
			assert.Contains(t, policy, b.ARN+"/*")

			require.Len(t, r.Alarms, 2)
			for _, a := range r.Alarms {
				assert.Equal(t, AlarmNamespace, *a.Namespace)
				assert.Equal(t, cwtypes.StatisticSum, a.Statistic)
				assert.Equal(t, int32(300), *a.Period)
				assert.Equal(t, int32(1), *a.EvaluationPeriods)
				assert.Equal(t, float64(1), *a.Threshold)
				assert.Equal(t, cwtypes.ComparisonOperatorLessThanThreshold, a.ComparisonOperator)
				assert.Equal(t, []string{r.Topic.ARN}, a.AlarmActions)
				require.Len(t, a.Dimensions, 1)
				assert.Equal(t, "DeliveryStreamName", *a.Dimensions[0].Name)
				assert.Equal(t, r.StreamName(), *a.Dimensions[0].Value)
			}
			assert.True(t, strings.HasSuffix(*r.Alarms[0].MetricName, ".Success"))
			assert.True(t, strings.HasSuffix(*r.Alarms[1].MetricName, ".HttpEndpoint.Success"))

			assert.Equal(t, fhtypes.DeliveryStreamTypeDirectPut, r.Stream.DeliveryStreamType)
		})
	}
}

func TestConfigure_Splunk(t *testing.T) {
	r := configure(t, KindSplunk)
	d := r.Stream.SplunkDestinationConfiguration
	require.NotNil(t, d)

	assert.Equal(t, "https://hec.splunk.example.com:8088", *d.HECEndpoint)
	assert.Equal(t, "hec-token-123", *d.HECToken)
	assert.Equal(t, fhtypes.HECEndpointTypeRaw, d.HECEndpointType)
	assert.Equal(t, fhtypes.SplunkS3BackupModeFailedEventsOnly, d.S3BackupMode)
	assert.Equal(t, int32(300), *d.RetryOptions.DurationInSeconds)
	assert.Equal(t, fhtypes.CompressionFormatGzip, d.S3Configuration.CompressionFormat)
	assert.Equal(t, r.Bucket.ARN, *d.S3Configuration.BucketARN)
	assert.Equal(t, r.Role.ARN, *d.S3Configuration.RoleARN)
	assert.Equal(t, "DeliveryToSplunk.Success", *r.Alarms[0].MetricName)
}

func TestConfigure_Elastic(t *testing.T) {
	r := configure(t, KindElastic)
	d := r.Stream.HttpEndpointDestinationConfiguration
	require.NotNil(t, d)

	assert.Equal(t, "https://elastic.example.com/_bulk", *d.EndpointConfiguration.Url)
	assert.Equal(t, "s3cr3t", *d.EndpointConfiguration.AccessKey)
	assert.Equal(t, fhtypes.ContentEncodingGzip, d.RequestConfiguration.ContentEncoding)
	require.Len(t, d.RequestConfiguration.CommonAttributes, 1)
	attr := d.RequestConfiguration.CommonAttributes[0]
	assert.Equal(t, "Authorization", *attr.AttributeName)
	assert.Equal(t, "Basic ZWxhc3RpYzpzM2NyM3Q=", *attr.AttributeValue)
	assert.Equal(t, fhtypes.HttpEndpointS3BackupModeFailedDataOnly, d.S3BackupMode)
	assert.Equal(t, int32(300), *d.RetryOptions.DurationInSeconds)
	assert.Equal(t, fhtypes.CompressionFormatGzip, d.S3Configuration.CompressionFormat)
}

func TestConfigure_OpenSearch(t *testing.T) {
	r := configure(t, KindOpenSearch)
	require.NotNil(t, r.Collection)

	assert.Equal(t, "security-lake-collection", *r.Collection.Create.Name)
	assert.Equal(t, aosstypes.CollectionTypeTimeseries, r.Collection.Create.Type)
	assert.Equal(t, "security-lake-access-policy", *r.Collection.Access.Name)
	assert.Equal(t, aosstypes.AccessPolicyTypeData, r.Collection.Access.Type)

	var policy []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*r.Collection.Access.Policy), &policy))
	require.Len(t, policy, 1)
	assert.Contains(t, policy[0]["Principal"], testTarget().SubscriberRoleARN)

	s := r.Subscriber
	require.NotNil(t, s)
	assert.Equal(t, "OpenSearchServerlessSubscriber", *s.SubscriberName)
	assert.Equal(t, []sltypes.AccessType{sltypes.AccessTypeS3}, s.AccessTypes)
	require.Len(t, s.Sources, 2)
	first, ok := s.Sources[0].(*sltypes.LogSourceResourceMemberAwsLogSource)
	require.True(t, ok)
	assert.Equal(t, sltypes.AwsLogSourceNameVpcFlow, first.Value.SourceName)

	d := r.Stream.AmazonOpenSearchServerlessDestinationConfiguration
	require.NotNil(t, d)
	assert.Nil(t, d.CollectionEndpoint, "filled in by the provisioner")
	assert.Equal(t, int32(300), *d.RetryOptions.DurationInSeconds)
	assert.Equal(t, fhtypes.CompressionFormatGzip, d.S3Configuration.CompressionFormat)
}

func TestConfigure_MissingCredentials(t *testing.T) {
	for _, k := range []Kind{KindSplunk, KindElastic} {
		sink, err := NewSink(string(k))
		require.NoError(t, err)

		target := testTarget()
		target.Credentials = map[string]string{}
		_, err = sink.Configure(target)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
		assert.Contains(t, err.Error(), sink.Parameters()[0])
	}
}

func TestConfigure_InvalidTarget(t *testing.T) {
	target := testTarget()
	target.KMSKeyARN = ""
	target.Region = ""

	_, err := openSearchSink{}.Configure(target)
	require.Error(t, err)
	assert.Equal(t, "invalid SIEM target: missing KMS key ARN, region", err.Error())

	target = testTarget()
	target.NamePrefix = strings.Repeat("x", 40)
	_, err = openSearchSink{}.Configure(target)
	assert.ErrorContains(t, err, "exceeds 63 characters")
}

func TestConfigure_USEast1HasNoLocationConstraint(t *testing.T) {
	target := testTarget()
	target.Region = "us-east-1"
	r, err := splunkSink{}.Configure(target)
	require.NoError(t, err)
	assert.Nil(t, r.Bucket.Create.CreateBucketConfiguration)
}

func TestPlanJSON_MasksSecrets(t *testing.T) {
	r := configure(t, KindElastic)

	b, err := r.PlanJSON()
	require.NoError(t, err)
	out := string(b)
	assert.NotContains(t, out, "s3cr3t")
	assert.NotContains(t, out, BasicAuth("elastic", "s3cr3t"))
	assert.Contains(t, out, "https://elastic.example.com/_bulk")
	assert.True(t, json.Valid(b))
}
