package siem

import (
	"encoding/json"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	fhtypes "github.com/aws/aws-sdk-go-v2/service/firehose/types"
	aoss "github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	aosstypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"
	"github.com/aws/aws-sdk-go-v2/service/securitylake"
	sltypes "github.com/aws/aws-sdk-go-v2/service/securitylake/types"
)

const (
	CollectionName       = "security-lake-collection"
	AccessPolicyName     = "security-lake-access-policy"
	EncryptionPolicyName = "security-lake-encryption"
	SubscriberName       = "OpenSearchServerlessSubscriber"
	IndexName            = "security-lake"
)

type openSearchSink struct{}

func (openSearchSink) Kind() Kind { return KindOpenSearch }

func (openSearchSink) Parameters() []string { return nil }

func (s openSearchSink) Configure(t Target) (*Resources, error) {
	collectionARNs := newNaming(t, KindOpenSearch).collectionARNs()
	r, n, err := newResources(t, KindOpenSearch, "AmazonOpenSearchServerless", statement{
		Effect:   "Allow",
		Action:   []string{"aoss:APIAccessAll", "aoss:BatchGetCollection"},
		Resource: []string{collectionARNs},
	})
	if err != nil {
		return nil, err
	}

	r.Collection = &Collection{
		Name: CollectionName,
		Encryption: &aoss.CreateSecurityPolicyInput{
			Name:   sdkaws.String(EncryptionPolicyName),
			Type:   aosstypes.SecurityPolicyTypeEncryption,
			Policy: sdkaws.String(jsonString(encryptionPolicy{
				Rules:       []policyRule{{ResourceType: "collection", Resource: []string{"collection/" + CollectionName}}},
				AWSOwnedKey: true,
			})),
		},
		Create: &aoss.CreateCollectionInput{
			Name:        sdkaws.String(CollectionName),
			Type:        aosstypes.CollectionTypeTimeseries,
			Description: sdkaws.String("Collection for Security Lake data"),
		},
		Access: &aoss.CreateAccessPolicyInput{
			Name: sdkaws.String(AccessPolicyName),
			Type: aosstypes.AccessPolicyTypeData,
			Policy: sdkaws.String(jsonString([]dataAccessPolicy{{
				Rules: []policyRule{{
					ResourceType: "index",
					Resource:     []string{fmt.Sprintf("index/%s/*", CollectionName)},
					Permission:   []string{"aoss:CreateIndex", "aoss:WriteDocument"},
				}},
				Principal: []string{t.SubscriberRoleARN, r.Role.ARN},
			}})),
		},
	}

	r.Subscriber = &securitylake.CreateSubscriberInput{
		SubscriberName:        sdkaws.String(SubscriberName),
		SubscriberDescription: sdkaws.String("Subscriber for OpenSearch Serverless"),
		SubscriberIdentity: &sltypes.AwsIdentity{
			ExternalId: sdkaws.String(t.AccountID),
			Principal:  sdkaws.String(t.AccountID),
		},
		AccessTypes: []sltypes.AccessType{sltypes.AccessTypeS3},
		Sources: []sltypes.LogSourceResource{
			&sltypes.LogSourceResourceMemberAwsLogSource{Value: sltypes.AwsLogSourceResource{
				SourceName:    sltypes.AwsLogSourceNameVpcFlow,
				SourceVersion: sdkaws.String("1.0"),
			}},
			&sltypes.LogSourceResourceMemberAwsLogSource{Value: sltypes.AwsLogSourceResource{
				SourceName:    sltypes.AwsLogSourceNameCloudTrailMgmt,
				SourceVersion: sdkaws.String("1.0"),
			}},
		},
	}

	// CollectionEndpoint is only known once the collection exists; Provisioner fills it in.
	r.Stream = &firehose.CreateDeliveryStreamInput{
		DeliveryStreamName: sdkaws.String(n.name("delivery")),
		DeliveryStreamType: fhtypes.DeliveryStreamTypeDirectPut,
		AmazonOpenSearchServerlessDestinationConfiguration: &fhtypes.AmazonOpenSearchServerlessDestinationConfiguration{
			IndexName:       sdkaws.String(IndexName),
			RoleARN:         sdkaws.String(r.Role.ARN),
			S3BackupMode:    fhtypes.AmazonOpenSearchServerlessS3BackupModeFailedDocumentsOnly,
			S3Configuration: backupDestination(r),
			RetryOptions: &fhtypes.AmazonOpenSearchServerlessRetryOptions{
				DurationInSeconds: sdkaws.Int32(RetryDurationSeconds),
			},
		},
		Tags: streamTags(n),
	}
	return r, nil
}

// CollectionEndpoint is the data-plane endpoint of a serverless collection.
func CollectionEndpoint(collectionID, region string) string {
	return fmt.Sprintf("https://%s.%s.aoss.amazonaws.com", collectionID, region)
}

type policyRule struct {
	ResourceType string   `json:"ResourceType"`
	Resource     []string `json:"Resource"`
	Permission   []string `json:"Permission,omitempty"`
}

type dataAccessPolicy struct {
	Rules     []policyRule `json:"Rules"`
	Principal []string     `json:"Principal"`
}

type encryptionPolicy struct {
	Rules       []policyRule `json:"Rules"`
	AWSOwnedKey bool         `json:"AWSOwnedKey"`
}

func jsonString(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
