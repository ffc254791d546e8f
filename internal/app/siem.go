package app

import (
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
	"github.com/imrishuroy/multiregion-ecommerce/internal/aws"
	"github.com/imrishuroy/multiregion-ecommerce/internal/config"
	"github.com/imrishuroy/multiregion-ecommerce/internal/siem"
)

// NewCredentialSource returns the store SIEM credentials are read from.
func NewCredentialSource(source string, cfg sdkaws.Config) (siem.CredentialSource, error) {
	switch source {
	case config.CredentialSourceSSM:
		return aws.NewParameterStore(ssm.NewFromConfig(cfg)), nil
	case config.CredentialSourceSecretsManager:
		return aws.NewSecretsClient(secretsmanager.NewFromConfig(cfg)), nil
	default:
		return nil, apperr.Configuration("unsupported SIEM credential source: %s", source)
	}
}

// SIEMTarget maps configuration and resolved credentials onto a sink target.
func SIEMTarget(cfg *config.SIEMConfig, creds map[string]string) siem.Target {
	return siem.Target{
		AccountID:         cfg.AccountID,
		Region:            cfg.Region,
		NamePrefix:        cfg.NamePrefix,
		DataLakeBucketARN: cfg.DataLakeBucketARN,
		KMSKeyARN:         cfg.DataLakeKMSKeyARN,
		SubscriberRoleARN: cfg.SubscriberRoleARN,
		Credentials:       creds,
	}
}
