package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTables struct {
	exists   bool
	created  *dynamodb.CreateTableInput
	ttl      *dynamodb.UpdateTimeToLiveInput
	descErr  error
	describe int
}

func (f *fakeTables) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.describe++
	if f.descErr != nil {
		return nil, f.descErr
	}
	if !f.exists {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("not found")}
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func (f *fakeTables) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.created = in
	f.exists = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeTables) UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	f.ttl = in
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

func TestEnsureTable_CreatesMissingTable(t *testing.T) {
	fake := &fakeTables{}
	def := &dynamodb.CreateTableInput{TableName: sdkaws.String("orders")}

	created, err := EnsureTable(context.Background(), fake, def, "ttl")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Same(t, def, fake.created)
	require.NotNil(t, fake.ttl)
	assert.Equal(t, "ttl", *fake.ttl.TimeToLiveSpecification.AttributeName)
}

func TestEnsureTable_ExistingTable(t *testing.T) {
	fake := &fakeTables{exists: true}

	created, err := EnsureTable(context.Background(), fake, &dynamodb.CreateTableInput{TableName: sdkaws.String("orders")}, "ttl")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, fake.created)
}

func TestEnsureTable_DescribeFailure(t *testing.T) {
	fake := &fakeTables{descErr: errors.New("access denied")}

	_, err := EnsureTable(context.Background(), fake, &dynamodb.CreateTableInput{TableName: sdkaws.String("orders")}, "ttl")
	require.Error(t, err)
	assert.Nil(t, fake.created)
}
