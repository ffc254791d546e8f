package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const tableWaitTimeout = 2 * time.Minute

// EnsureTable creates the table described by def unless it already exists, then enables TTL on
// ttlAttribute. It returns true when the table was created.
func EnsureTable(ctx context.Context, client DynamoDBTableAPI, def *dynamodb.CreateTableInput, ttlAttribute string) (bool, error) {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: def.TableName})
	if err == nil {
		return false, nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return false, fmt.Errorf("describe table %s: %w", sdkaws.ToString(def.TableName), err)
	}

	if _, err := client.CreateTable(ctx, def); err != nil {
		return false, fmt.Errorf("create table %s: %w", sdkaws.ToString(def.TableName), err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: def.TableName}, tableWaitTimeout); err != nil {
		return true, fmt.Errorf("wait for table %s: %w", sdkaws.ToString(def.TableName), err)
	}

	if ttlAttribute != "" {
		_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
			TableName: def.TableName,
			TimeToLiveSpecification: &types.TimeToLiveSpecification{
				AttributeName: sdkaws.String(ttlAttribute),
				Enabled:       sdkaws.Bool(true),
			},
		})
		if err != nil {
			return true, fmt.Errorf("enable ttl on %s: %w", sdkaws.ToString(def.TableName), err)
		}
	}
	return true, nil
}
