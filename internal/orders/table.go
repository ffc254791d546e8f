package orders

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/multiregion-ecommerce/internal/aws"
)

// TTLAttribute is the attribute the table's time-to-live is configured on.
const TTLAttribute = "ttl"

// TableDefinition describes the orders table: orderId hash key, on-demand billing, a
// NEW_AND_OLD_IMAGES stream for replication, and the CustomerOrders/OrderStatus GSIs sorted by
// timestamp.
func TableDefinition(tableName string) *dyn.CreateTableInput {
	str := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: sdkaws.String(name), AttributeType: types.ScalarAttributeTypeS}
	}
	gsi := func(name, hash string) types.GlobalSecondaryIndex {
		return types.GlobalSecondaryIndex{
			IndexName: sdkaws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: sdkaws.String(hash), KeyType: types.KeyTypeHash},
				{AttributeName: sdkaws.String("timestamp"), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}

	return &dyn.CreateTableInput{
		TableName: sdkaws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			str("orderId"),
			str("customerId"),
			str("status"),
			str("timestamp"),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: sdkaws.String("orderId"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(CustomerOrdersIndex, "customerId"),
			gsi(OrderStatusIndex, "status"),
		},
		StreamSpecification: &types.StreamSpecification{
			StreamEnabled:  sdkaws.Bool(true),
			StreamViewType: types.StreamViewTypeNewAndOldImages,
		},
	}
}

// EnsureTable creates the orders table (with TTL on TTLAttribute) if it does not exist yet.
func EnsureTable(ctx context.Context, client aws.DynamoDBTableAPI, tableName string) (bool, error) {
	return aws.EnsureTable(ctx, client, TableDefinition(tableName), TTLAttribute)
}
