package orders

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalOf_ExactDecimal(t *testing.T) {
	items := []Item{
		{ID: "item1", Quantity: 2, Price: MustAmount("10.99")},
		{ID: "item2", Quantity: 1, Price: MustAmount("29.99")},
	}

	total := TotalOf(items)
	assert.Equal(t, "51.97", total.String())
	assert.True(t, total.Equal(MustAmount("51.97")))
}

func TestTotalOf_ManySmallPrices(t *testing.T) {
	// 0.1 summed ten times drifts in float64; it must not here.
	items := make([]Item, 10)
	for i := range items {
		items[i] = Item{ID: "x", Quantity: 1, Price: MustAmount("0.1")}
	}
	assert.Equal(t, "1", TotalOf(items).String())
}

func TestAmount_JSON(t *testing.T) {
	var it Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","quantity":3,"price":19.99}`), &it))
	assert.Equal(t, "59.97", it.Subtotal().String())

	var quoted Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","quantity":1,"price":"5.50"}`), &quoted))
	assert.True(t, quoted.Price.Equal(MustAmount("5.5")))

	b, err := json.Marshal(struct {
		Total Amount `json:"total"`
	}{MustAmount("51.97")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":51.97}`, string(b))

	var bad Amount
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &bad))
}

func TestAmount_DynamoDB(t *testing.T) {
	av, err := attributevalue.Marshal(MustAmount("51.97"))
	require.NoError(t, err)
	n, ok := av.(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "51.97", n.Value)

	var back Amount
	require.NoError(t, attributevalue.Unmarshal(av, &back))
	assert.True(t, back.Equal(MustAmount("51.97")))

	assert.Error(t, back.UnmarshalDynamoDBAttributeValue(&types.AttributeValueMemberBOOL{Value: true}))
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	o := New("o1", "c1", []Item{{ID: "i", Quantity: 2, Price: MustAmount("1.25")}}, now)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "2026-03-01T10:30:00.000Z", o.Timestamp)
	assert.Equal(t, now.Add(90*24*time.Hour).Unix(), o.TTL)
	assert.Equal(t, "2.5", o.TotalAmount.String())
}

func TestOrder_JSONFieldNames(t *testing.T) {
	o := New("o1", "c1", []Item{{ID: "i", Quantity: 1, Price: MustAmount("3")}}, time.Unix(0, 0))
	b, err := json.Marshal(o)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"orderId", "timestamp", "customerId", "items", "totalAmount", "status", "ttl"} {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, float64(3), m["totalAmount"])
}
