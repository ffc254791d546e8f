package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/multiregion-ecommerce/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const table = "idempotency-table"

func newTestStore() (*Store, *testutil.Dynamo) {
	fake := testutil.NewDynamo(map[string]string{table: "idempotency_key"})
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewStore(fake, table, 48*time.Hour).WithClock(func() time.Time { return fixed }), fake
}

func TestGet_MarkDone_MarkFailed(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	key := "test-key-1"
	orderID := "order-123"

	// the order transaction writes this record in production
	require.NoError(t, fake.Seed(table, s.NewRecord(key, orderID)))

	rec, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, orderID, rec.OrderID)

	require.NoError(t, s.MarkDone(ctx, key, `{"orderId":"order-123"}`, 200))
	rec, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, rec.Status)
	assert.Equal(t, `{"orderId":"order-123"}`, rec.ResponseBody)
	assert.Equal(t, 200, rec.ResponseStatus)

	require.NoError(t, s.MarkFailed(ctx, key, "publish failed"))
	rec, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "publish failed", rec.Note)
}

func TestNewRecord_TTLWindow(t *testing.T) {
	s, _ := newTestStore()
	rec := s.NewRecord("k", "o")

	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, rec.CreatedAt.Add(48*time.Hour).Unix(), rec.ExpiresAt)
}

func TestNewStore_DefaultTTL(t *testing.T) {
	s := NewStore(testutil.NewDynamo(map[string]string{table: "idempotency_key"}), table, 0)
	assert.Equal(t, DefaultTTL, s.ttlWindow)
}

func TestGet_Missing(t *testing.T) {
	s, _ := newTestStore()
	rec, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMarkDone_UnknownKey(t *testing.T) {
	s, fake := newTestStore()
	err := s.MarkDone(context.Background(), "ghost", "{}", 200)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, fake.Len(table))
}

func TestGet_ClientError(t *testing.T) {
	s, fake := newTestStore()
	fake.Errs["GetItem"] = errors.New("boom")

	rec, err := s.Get(context.Background(), "k")
	assert.Nil(t, rec)
	assert.ErrorContains(t, err, "get item")
}

func TestTableDefinition(t *testing.T) {
	def := TableDefinition("idem")
	assert.Equal(t, "idem", *def.TableName)
	require.Len(t, def.KeySchema, 1)
	assert.Equal(t, "idempotency_key", *def.KeySchema[0].AttributeName)
	assert.Equal(t, types.BillingModePayPerRequest, def.BillingMode)
}
