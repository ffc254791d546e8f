// Package orderapi holds the create/get/list order operations shared by every HTTP surface.
package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
	"github.com/imrishuroy/multiregion-ecommerce/internal/aws"
	"github.com/imrishuroy/multiregion-ecommerce/internal/idempotency"
	"github.com/imrishuroy/multiregion-ecommerce/internal/orders"
	"github.com/imrishuroy/multiregion-ecommerce/internal/validation"
	"go.uber.org/zap"
)

// OrderCreated envelope values.
const (
	EventSource       = "ecommerce.orders"
	EventOrderCreated = "OrderCreated"
)

// Listing bounds for ListByCustomer.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Client-facing messages owned by the service.
const (
	MsgMissingOrderID    = "Missing orderId parameter"
	MsgMissingCustomerID = "Missing customerId parameter"
	MsgInvalidLimit      = "Invalid limit"
	MsgOrderNotFound     = "Order not found"
	MsgInProgress        = "Request already in progress"
)

// OrderStore is the subset of *orders.Store the service needs.
type OrderStore interface {
	Put(ctx context.Context, order orders.Order) error
	CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, order orders.Order) error
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int32) ([]orders.Order, error)
}

// IdempotencyStore is the subset of *idempotency.Store the service needs.
type IdempotencyStore interface {
	TableName() string
	NewRecord(key, orderID string) idempotency.IdempotencyRecord
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// EventPublisher delivers a domain event. Both aws.EventBridgePublisher and aws.Publisher (SQS)
// satisfy it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, source, detailType string, detail []byte) error
}

// Deps groups the service dependencies. Idempotency and Metrics are optional.
type Deps struct {
	Orders      OrderStore
	Idempotency IdempotencyStore
	Publisher   EventPublisher
	Metrics     *aws.MetricsClient
	Logger      *zap.Logger
}

// Service implements the order operations.
type Service struct {
	orders    OrderStore
	idem      IdempotencyStore
	publisher EventPublisher
	metrics   *aws.MetricsClient
	log       *zap.Logger

	nowFunc func() time.Time
	newID   func() string
}

// NewService wires a Service. It is built once per process and shared by all requests.
func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		orders:    d.Orders,
		idem:      d.Idempotency,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		log:       log,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// CreateResult is what a create (or its replay) returns to the caller.
type CreateResult struct {
	Order    *orders.Order
	Status   int
	Body     []byte // serialized response, replayed verbatim for repeated idempotency keys
	Replayed bool
}

// Create stores a new PENDING order and publishes OrderCreated. When idempotencyKey is set and
// an idempotency store is configured, a repeated key returns the first response instead.
func (s *Service) Create(ctx context.Context, req validation.CreateOrderRequest, idempotencyKey string) (*CreateResult, error) {
	order := orders.New(s.newID(), req.CustomerID, req.OrderItems(), s.nowFunc())
	log := s.log.With(zap.String("order_id", order.OrderID), zap.String("customer_id", order.CustomerID))

	idempotent := idempotencyKey != "" && s.idem != nil
	if idempotent {
		rec := s.idem.NewRecord(idempotencyKey, order.OrderID)
		err := s.orders.CreateWithIdempotencyTransaction(ctx, s.idem.TableName(), rec, order)
		if errors.Is(err, orders.ErrTransactionConflict) {
			return s.replay(ctx, idempotencyKey)
		}
		if err != nil {
			log.Error("failed to store order", zap.Error(err))
			return nil, apperr.Internal(err)
		}
	} else if err := s.orders.Put(ctx, order); err != nil {
		log.Error("failed to store order", zap.Error(err))
		return nil, apperr.Internal(err)
	}

	body, err := json.Marshal(order)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("marshal order: %w", err))
	}

	if err := s.publisher.PublishEvent(ctx, EventSource, EventOrderCreated, body); err != nil {
		// The order stays stored; there is no compensation for a lost event.
		log.Error("failed to publish OrderCreated", zap.Error(err))
		s.count(ctx, aws.MetricOrderPublishFailures)
		if idempotent {
			if mErr := s.idem.MarkFailed(ctx, idempotencyKey, fmt.Sprintf("publish failed: %v", err)); mErr != nil {
				log.Warn("failed to mark idempotency key failed", zap.Error(mErr))
			}
		}
		return nil, apperr.Internal(err)
	}

	if idempotent {
		if err := s.idem.MarkDone(ctx, idempotencyKey, string(body), http.StatusOK); err != nil {
			log.Warn("failed to mark idempotency key done", zap.Error(err))
		}
	}

	s.count(ctx, aws.MetricOrdersCreated)
	log.Info("order created", zap.String("total", order.TotalAmount.String()), zap.Int("items", len(order.Items)))

	return &CreateResult{Order: &order, Status: http.StatusOK, Body: body}, nil
}

func (s *Service) replay(ctx context.Context, key string) (*CreateResult, error) {
	rec, err := s.idem.Get(ctx, key)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("idempotency lookup: %w", err))
	}
	if rec == nil {
		// the transaction was cancelled by the order guard, not the key
		return nil, apperr.Internal(errors.New("transaction cancelled without idempotency record"))
	}

	switch rec.Status {
	case idempotency.StatusDone:
		s.count(ctx, aws.MetricIdempotentReplays)
		res := &CreateResult{Status: rec.ResponseStatus, Body: []byte(rec.ResponseBody), Replayed: true}
		if res.Status == 0 {
			res.Status = http.StatusOK
		}
		var o orders.Order
		if err := json.Unmarshal(res.Body, &o); err == nil {
			res.Order = &o
		}
		return res, nil
	case idempotency.StatusInProgress:
		return nil, apperr.Conflict(MsgInProgress)
	case idempotency.StatusFailed:
		return nil, apperr.Internal(fmt.Errorf("previous attempt for order %s failed: %s", rec.OrderID, rec.Note))
	default:
		return nil, apperr.Internal(fmt.Errorf("unknown idempotency status %q", rec.Status))
	}
}

// Get returns the order with orderID.
func (s *Service) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apperr.Validation(MsgMissingOrderID)
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		s.log.Error("failed to get order", zap.String("order_id", orderID), zap.Error(err))
		return nil, apperr.Internal(err)
	}
	if o == nil {
		return nil, apperr.NotFound(MsgOrderNotFound)
	}
	return o, nil
}

// ListByCustomer returns a customer's orders newest first. A zero limit means DefaultListLimit.
func (s *Service) ListByCustomer(ctx context.Context, customerID string, limit int) ([]orders.Order, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, apperr.Validation(MsgMissingCustomerID)
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, apperr.Validation(MsgInvalidLimit)
	}

	list, err := s.orders.ListByCustomer(ctx, customerID, int32(limit))
	if err != nil {
		s.log.Error("failed to list orders", zap.String("customer_id", customerID), zap.Error(err))
		return nil, apperr.Internal(err)
	}
	return list, nil
}

func (s *Service) count(ctx context.Context, metric string) {
	if err := s.metrics.RecordCount(ctx, metric, nil); err != nil {
		s.log.Debug("metric not recorded", zap.String("metric", metric), zap.Error(err))
	}
}
