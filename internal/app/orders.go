// Package app wires configuration and AWS clients into the order service for the cmd binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/imrishuroy/multiregion-ecommerce/internal/aws"
	"github.com/imrishuroy/multiregion-ecommerce/internal/config"
	"github.com/imrishuroy/multiregion-ecommerce/internal/idempotency"
	"github.com/imrishuroy/multiregion-ecommerce/internal/orderapi"
	"github.com/imrishuroy/multiregion-ecommerce/internal/orders"
	"go.uber.org/zap"
)

// ErrPublishingDisabled is returned by the publisher of read-only functions.
var ErrPublishingDisabled = errors.New("event publishing is not configured")

// Options selects what a binary needs from the shared wiring.
type Options struct {
	// Publish requires a valid event transport. The get-order function runs without one.
	Publish bool
}

// OrderService is everything a binary needs to serve order requests.
type OrderService struct {
	Service *orderapi.Service
	Metrics *aws.MetricsClient
}

// NewOrderService builds the order service from cfg. It is called once at process start.
func NewOrderService(ctx context.Context, cfg *config.APIConfig, clients *aws.AWSClients, log *zap.Logger, opts Options) (*OrderService, error) {
	var publisher orderapi.EventPublisher = disabledPublisher{}
	if opts.Publish {
		if err := cfg.RequirePublisher(); err != nil {
			return nil, err
		}
		publisher = NewPublisher(cfg, clients)
	}

	if cfg.BootstrapTables {
		if err := bootstrapTables(ctx, cfg, clients, log); err != nil {
			return nil, err
		}
	}

	metrics := aws.NewMetricsClient(clients.CloudWatch, cfg.MetricsNamespace, cfg.MetricsEnabled)
	deps := orderapi.Deps{
		Orders:    orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    log,
	}
	if cfg.IdempotencyEnabled() {
		deps.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}

	log.Info("order service ready",
		zap.String("orders_table", cfg.OrdersTable),
		zap.String("event_transport", cfg.EventTransport),
		zap.Bool("publish", opts.Publish),
		zap.Bool("idempotency", cfg.IdempotencyEnabled()),
		zap.Bool("metrics", metrics.IsEnabled()))

	return &OrderService{Service: orderapi.NewService(deps), Metrics: metrics}, nil
}

// NewPublisher returns the OrderCreated publisher for the configured transport.
func NewPublisher(cfg *config.APIConfig, clients *aws.AWSClients) orderapi.EventPublisher {
	if cfg.EventTransport == config.TransportSQS {
		return aws.NewPublisher(clients.SQS, cfg.OrdersQueueURL)
	}
	return aws.NewEventBridgePublisher(clients.EventBridge, cfg.EventBusARN)
}

func bootstrapTables(ctx context.Context, cfg *config.APIConfig, clients *aws.AWSClients, log *zap.Logger) error {
	created, err := orders.EnsureTable(ctx, clients.DynamoDB, cfg.OrdersTable)
	if err != nil {
		return fmt.Errorf("bootstrap orders table: %w", err)
	}
	log.Info("orders table checked", zap.String("table", cfg.OrdersTable), zap.Bool("created", created))

	if cfg.IdempotencyEnabled() {
		created, err = idempotency.EnsureTable(ctx, clients.DynamoDB, cfg.IdempotencyTable)
		if err != nil {
			return fmt.Errorf("bootstrap idempotency table: %w", err)
		}
		log.Info("idempotency table checked", zap.String("table", cfg.IdempotencyTable), zap.Bool("created", created))
	}
	return nil
}

type disabledPublisher struct{}

func (disabledPublisher) PublishEvent(context.Context, string, string, []byte) error {
	return ErrPublishingDisabled
}
