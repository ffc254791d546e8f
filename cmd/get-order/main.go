// Command get-order is the single-route Lambda function for GET /orders/{orderId}.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/imrishuroy/multiregion-ecommerce/internal/app"
	"github.com/imrishuroy/multiregion-ecommerce/internal/aws"
	"github.com/imrishuroy/multiregion-ecommerce/internal/config"
	"github.com/imrishuroy/multiregion-ecommerce/internal/handlers"
	"github.com/imrishuroy/multiregion-ecommerce/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := logger.Must(cfg.AppEnv)
	defer func() { _ = logg.Sync() }()

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		logg.Fatal("failed to init aws clients", zap.Error(err))
	}

	orderSvc, err := app.NewOrderService(ctx, cfg, clients, logg, app.Options{Publish: false})
	if err != nil {
		logg.Fatal("failed to build order service", zap.Error(err))
	}

	lambda.Start(handlers.NewAPIGateway(orderSvc.Service, logg).GetOrder)
}
