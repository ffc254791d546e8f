package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/multiregion-ecommerce/internal/app"
	"github.com/imrishuroy/multiregion-ecommerce/internal/aws"
	"github.com/imrishuroy/multiregion-ecommerce/internal/config"
	"github.com/imrishuroy/multiregion-ecommerce/internal/handlers"
	"github.com/imrishuroy/multiregion-ecommerce/internal/logger"
	"go.uber.org/zap"
)

func main() {
	config.LoadDotEnv()

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

	orderSvc, err := app.NewOrderService(ctx, cfg, clients, logg, app.Options{Publish: true})
	if err != nil {
		logg.Fatal("failed to build order service", zap.Error(err))
	}

	if cfg.AppEnv == "production" || cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handlers.NewRouter(handlers.HandlerConfig{
		Service: orderSvc.Service,
		Logger:  logg,
		Metrics: orderSvc.Metrics,
	})

	// if RUN_LOCAL is true, run a local HTTP server for development.
	if cfg.RunLocal {
		addr := ":" + cfg.Port
		logg.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			logg.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
