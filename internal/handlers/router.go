package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
	"github.com/imrishuroy/multiregion-ecommerce/internal/aws"
	"github.com/imrishuroy/multiregion-ecommerce/internal/idempotency"
	"github.com/imrishuroy/multiregion-ecommerce/internal/orderapi"
	"github.com/imrishuroy/multiregion-ecommerce/internal/validation"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-Id"
	replayedHeader  = "Idempotent-Replayed"
	jsonContentType = "application/json; charset=utf-8"

	msgRouteNotFound = "Not found"
)

// HandlerConfig groups dependencies for the order routes.
type HandlerConfig struct {
	Service *orderapi.Service
	Logger  *zap.Logger
	Metrics *aws.MetricsClient
}

// NewRouter builds the gin engine: recovery, CORS, request logging/metrics, health and the order
// routes.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig()))
	r.Use(requestLogger(cfg.Logger, cfg.Metrics))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterOrdersRoutes(r, cfg)
	r.NoRoute(noRoute)
	return r
}

// noRoute keeps unmatched paths on the JSON error shape. A GET on /orders/ has an empty orderId.
func noRoute(c *gin.Context) {
	if c.Request.Method == http.MethodGet && strings.TrimRight(c.Request.URL.Path, "/") == "/orders" {
		writeError(c, apperr.Validation(orderapi.MsgMissingOrderID))
		return
	}
	writeError(c, apperr.NotFound(msgRouteNotFound))
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", idempotency.HeaderName, requestIDHeader},
		ExposeHeaders:   []string{requestIDHeader, replayedHeader},
		MaxAge:          12 * time.Hour,
	}
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &orderRoutes{svc: cfg.Service, validate: validation.New(), log: cfg.Logger}

	r.POST("/orders", h.create)
	r.GET("/orders/:orderId", h.get)
	r.GET("/customers/:customerId/orders", h.listByCustomer)
}

type orderRoutes struct {
	svc      *orderapi.Service
	validate *validatorv10.Validate
	log      *zap.Logger
}

func (h *orderRoutes) create(c *gin.Context) {
	req, err := validation.BindCreateOrder(c, h.validate)
	if err != nil {
		h.log.Debug("rejected create request",
			zap.String("request_id", c.GetString(requestIDHeader)),
			zap.Any("fields", validation.FieldErrors(err)),
			zap.Error(err))
		writeError(c, err)
		return
	}

	res, err := h.svc.Create(c.Request.Context(), req, c.GetHeader(idempotency.HeaderName))
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Replayed {
		c.Header(replayedHeader, "true")
	}
	c.Data(res.Status, jsonContentType, res.Body)
}

func (h *orderRoutes) get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *orderRoutes) listByCustomer(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, apperr.Validation(orderapi.MsgInvalidLimit))
			return
		}
		limit = n
	}

	list, err := h.svc.ListByCustomer(c.Request.Context(), c.Param("customerId"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": apperr.PublicMessage(err)})
}

// requestLogger tags each request with an id, logs it and records request count/latency.
func requestLogger(log *zap.Logger, metrics *aws.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Header(requestIDHeader, reqID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		log.Info("request",
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", latency))

		if metrics.IsEnabled() {
			dims := map[string]string{"Route": route, "Method": c.Request.Method, "Status": strconv.Itoa(status)}
			if err := metrics.RecordCount(c.Request.Context(), aws.MetricHTTPRequests, dims); err != nil {
				log.Debug("metric not recorded", zap.Error(err))
			}
			if err := metrics.RecordLatency(c.Request.Context(), aws.MetricHTTPLatency, latency, dims); err != nil {
				log.Debug("metric not recorded", zap.Error(err))
			}
		}
	}
}
