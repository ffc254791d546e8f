package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
	"github.com/imrishuroy/multiregion-ecommerce/internal/idempotency"
	"github.com/imrishuroy/multiregion-ecommerce/internal/orderapi"
	"github.com/imrishuroy/multiregion-ecommerce/internal/validation"
	"go.uber.org/zap"
)

// APIGateway serves single-route Lambda functions that receive API Gateway proxy events directly.
// Handlers never return a Go error: every outcome is an HTTP response.
type APIGateway struct {
	svc      *orderapi.Service
	validate *validatorv10.Validate
	log      *zap.Logger
}

func NewAPIGateway(svc *orderapi.Service, log *zap.Logger) *APIGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIGateway{svc: svc, validate: validation.New(), log: log}
}

// CreateOrder handles POST /orders.
func (a *APIGateway) CreateOrder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return errorResponse(apperr.New(apperr.KindValidation, validation.MsgInvalidJSON, err)), nil
		}
		body = decoded
	}

	in, err := validation.Decode(a.validate, body)
	if err != nil {
		a.log.Debug("rejected create request", zap.String("request_id", req.RequestContext.RequestID), zap.Error(err))
		return errorResponse(err), nil
	}

	res, err := a.svc.Create(ctx, in, header(req, idempotency.HeaderName))
	if err != nil {
		return errorResponse(err), nil
	}
	resp := response(res.Status, string(res.Body))
	if res.Replayed {
		resp.Headers[replayedHeader] = "true"
	}
	return resp, nil
}

// GetOrder handles GET /orders/{orderId}.
func (a *APIGateway) GetOrder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	order, err := a.svc.Get(ctx, req.PathParameters["orderId"])
	if err != nil {
		return errorResponse(err), nil
	}
	b, err := json.Marshal(order)
	if err != nil {
		return errorResponse(apperr.Internal(err)), nil
	}
	return response(http.StatusOK, string(b)), nil
}

func header(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, vs := range req.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

func response(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: body,
	}
}

func errorResponse(err error) events.APIGatewayProxyResponse {
	b, _ := json.Marshal(map[string]string{"error": apperr.PublicMessage(err)})
	return response(apperr.HTTPStatus(err), string(b))
}
