package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
	"github.com/imrishuroy/multiregion-ecommerce/internal/orders"
)

// Client-facing messages for rejected create requests.
const (
	MsgInvalidJSON   = "Invalid JSON"
	MsgMissingFields = "Missing required fields"
	MsgInvalidItems  = "Invalid order items"
)

// Price limits for a single order line. With MaxQuantity they keep every line total and order
// total far inside the 38 significant digits a DynamoDB number can hold.
const (
	MaxQuantity   = 10000
	MaxPriceScale = 2

	// exponent window checked before any arithmetic, so 1e50000000 is never expanded
	minPriceExponent = -18
	maxPriceExponent = 9
)

// MaxPrice is the largest accepted unit price.
var MaxPrice = orders.MustAmount("1000000000")

// New returns a validator that knows the order line rules.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(validateItem, Item{})
	return v
}

func validateItem(sl validatorv10.StructLevel) {
	item, ok := sl.Current().Interface().(Item)
	if !ok {
		return
	}
	if !priceInRange(item.Price) {
		sl.ReportError(item.Price, "Price", "price", "price", "")
	}
}

// priceInRange accepts 0 <= p <= MaxPrice with at most MaxPriceScale decimal places.
func priceInRange(p orders.Amount) bool {
	if exp := p.Exponent(); exp < minPriceExponent || exp > maxPriceExponent {
		return false
	}
	if p.Sign() < 0 || p.GreaterThan(MaxPrice.Decimal) {
		return false
	}
	return p.Decimal.Equal(p.Decimal.Round(MaxPriceScale))
}

// Decode parses and validates a create-order body. Every failure is an *apperr.Error of kind
// Validation carrying one of the Msg* constants.
func Decode(v *validatorv10.Validate, body []byte) (CreateOrderRequest, error) {
	var req CreateOrderRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, apperr.New(apperr.KindValidation, MsgInvalidJSON, errors.New("empty body"))
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, apperr.New(apperr.KindValidation, MsgInvalidJSON, err)
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	if err := v.Struct(req); err != nil {
		return req, classify(err)
	}
	return req, nil
}

// classify maps validator output onto the two request-level messages. Missing top-level fields
// win over item problems.
func classify(err error) error {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.New(apperr.KindValidation, MsgInvalidJSON, err)
	}
	for _, fe := range ve {
		switch fe.StructNamespace() {
		case "CreateOrderRequest.CustomerID", "CreateOrderRequest.Items":
			return apperr.New(apperr.KindValidation, MsgMissingFields, err)
		}
	}
	return apperr.New(apperr.KindValidation, MsgInvalidItems, err)
}
