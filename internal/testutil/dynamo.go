// Package testutil holds in-memory fakes of the AWS client interfaces for unit tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Dynamo is a small in-memory stand-in for DynamoDB. It understands the expressions this
// repository writes and nothing more:
//   - conditions: attribute_not_exists(a), attribute_exists(a), #n = :v
//   - updates:    SET a = :v, #n = :v, ...
//   - queries:    a = :v on a table or an index, ordered by "timestamp"
type Dynamo struct {
	mu     sync.Mutex
	keys   map[string]string
	Tables map[string]map[string]map[string]types.AttributeValue

	// Injected failures, keyed by operation name ("PutItem", "GetItem", ...).
	Errs  map[string]error
	Calls map[string]int
}

// NewDynamo takes table name -> hash key attribute.
func NewDynamo(keys map[string]string) *Dynamo {
	d := &Dynamo{
		keys:   keys,
		Tables: map[string]map[string]map[string]types.AttributeValue{},
		Errs:   map[string]error{},
		Calls:  map[string]int{},
	}
	for tbl := range keys {
		d.Tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
	return d
}

// Item returns the stored item for key, or nil.
func (d *Dynamo) Item(table, key string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Tables[table][key]
}

// Seed stores v as an item of table, bypassing conditions and injected errors.
func (d *Dynamo) Seed(table string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return err
	}
	key, err := d.keyOf(table, item)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Tables[table][key] = item
	return nil
}

// Len returns the number of items in table.
func (d *Dynamo) Len(table string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Tables[table])
}

func (d *Dynamo) begin(op string) error {
	d.Calls[op]++
	return d.Errs[op]
}

func (d *Dynamo) keyOf(table string, item map[string]types.AttributeValue) (string, error) {
	attr, ok := d.keys[table]
	if !ok {
		return "", fmt.Errorf("unknown table %q", table)
	}
	v, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing key attribute %s", attr)
	}
	return v.Value, nil
}

func (d *Dynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("PutItem"); err != nil {
		return nil, err
	}
	table := *in.TableName
	pk, err := d.keyOf(table, in.Item)
	if err != nil {
		return nil, err
	}
	existing := d.Tables[table][pk]
	if !evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, existing) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	d.Tables[table][pk] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("GetItem"); err != nil {
		return nil, err
	}
	table := *in.TableName
	pk, err := d.keyOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := d.Tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("UpdateItem"); err != nil {
		return nil, err
	}
	table := *in.TableName
	pk, err := d.keyOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	item, exists := d.Tables[table][pk]
	if !evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, item) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if !exists {
		item = copyItem(in.Key)
	}
	if in.UpdateExpression != nil {
		if err := applySet(*in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, item); err != nil {
			return nil, err
		}
	}
	d.Tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (d *Dynamo) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("Query"); err != nil {
		return nil, err
	}
	if in.KeyConditionExpression == nil {
		return nil, errors.New("missing key condition")
	}
	attr, val, ok := parseEquality(*in.KeyConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if !ok {
		return nil, fmt.Errorf("unsupported key condition %q", *in.KeyConditionExpression)
	}

	var items []map[string]types.AttributeValue
	for _, item := range d.Tables[*in.TableName] {
		if s, ok := item[attr].(*types.AttributeValueMemberS); ok && s.Value == val {
			items = append(items, copyItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return stringAttr(items[i], "timestamp") < stringAttr(items[j], "timestamp")
	})
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	if in.Limit != nil && int(*in.Limit) < len(items) {
		items = items[:*in.Limit]
	}
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("TransactWriteItems"); err != nil {
		return nil, err
	}
	// all conditions first, then all writes
	for _, it := range in.TransactItems {
		p := it.Put
		if p == nil {
			return nil, errors.New("only Put is supported in transactions")
		}
		pk, err := d.keyOf(*p.TableName, p.Item)
		if err != nil {
			return nil, err
		}
		if !evalCondition(p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, d.Tables[*p.TableName][pk]) {
			return nil, &types.TransactionCanceledException{Message: strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons [ConditionalCheckFailed]")}
		}
	}
	for _, it := range in.TransactItems {
		p := it.Put
		pk, _ := d.keyOf(*p.TableName, p.Item)
		d.Tables[*p.TableName][pk] = copyItem(p.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) bool {
	if expr == nil || *expr == "" {
		return true
	}
	e := strings.TrimSpace(*expr)
	switch {
	case strings.HasPrefix(e, "attribute_not_exists(") && strings.HasSuffix(e, ")"):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(e, "attribute_not_exists("), ")"), names)
		_, ok := item[attr]
		return !ok
	case strings.HasPrefix(e, "attribute_exists(") && strings.HasSuffix(e, ")"):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(e, "attribute_exists("), ")"), names)
		_, ok := item[attr]
		return ok
	}
	attr, val, ok := parseEquality(e, names, values)
	if !ok {
		return false
	}
	return stringAttr(item, attr) == val
}

func parseEquality(expr string, names map[string]string, values map[string]types.AttributeValue) (string, string, bool) {
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	attr := resolveName(strings.TrimSpace(parts[0]), names)
	v, ok := values[strings.TrimSpace(parts[1])].(*types.AttributeValueMemberS)
	if !ok {
		return "", "", false
	}
	return attr, v.Value, true
}

func applySet(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	e := strings.TrimSpace(expr)
	if !strings.HasPrefix(e, "SET ") {
		return fmt.Errorf("unsupported update expression %q", expr)
	}
	for _, clause := range strings.Split(strings.TrimPrefix(e, "SET "), ",") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("unsupported clause %q", clause)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		v, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return fmt.Errorf("missing value for %q", clause)
		}
		item[attr] = v
	}
	return nil
}

func resolveName(n string, names map[string]string) string {
	if strings.HasPrefix(n, "#") {
		if r, ok := names[n]; ok {
			return r
		}
	}
	return n
}

func stringAttr(item map[string]types.AttributeValue, attr string) string {
	if s, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
