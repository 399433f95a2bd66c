package dynamo

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/groundtruth/store"
)

// stubClient records requests and answers them with the configured functions.
// Unset functions succeed with an empty output.
type stubClient struct {
	mu sync.Mutex

	getItem      func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	batchGetItem func(*dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)
	putItem      func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem   func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteItem   func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	query        func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	transact     func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
	describe     func(*dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
	updateTable  func(*dynamodb.UpdateTableInput) (*dynamodb.UpdateTableOutput, error)

	puts      []*dynamodb.PutItemInput
	updates   []*dynamodb.UpdateItemInput
	deletes   []*dynamodb.DeleteItemInput
	queries   []*dynamodb.QueryInput
	transacts []*dynamodb.TransactWriteItemsInput
	creates   []*dynamodb.CreateTableInput
	altered   []*dynamodb.UpdateTableInput
}

func (c *stubClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if c.getItem == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return c.getItem(in)
}

func (c *stubClient) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	if c.batchGetItem == nil {
		return &dynamodb.BatchGetItemOutput{}, nil
	}
	return c.batchGetItem(in)
}

func (c *stubClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	c.puts = append(c.puts, in)
	c.mu.Unlock()
	if c.putItem == nil {
		return &dynamodb.PutItemOutput{}, nil
	}
	return c.putItem(in)
}

func (c *stubClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	c.updates = append(c.updates, in)
	c.mu.Unlock()
	if c.updateItem == nil {
		return &dynamodb.UpdateItemOutput{}, nil
	}
	return c.updateItem(in)
}

func (c *stubClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	c.deletes = append(c.deletes, in)
	c.mu.Unlock()
	if c.deleteItem == nil {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	return c.deleteItem(in)
}

func (c *stubClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	c.queries = append(c.queries, in)
	c.mu.Unlock()
	if c.query == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return c.query(in)
}

func (c *stubClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	c.transacts = append(c.transacts, in)
	c.mu.Unlock()
	if c.transact == nil {
		return &dynamodb.TransactWriteItemsOutput{}, nil
	}
	return c.transact(in)
}

func (c *stubClient) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	c.mu.Lock()
	c.creates = append(c.creates, in)
	c.mu.Unlock()
	return &dynamodb.CreateTableOutput{}, nil
}

func (c *stubClient) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if c.describe == nil {
		return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
			TableName:   in.TableName,
			TableStatus: types.TableStatusActive,
		}}, nil
	}
	return c.describe(in)
}

func (c *stubClient) UpdateTable(_ context.Context, in *dynamodb.UpdateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error) {
	c.mu.Lock()
	c.altered = append(c.altered, in)
	c.mu.Unlock()
	if c.updateTable == nil {
		return &dynamodb.UpdateTableOutput{}, nil
	}
	return c.updateTable(in)
}

// storedItems answers GetItem from items keyed by document id.
func storedItems(items map[string]map[string]types.AttributeValue) func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	return func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		id := in.Key[attrID].(*types.AttributeValueMemberS).Value
		return &dynamodb.GetItemOutput{Item: items[id]}, nil
	}
}

// batchDocs answers BatchGetItem with the document doc returns for each
// requested id. Ids for which doc returns nil are absent.
func batchDocs(t *testing.T, doc func(id string) *store.Document) func(*dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error) {
	return func(in *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error) {
		var found []map[string]types.AttributeValue
		for _, key := range in.RequestItems["groundtruth_documents"].Keys {
			if d := doc(key[attrID].(*types.AttributeValueMemberS).Value); d != nil {
				found = append(found, mustItem(t, d))
			}
		}
		return &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{
			"groundtruth_documents": found,
		}}, nil
	}
}

func canceled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		c := code
		reasons[i] = types.CancellationReason{Code: &c}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}
