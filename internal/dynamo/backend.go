// Package dynamo provides a store.Backend on DynamoDB.
//
// Documents of every tenant and kind share one table keyed by _id. Two global
// secondary indexes serve the natural-key and tenant views, and a separate tag
// table holds one edge per (text, class) pair so texts can be listed by class.
// Edges are written in the same transaction as the text that owns them, up to
// the transaction size limit; the class view verifies every edge it reads.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/groundtruth/store"
)

// Compile-time contract assertion.
var _ store.Backend = (*Backend)(nil)

// maxTransactItems is the DynamoDB limit on items per transaction.
const maxTransactItems = 100

// maxBatchGetKeys is the DynamoDB limit on keys per BatchGetItem request.
const maxBatchGetKeys = 100

// Client is the subset of *dynamodb.Client the backend uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error)
}

// Backend stores documents in DynamoDB.
type Backend struct {
	client Client
	config Config

	// indexPoll is the interval between DescribeTable calls while Migrate
	// waits for an index.
	indexPoll time.Duration
}

// New creates a new Backend instance.
func New(client Client, config Config) *Backend {
	config.validate()
	return &Backend{
		client:    client,
		config:    config,
		indexPoll: 5 * time.Second,
	}
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (b *Backend) Close() error { return nil }

// Get reads a document with a strongly consistent read.
func (b *Backend) Get(ctx context.Context, id string) (*store.Document, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.config.DocumentsTable),
		Key:            docKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, notFound(id)
	}
	return unmarshalDocument(result.Item)
}

// GetMany reads documents in batches, retrying unprocessed keys.
func (b *Backend) GetMany(ctx context.Context, ids []string) ([]*store.Document, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var docs []*store.Document
	for _, batch := range chunk(unique, maxBatchGetKeys) {
		keys := make([]map[string]types.AttributeValue, len(batch))
		for i, id := range batch {
			keys[i] = docKey(id)
		}
		request := map[string]types.KeysAndAttributes{
			b.config.DocumentsTable: {Keys: keys, ConsistentRead: aws.Bool(true)},
		}
		for attempt := 0; len(request) > 0; attempt++ {
			if attempt > 8 {
				return nil, fmt.Errorf("batch get: unprocessed keys after %d attempts", attempt)
			}
			out, err := b.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, err
			}
			found, err := unmarshalDocuments(out.Responses[b.config.DocumentsTable])
			if err != nil {
				return nil, err
			}
			docs = append(docs, found...)
			request = out.UnprocessedKeys
		}
	}
	return docs, nil
}

// Insert stores a new document and the edges of its classes.
func (b *Backend) Insert(ctx context.Context, doc *store.Document) (*store.Document, error) {
	stored := doc.Clone()
	stored.Rev = store.NextRevision("")
	item, err := marshalDocument(stored)
	if err != nil {
		return nil, err
	}
	put := &types.Put{
		TableName:                aws.String(b.config.DocumentsTable),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrID},
	}

	before, with, _ := splitEdges(b.edgeWrites(stored.Tenant, stored.ID, stored.Classes, nil))
	if err := b.writeEdges(ctx, before); err != nil {
		return nil, err
	}
	if len(with) == 0 {
		_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                put.TableName,
			Item:                     put.Item,
			ConditionExpression:      put.ConditionExpression,
			ExpressionAttributeNames: put.ExpressionAttributeNames,
		})
		if isConditionFailed(err) {
			return nil, alreadyExists(doc.ID)
		}
	} else {
		err = b.transact(ctx, append([]types.TransactWriteItem{{Put: put}}, with...))
		if isWriteConflict(err, 0) {
			return nil, alreadyExists(doc.ID)
		}
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Replace overwrites a document if its stored revision is rev, moving the
// edges of classes that were added or removed.
func (b *Backend) Replace(ctx context.Context, doc *store.Document, rev string) (*store.Document, error) {
	current, err := b.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if current.Rev != rev {
		return nil, conflict(doc.ID)
	}

	stored := doc.Clone()
	stored.Rev = store.NextRevision(current.Rev)
	item, err := marshalDocument(stored)
	if err != nil {
		return nil, err
	}
	put := &types.Put{
		TableName:                 aws.String(b.config.DocumentsTable),
		Item:                      item,
		ConditionExpression:       aws.String(revisionCondition),
		ExpressionAttributeNames:  revisionNames(),
		ExpressionAttributeValues: revisionValues(rev),
	}

	added, removed := diff(current.Classes, stored.Classes)
	before, with, after := splitEdges(b.edgeWrites(stored.Tenant, stored.ID, added, removed))
	if err := b.writeEdges(ctx, before); err != nil {
		return nil, err
	}
	if len(with) == 0 {
		_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 put.TableName,
			Item:                      put.Item,
			ConditionExpression:       put.ConditionExpression,
			ExpressionAttributeNames:  put.ExpressionAttributeNames,
			ExpressionAttributeValues: put.ExpressionAttributeValues,
		})
	} else {
		err = b.transact(ctx, append([]types.TransactWriteItem{{Put: put}}, with...))
	}
	if isWriteConflict(err, 0) {
		return nil, b.classifyWriteFailure(ctx, doc.ID)
	}
	if err != nil {
		return nil, err
	}
	b.cleanupEdges(ctx, doc.ID, after)
	return stored, nil
}

// Delete removes a document if its stored revision is rev, together with the
// edges of its classes.
func (b *Backend) Delete(ctx context.Context, id, rev string) error {
	current, err := b.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Rev != rev {
		return conflict(id)
	}

	del := &types.Delete{
		TableName:                 aws.String(b.config.DocumentsTable),
		Key:                       docKey(id),
		ConditionExpression:       aws.String(revisionCondition),
		ExpressionAttributeNames:  revisionNames(),
		ExpressionAttributeValues: revisionValues(rev),
	}
	_, with, after := splitEdges(b.edgeWrites(current.Tenant, id, nil, current.Classes))
	if len(with) == 0 {
		_, err = b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 del.TableName,
			Key:                       del.Key,
			ConditionExpression:       del.ConditionExpression,
			ExpressionAttributeNames:  del.ExpressionAttributeNames,
			ExpressionAttributeValues: del.ExpressionAttributeValues,
		})
	} else {
		err = b.transact(ctx, append([]types.TransactWriteItem{{Delete: del}}, with...))
	}
	if isWriteConflict(err, 0) {
		return b.classifyWriteFailure(ctx, id)
	}
	if err != nil {
		return err
	}
	b.cleanupEdges(ctx, id, after)
	return nil
}

// classifyWriteFailure tells a vanished document from a concurrent update
// after a revision condition failed.
func (b *Backend) classifyWriteFailure(ctx context.Context, id string) error {
	if _, err := b.Get(ctx, id); err != nil {
		return err
	}
	return conflict(id)
}

// splitEdges divides the edge writes of one document write into those
// committed before the document, with it and after it. The document shares its
// transaction with up to maxTransactItems-1 edges. Remaining puts go first and
// remaining deletes last, so an interrupted write only ever leaves edges whose
// text does not carry the class, and classMembers discards those.
func splitEdges(edges []types.TransactWriteItem) (before, with, after []types.TransactWriteItem) {
	n := min(len(edges), maxTransactItems-1)
	with = edges[:n]
	for _, edge := range edges[n:] {
		if edge.Put != nil {
			before = append(before, edge)
		} else {
			after = append(after, edge)
		}
	}
	return before, with, after
}

// writeEdges commits edge writes in transactions of at most maxTransactItems.
// Edge puts and deletes are unconditional, so a retried chunk is harmless.
func (b *Backend) writeEdges(ctx context.Context, edges []types.TransactWriteItem) error {
	for start := 0; start < len(edges); start += maxTransactItems {
		end := min(start+maxTransactItems, len(edges))
		if err := b.transact(ctx, edges[start:end]); err != nil {
			return fmt.Errorf("write edges: %w", err)
		}
	}
	return nil
}

// cleanupEdges deletes the edges left over once their document committed.
// Leftovers are ignored by the class view, so a failure is only logged.
func (b *Backend) cleanupEdges(ctx context.Context, id string, edges []types.TransactWriteItem) {
	if err := b.writeEdges(ctx, edges); err != nil {
		b.config.Logger.Warn("stale class edges left behind",
			"document", id,
			"edges", len(edges),
			"error", err,
		)
	}
}

// edgeWrites returns the transaction items putting the edges of added and
// deleting the edges of removed.
func (b *Backend) edgeWrites(tenant, textID string, added, removed []string) []types.TransactWriteItem {
	items := make([]types.TransactWriteItem, 0, len(added)+len(removed))
	for _, classID := range added {
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(b.config.TagsTable),
			Item:      b.edgeItem(tenant, classID, textID),
		}})
	}
	for _, classID := range removed {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(b.config.TagsTable),
			Key:       b.edgeKey(tenant, classID, textID),
		}})
	}
	return items
}
