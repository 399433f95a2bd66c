package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SchemaVersion is the version of the table layout Migrate installs.
const SchemaVersion = 1

// MarkerID is the id of the document recording the installed SchemaVersion.
const MarkerID = "_design/groundtruth"

const (
	attrVersion  = "version"
	tableTimeout = 2 * time.Minute
	indexTimeout = 30 * time.Minute
)

// Migrate creates the tables and indexes the views rely on and records the
// layout version. Running it against an up-to-date deployment changes nothing.
func (b *Backend) Migrate(ctx context.Context) error {
	if err := b.ensureTable(ctx, b.documentsTable()); err != nil {
		return err
	}
	if err := b.ensureTable(ctx, b.tagsTable()); err != nil {
		return err
	}
	return b.writeMarker(ctx)
}

// Version returns the layout version recorded by Migrate, 0 if none.
func (b *Backend) Version(ctx context.Context) (int, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.config.DocumentsTable),
		Key:            docKey(MarkerID),
		ConsistentRead: aws.Bool(true),
	})
	if isResourceNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, ok := out.Item[attrVersion].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	return strconv.Atoi(v.Value)
}

func (b *Backend) writeMarker(ctx context.Context) error {
	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.config.DocumentsTable),
		Item: map[string]types.AttributeValue{
			attrID:      s(MarkerID),
			attrVersion: &types.AttributeValueMemberN{Value: strconv.Itoa(SchemaVersion)},
		},
		ConditionExpression:      aws.String("attribute_not_exists(#id) OR #version < :version"),
		ExpressionAttributeNames: map[string]string{"#id": attrID, "#version": attrVersion},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: strconv.Itoa(SchemaVersion)},
		},
	})
	if isConditionFailed(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("write migration marker: %w", err)
	}
	return nil
}

// ensureTable creates want if it does not exist, or adds the indexes it lacks.
func (b *Backend) ensureTable(ctx context.Context, want *dynamodb.CreateTableInput) error {
	name := aws.ToString(want.TableName)
	out, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: want.TableName})
	if isResourceNotFound(err) {
		if _, err := b.client.CreateTable(ctx, want); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		waiter := dynamodb.NewTableExistsWaiter(b.client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: want.TableName}, tableTimeout); err != nil {
			return fmt.Errorf("wait for table %s: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("describe table %s: %w", name, err)
	}

	existing := make(map[string]bool)
	for _, idx := range out.Table.GlobalSecondaryIndexes {
		existing[aws.ToString(idx.IndexName)] = true
	}
	for _, idx := range want.GlobalSecondaryIndexes {
		if existing[aws.ToString(idx.IndexName)] {
			continue
		}
		// DynamoDB rejects an index creation while another one is in progress.
		if err := b.waitForIndexes(ctx, want.TableName); err != nil {
			return err
		}
		_, err := b.client.UpdateTable(ctx, &dynamodb.UpdateTableInput{
			TableName:            want.TableName,
			AttributeDefinitions: want.AttributeDefinitions,
			GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{{
				Create: &types.CreateGlobalSecondaryIndexAction{
					IndexName:  idx.IndexName,
					KeySchema:  idx.KeySchema,
					Projection: idx.Projection,
				},
			}},
		})
		if err != nil {
			return fmt.Errorf("add index %s to %s: %w", aws.ToString(idx.IndexName), name, err)
		}
	}
	return nil
}

// waitForIndexes polls table until it is active and none of its indexes is
// being created, updated or deleted.
func (b *Backend) waitForIndexes(ctx context.Context, table *string) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()
	for {
		out, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: table})
		if err != nil {
			return fmt.Errorf("describe table %s: %w", aws.ToString(table), err)
		}
		if !indexesBusy(out.Table) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for indexes of %s: %w", aws.ToString(table), ctx.Err())
		case <-time.After(b.indexPoll):
		}
	}
}

func indexesBusy(table *types.TableDescription) bool {
	if table.TableStatus != "" && table.TableStatus != types.TableStatusActive {
		return true
	}
	for _, idx := range table.GlobalSecondaryIndexes {
		switch idx.IndexStatus {
		case types.IndexStatusCreating, types.IndexStatusUpdating, types.IndexStatusDeleting:
			return true
		}
	}
	return false
}

func (b *Backend) documentsTable() *dynamodb.CreateTableInput {
	all := &types.Projection{ProjectionType: types.ProjectionTypeAll}
	return &dynamodb.CreateTableInput{
		TableName: aws.String(b.config.DocumentsTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrID), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrScope), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrNatural), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrTenant), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(indexNaturalKey),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(attrScope), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(attrNatural), KeyType: types.KeyTypeRange},
				},
				Projection: all,
			},
			{
				IndexName: aws.String(indexTenant),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(attrTenant), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(attrID), KeyType: types.KeyTypeRange},
				},
				Projection: all,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
		StreamSpecification: &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeNewAndOldImages,
		},
	}
}

func (b *Backend) tagsTable() *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(b.config.TagsTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrEdgePK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrEdgeText), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrEdgePK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrEdgeText), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}
