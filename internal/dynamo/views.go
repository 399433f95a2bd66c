package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/groundtruth/internal/shard"
	"github.com/jacentio/groundtruth/store"
)

// Query executes a view query against the secondary indexes.
func (b *Backend) Query(ctx context.Context, q store.ViewQuery) ([]*store.Document, error) {
	switch q.View {
	case store.ViewBySchema, store.ViewByTenant:
		input := b.indexQuery(q)
		if expr, names := projection(q.Fields); expr != nil {
			input.ProjectionExpression = expr
			input.ExpressionAttributeNames = mergeExprNames(input.ExpressionAttributeNames, names)
		}
		return b.collect(ctx, input, q.Skip, q.Limit)
	case store.ViewByNaturalKey:
		docs, err := b.naturalKeyMatches(ctx, q)
		if err != nil {
			return nil, err
		}
		return window(docs, q.Skip, q.Limit), nil
	case store.ViewByClass:
		return b.classMembers(ctx, q)
	}
	return nil, fmt.Errorf("unsupported view %s", q.View)
}

// Count returns the number of documents q matches, ignoring Skip and Limit.
func (b *Backend) Count(ctx context.Context, q store.ViewQuery) (int, error) {
	switch q.View {
	case store.ViewBySchema, store.ViewByTenant:
		input := b.indexQuery(q)
		input.Select = types.SelectCount
		total := 0
		paginator := dynamodb.NewQueryPaginator(b.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return 0, err
			}
			total += int(page.Count)
		}
		return total, nil
	case store.ViewByNaturalKey:
		docs, err := b.naturalKeyMatches(ctx, q)
		return len(docs), err
	case store.ViewByClass:
		q.Skip, q.Limit = 0, 0
		docs, err := b.classMembers(ctx, q)
		return len(docs), err
	}
	return 0, fmt.Errorf("unsupported view %s", q.View)
}

// indexQuery builds the query of the schema and tenant views.
func (b *Backend) indexQuery(q store.ViewQuery) *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(b.config.DocumentsTable),
		ExpressionAttributeNames:  map[string]string{},
		ExpressionAttributeValues: map[string]types.AttributeValue{},
	}
	if q.View == store.ViewBySchema {
		input.IndexName = aws.String(indexNaturalKey)
		input.KeyConditionExpression = aws.String("#scope = :scope")
		input.ExpressionAttributeNames["#scope"] = attrScope
		input.ExpressionAttributeValues[":scope"] = s(shard.ScopeKey(q.Tenant, string(q.Schema)))
	} else {
		input.IndexName = aws.String(indexTenant)
		input.KeyConditionExpression = aws.String("#tenant = :tenant")
		input.ExpressionAttributeNames["#tenant"] = attrTenant
		input.ExpressionAttributeValues[":tenant"] = s(q.Tenant)
	}
	if q.Contains != "" {
		input.FilterExpression = aws.String("contains(#natural, :contains)")
		input.ExpressionAttributeNames["#natural"] = naturalAttr(q.Schema)
		input.ExpressionAttributeValues[":contains"] = s(q.Contains)
	}
	return input
}

// collect pages through input, dropping the first skip matches and stopping
// once limit documents are gathered.
func (b *Backend) collect(ctx context.Context, input *dynamodb.QueryInput, skip, limit int) ([]*store.Document, error) {
	docs := []*store.Document{}
	paginator := dynamodb.NewQueryPaginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if skip > 0 {
				skip--
				continue
			}
			doc, err := unmarshalDocument(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			if limit > 0 && len(docs) == limit {
				return docs, nil
			}
		}
	}
	return docs, nil
}

// naturalKeyMatches returns the documents whose natural key is one of q.Keys,
// ordered by natural key. Long keys share a hashed sort key prefix scheme, so
// every candidate is compared against the full key.
func (b *Backend) naturalKeyMatches(ctx context.Context, q store.ViewQuery) ([]*store.Document, error) {
	wanted := make(map[string]bool, len(q.Keys))
	for _, k := range q.Keys {
		wanted[k] = true
	}
	scope := shard.ScopeKey(q.Tenant, string(q.Schema))

	var docs []*store.Document
	for key := range wanted {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(b.config.DocumentsTable),
			IndexName:              aws.String(indexNaturalKey),
			KeyConditionExpression: aws.String("#scope = :scope AND #nk = :nk"),
			ExpressionAttributeNames: map[string]string{
				"#scope": attrScope,
				"#nk":    attrNatural,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":scope": s(scope),
				":nk":    s(shard.NaturalSortKey(key)),
			},
		}
		found, err := b.collect(ctx, input, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, doc := range found {
			if doc.NaturalKey() == key && matchesContains(doc, q.Contains) {
				docs = append(docs, doc)
			}
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		ki, kj := docs[i].NaturalKey(), docs[j].NaturalKey()
		if ki != kj {
			return ki < kj
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// classMembers lists the texts of q.Tenant carrying any class in q.Keys,
// ordered by id. Edges are read from every partition in parallel, then the
// texts are fetched in id order until the window is filled. An edge whose text
// is gone, belongs elsewhere or no longer carries the class is skipped.
func (b *Backend) classMembers(ctx context.Context, q store.ViewQuery) ([]*store.Document, error) {
	ids, err := b.edgeTextIDs(ctx, q.Tenant, q.Keys)
	if err != nil {
		return nil, err
	}

	classes := make(map[string]bool, len(q.Keys))
	for _, key := range q.Keys {
		classes[key] = true
	}
	want := 0
	if q.Limit > 0 {
		want = q.Skip + q.Limit
	}

	docs := []*store.Document{}
	for _, batch := range chunk(ids, maxBatchGetKeys) {
		if want > 0 && len(docs) >= want {
			break
		}
		fetched, err := b.GetMany(ctx, batch)
		if err != nil {
			return nil, err
		}
		kept := make([]*store.Document, 0, len(fetched))
		for _, doc := range fetched {
			if doc.Tenant != q.Tenant || doc.Schema != store.SchemaText {
				continue
			}
			if !carriesAny(doc, classes) || !matchesContains(doc, q.Contains) {
				continue
			}
			kept = append(kept, doc)
		}
		sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })
		docs = append(docs, kept...)
	}
	return window(docs, q.Skip, q.Limit), nil
}

// edgeTextIDs returns the sorted, distinct text ids of the edges of classIDs.
func (b *Backend) edgeTextIDs(ctx context.Context, tenant string, classIDs []string) ([]string, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, classID := range classIDs {
		for _, pk := range shard.EdgePartitions(tenant, classID, b.config.NumShards) {
			g.Go(func() error {
				paginator := dynamodb.NewQueryPaginator(b.client, &dynamodb.QueryInput{
					TableName:              aws.String(b.config.TagsTable),
					KeyConditionExpression: aws.String("#pk = :pk"),
					ProjectionExpression:   aws.String("#text"),
					ExpressionAttributeNames: map[string]string{
						"#pk":   attrEdgePK,
						"#text": attrEdgeText,
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":pk": s(pk),
					},
				})
				for paginator.HasMorePages() {
					page, err := paginator.NextPage(ctx)
					if err != nil {
						return fmt.Errorf("partition %s: %w", pk, err)
					}
					mu.Lock()
					for _, item := range page.Items {
						if v, ok := item[attrEdgeText].(*types.AttributeValueMemberS); ok {
							seen[v.Value] = true
						}
					}
					mu.Unlock()
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func carriesAny(doc *store.Document, classes map[string]bool) bool {
	for _, c := range doc.Classes {
		if classes[c] {
			return true
		}
	}
	return false
}

func matchesContains(doc *store.Document, sub string) bool {
	return sub == "" || strings.Contains(doc.NaturalKey(), sub)
}

func window(docs []*store.Document, skip, limit int) []*store.Document {
	if skip >= len(docs) {
		return []*store.Document{}
	}
	docs = docs[skip:]
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}
