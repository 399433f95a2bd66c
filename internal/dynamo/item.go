package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/groundtruth/internal/shard"
	"github.com/jacentio/groundtruth/store"
)

// Stored attribute names.
const (
	attrID       = "_id"
	attrRev      = "_rev"
	attrTenant   = "tenant"
	attrSchema   = "schema"
	attrName     = "name"
	attrValue    = "value"
	attrUsername = "username"
	attrClasses  = "classes"
	attrMetadata = "metadata"
	attrScope    = "nk_part"
	attrNatural  = "nk"

	attrEdgePK    = "pk"
	attrEdgeText  = "text_id"
	attrEdgeClass = "class_id"
)

// Index names on the documents table.
const (
	indexNaturalKey = "by_natural_key"
	indexTenant     = "by_tenant"
)

func s(v string) *types.AttributeValueMemberS { return &types.AttributeValueMemberS{Value: v} }

// docKey returns the primary key of a document.
func docKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{attrID: s(id)}
}

// marshalDocument converts a document to an item, adding the index attributes.
func marshalDocument(doc *store.Document) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}
	if doc.Schema == store.SchemaText {
		if _, ok := item[attrMetadata].(*types.AttributeValueMemberM); !ok {
			item[attrMetadata] = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}
		}
	} else {
		delete(item, attrMetadata)
	}
	if key := doc.NaturalKey(); key != "" {
		item[attrScope] = s(shard.ScopeKey(doc.Tenant, string(doc.Schema)))
		item[attrNatural] = s(shard.NaturalSortKey(key))
	}
	return item, nil
}

// unmarshalDocument converts an item back to a document.
func unmarshalDocument(item map[string]types.AttributeValue) (*store.Document, error) {
	var doc store.Document
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}

func unmarshalDocuments(items []map[string]types.AttributeValue) ([]*store.Document, error) {
	docs := make([]*store.Document, 0, len(items))
	for _, item := range items {
		doc, err := unmarshalDocument(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// naturalAttr returns the attribute holding the natural key of schema.
func naturalAttr(schema store.Schema) string {
	switch schema {
	case store.SchemaClass:
		return attrName
	case store.SchemaProfile:
		return attrUsername
	default:
		return attrValue
	}
}

// edgeKey returns the primary key of the edge tagging textID with classID.
func (b *Backend) edgeKey(tenant, classID, textID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrEdgePK:   s(shard.EdgePK(tenant, classID, textID, b.config.NumShards)),
		attrEdgeText: s(textID),
	}
}

func (b *Backend) edgeItem(tenant, classID, textID string) map[string]types.AttributeValue {
	item := b.edgeKey(tenant, classID, textID)
	item[attrTenant] = s(tenant)
	item[attrEdgeClass] = s(classID)
	return item
}
