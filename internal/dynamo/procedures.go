package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/groundtruth/internal/shard"
	"github.com/jacentio/groundtruth/store"
)

// maxTransactAttempts bounds the retries of a class transaction that lost a
// race with another transaction on the same text.
const maxTransactAttempts = 5

// maxClassesPerTransaction bounds the ids one class transaction carries: one
// update, a condition check and an edge write per id.
const maxClassesPerTransaction = 32

// Apply runs proc as DynamoDB update expressions. Class additions use ADD on
// the string set so concurrent additions merge instead of overwriting.
func (b *Backend) Apply(ctx context.Context, id string, proc store.Procedure) (*store.ProcResult, error) {
	current, err := b.Get(ctx, id)
	if store.KindOf(err) == store.KindNotFound {
		return store.CheckProcedureTarget(nil, proc), nil
	}
	if err != nil {
		return nil, err
	}
	if res := store.CheckProcedureTarget(current, proc); res != nil {
		return res, nil
	}

	switch proc.Name {
	case store.ProcAddClasses, store.ProcRemoveClasses:
		return b.applyClasses(ctx, current, proc)
	case store.ProcPatchMetadata:
		return b.applyPatch(ctx, current, proc)
	}
	return store.Embedded(store.KindInvalid, "unknown procedure "+string(proc.Name)), nil
}

func (b *Backend) applyClasses(ctx context.Context, current *store.Document, proc store.Procedure) (*store.ProcResult, error) {
	required := make(map[string]bool, len(proc.Require))
	for _, id := range proc.Require {
		required[id] = true
	}

	rev := current.Rev
	for _, ids := range chunk(proc.Classes, maxClassesPerTransaction) {
		rev = store.NextRevision(rev)
		items := []types.TransactWriteItem{{Update: b.classUpdate(current.ID, proc, ids, rev)}}
		checked := make([]string, 0, len(ids))
		for _, classID := range ids {
			if !required[classID] {
				continue
			}
			checked = append(checked, classID)
			items = append(items, types.TransactWriteItem{ConditionCheck: b.classCheck(proc.Tenant, classID)})
		}
		if proc.Name == store.ProcAddClasses {
			items = append(items, b.edgeWrites(proc.Tenant, current.ID, ids, nil)...)
		} else {
			items = append(items, b.edgeWrites(proc.Tenant, current.ID, nil, ids)...)
		}

		err := b.transact(ctx, items)
		if err == nil {
			continue
		}
		failed := failedConditions(err)
		if failed == nil {
			return nil, err
		}
		for _, i := range failed {
			if i == 0 {
				return b.classifyProcFailure(ctx, current.ID, proc)
			}
		}
		missing := make([]string, 0, len(failed))
		for _, i := range failed {
			if i-1 < len(checked) {
				missing = append(missing, checked[i-1])
			}
		}
		sort.Strings(missing)
		return store.Embedded(store.KindInvalid, "classes do not exist: "+strings.Join(missing, ", ")), nil
	}

	doc, err := b.Get(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	return &store.ProcResult{Doc: doc}, nil
}

// transact runs items, retrying while concurrent transactions on the same
// items cancel it. Class set updates are idempotent, so a retry is safe.
func (b *Backend) transact(ctx context.Context, items []types.TransactWriteItem) error {
	var err error
	for attempt := 1; attempt <= maxTransactAttempts; attempt++ {
		_, err = b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil || !isTransactionConflict(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
		}
	}
	return err
}

// classUpdate merges ids into or out of the classes set of a text.
func (b *Backend) classUpdate(id string, proc store.Procedure, ids []string, rev string) *types.Update {
	op := "ADD"
	if proc.Name == store.ProcRemoveClasses {
		op = "DELETE"
	}
	return &types.Update{
		TableName:           aws.String(b.config.DocumentsTable),
		Key:                 docKey(id),
		UpdateExpression:    aws.String(op + " #classes :ids SET #rev = :rev"),
		ConditionExpression: aws.String(targetCondition),
		ExpressionAttributeNames: map[string]string{
			"#id":      attrID,
			"#rev":     attrRev,
			"#tenant":  attrTenant,
			"#schema":  attrSchema,
			"#classes": attrClasses,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ids":    &types.AttributeValueMemberSS{Value: ids},
			":rev":    s(rev),
			":tenant": s(proc.Tenant),
			":schema": s(string(proc.Schema)),
		},
	}
}

// classCheck requires classID to be a class of tenant when the transaction commits.
func (b *Backend) classCheck(tenant, classID string) *types.ConditionCheck {
	return &types.ConditionCheck{
		TableName:           aws.String(b.config.DocumentsTable),
		Key:                 docKey(classID),
		ConditionExpression: aws.String(classCondition),
		ExpressionAttributeNames: map[string]string{
			"#id":     attrID,
			"#tenant": attrTenant,
			"#schema": attrSchema,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tenant": s(tenant),
			":class":  s(string(store.SchemaClass)),
		},
	}
}

// applyPatch sets individual metadata keys so keys written concurrently by
// other patches survive.
func (b *Backend) applyPatch(ctx context.Context, current *store.Document, proc store.Procedure) (*store.ProcResult, error) {
	names := map[string]string{
		"#id":     attrID,
		"#rev":    attrRev,
		"#tenant": attrTenant,
		"#schema": attrSchema,
	}
	values := map[string]types.AttributeValue{
		":rev":    s(store.NextRevision(current.Rev)),
		":tenant": s(proc.Tenant),
		":schema": s(string(proc.Schema)),
	}
	sets := []string{"#rev = :rev"}
	condition := targetCondition

	if len(proc.Metadata) > 0 {
		names["#metadata"] = attrMetadata
		if current.Metadata == nil {
			m, err := attributevalue.MarshalMap(proc.Metadata)
			if err != nil {
				return nil, fmt.Errorf("marshal metadata: %w", err)
			}
			values[":metadata"] = &types.AttributeValueMemberM{Value: m}
			sets = append(sets, "#metadata = :metadata")
		} else {
			keys := make([]string, 0, len(proc.Metadata))
			for k := range proc.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i, k := range keys {
				v, err := attributevalue.Marshal(proc.Metadata[k])
				if err != nil {
					return nil, fmt.Errorf("marshal metadata key %s: %w", k, err)
				}
				name, value := fmt.Sprintf("#m%d", i), fmt.Sprintf(":m%d", i)
				names[name] = k
				values[value] = v
				sets = append(sets, "#metadata."+name+" = "+value)
			}
			condition += " AND attribute_type(#metadata, :map)"
			values[":map"] = s("M")
		}
	}

	if proc.Value != nil {
		names["#value"] = attrValue
		names["#scope"] = attrScope
		names["#nk"] = attrNatural
		values[":value"] = s(*proc.Value)
		values[":scope"] = s(shard.ScopeKey(proc.Tenant, string(proc.Schema)))
		values[":nk"] = s(shard.NaturalSortKey(*proc.Value))
		sets = append(sets, "#value = :value", "#scope = :scope", "#nk = :nk")
	}

	out, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(b.config.DocumentsTable),
		Key:                       docKey(current.ID),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return b.classifyProcFailure(ctx, current.ID, proc)
	}
	if err != nil {
		return nil, err
	}
	doc, err := unmarshalDocument(out.Attributes)
	if err != nil {
		return nil, err
	}
	return &store.ProcResult{Doc: doc}, nil
}

// classifyProcFailure re-reads a document whose procedure condition failed and
// reports why.
func (b *Backend) classifyProcFailure(ctx context.Context, id string, proc store.Procedure) (*store.ProcResult, error) {
	doc, err := b.Get(ctx, id)
	if store.KindOf(err) == store.KindNotFound {
		return store.CheckProcedureTarget(nil, proc), nil
	}
	if err != nil {
		return nil, err
	}
	if res := store.CheckProcedureTarget(doc, proc); res != nil {
		return res, nil
	}
	return store.Embedded(store.KindConflict, "document changed while the procedure ran"), nil
}
