package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// revisionCondition requires the document to exist with the expected revision.
const revisionCondition = "attribute_exists(#id) AND #rev = :expected_rev"

// targetCondition requires a procedure target to exist in the tenant with the schema.
const targetCondition = "attribute_exists(#id) AND #tenant = :tenant AND #schema = :schema"

// classCondition requires a class to exist in the tenant.
const classCondition = "attribute_exists(#id) AND #tenant = :tenant AND #schema = :class"

func revisionNames() map[string]string {
	return map[string]string{"#id": attrID, "#rev": attrRev}
}

func revisionValues(rev string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{":expected_rev": s(rev)}
}

// projection builds a projection expression over fields, returning the
// expression and its attribute names. Empty fields project everything.
func projection(fields []string) (*string, map[string]string) {
	if len(fields) == 0 {
		return nil, nil
	}
	names := make(map[string]string, len(fields))
	parts := make([]string, 0, len(fields))
	for i, f := range fields {
		key := fmt.Sprintf("#p%d", i)
		names[key] = f
		parts = append(parts, key)
	}
	return aws.String(strings.Join(parts, ", ")), names
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// diff returns the ids of next missing from prev and the ids of prev missing from next.
func diff(prev, next []string) (added, removed []string) {
	inPrev := make(map[string]bool, len(prev))
	for _, id := range prev {
		inPrev[id] = true
	}
	inNext := make(map[string]bool, len(next))
	for _, id := range next {
		inNext[id] = true
		if !inPrev[id] {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !inNext[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}
