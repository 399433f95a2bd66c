package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/groundtruth/store"
)

const (
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
	reasonTransactionConflict    = "TransactionConflict"
)

func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

func isResourceNotFound(err error) bool {
	var rnf *types.ResourceNotFoundException
	return errors.As(err, &rnf)
}

// failedConditions returns the indices of the transaction items whose
// condition failed, or nil if err is not a cancelled transaction.
func failedConditions(err error) []int {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) {
		return nil
	}
	var failed []int
	for i, reason := range txErr.CancellationReasons {
		if reason.Code != nil && *reason.Code == reasonConditionalCheckFailed {
			failed = append(failed, i)
		}
	}
	return failed
}

// isTransactionConflict reports whether a transaction was cancelled only
// because another transaction was writing the same items.
func isTransactionConflict(err error) bool {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) {
		return false
	}
	conflicted := false
	for _, reason := range txErr.CancellationReasons {
		if reason.Code == nil {
			continue
		}
		switch *reason.Code {
		case reasonTransactionConflict:
			conflicted = true
		case "None":
		default:
			return false
		}
	}
	return conflicted
}

// isWriteConflict reports whether err means the condition on the document
// write (item docIndex of a transaction, or a single conditional write) failed.
func isWriteConflict(err error, docIndex int) bool {
	if isConditionFailed(err) {
		return true
	}
	for _, i := range failedConditions(err) {
		if i == docIndex {
			return true
		}
	}
	return false
}

func notFound(id string) error {
	return &store.Error{Kind: store.KindNotFound, Message: "document " + id + " not found"}
}

func conflict(id string) error {
	return &store.Error{Kind: store.KindConflict, Message: "document " + id + " has a newer revision"}
}

func alreadyExists(id string) error {
	return &store.Error{Kind: store.KindConflict, Message: "document " + id + " already exists"}
}
