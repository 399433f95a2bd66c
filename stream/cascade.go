// Package stream provides DynamoDB Streams handlers for cascade operations.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/groundtruth/store"
)

// Cleaner strips references to a deleted class. *store.Store implements it.
type Cleaner interface {
	CleanupClassReferences(ctx context.Context, tenant, classID string) (*store.CascadeReport, error)
}

// Handler processes DynamoDB stream events of the documents table.
type Handler struct {
	cleaner Cleaner
	logger  *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(c Cleaner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cleaner: c,
		logger:  logger,
	}
}

// HandleCascadeDelete resumes the reference cleanup of every removed class
// document in event. It is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != string(events.DynamoDBOperationTypeRemove) {
		return nil
	}

	old := record.Change.OldImage
	if getStringAttr(old, "schema") != string(store.SchemaClass) {
		return nil
	}

	classID := documentID(record.Change.Keys)
	if classID == "" {
		classID = getStringAttr(old, "_id")
	}
	tenant := getStringAttr(old, "tenant")
	if classID == "" || tenant == "" {
		h.logger.Warn("skipping class record without identity",
			"eventID", record.EventID,
		)
		return nil
	}

	h.logger.Info("processing class removal",
		"tenant", tenant,
		"class", classID,
		"name", getStringAttr(old, "name"),
	)

	report, err := h.cleaner.CleanupClassReferences(ctx, tenant, classID)
	if err != nil {
		return fmt.Errorf("cleanup class %s: %w", classID, err)
	}
	if report.Failed > 0 {
		// Returning an error makes Lambda redeliver the batch; cleanup is idempotent.
		return fmt.Errorf("cleanup class %s: %d of %d texts failed", classID, report.Failed, report.Failed+report.Processed)
	}

	h.logger.Info("class cascade completed",
		"tenant", tenant,
		"class", classID,
		"textsProcessed", report.Processed,
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// documentID returns the _id of a stream record key.
func documentID(keys map[string]events.DynamoDBAttributeValue) string {
	return getStringAttr(keys, "_id")
}
