package stream_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/groundtruth/internal/memdb"
	"github.com/jacentio/groundtruth/store"
	"github.com/jacentio/groundtruth/stream"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordingCleaner records cleanup calls and returns a canned report.
type recordingCleaner struct {
	calls  [][2]string
	report *store.CascadeReport
	err    error
}

func (c *recordingCleaner) CleanupClassReferences(_ context.Context, tenant, classID string) (*store.CascadeReport, error) {
	c.calls = append(c.calls, [2]string{tenant, classID})
	if c.err != nil {
		return nil, c.err
	}
	if c.report != nil {
		return c.report, nil
	}
	return &store.CascadeReport{}, nil
}

func removal(schema, tenant, id string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "evt-" + id,
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"_id": events.NewStringAttribute(id),
			},
			OldImage: map[string]events.DynamoDBAttributeValue{
				"_id":    events.NewStringAttribute(id),
				"tenant": events.NewStringAttribute(tenant),
				"schema": events.NewStringAttribute(schema),
				"name":   events.NewStringAttribute("spam"),
			},
		},
	}
}

func TestNewHandler(t *testing.T) {
	// Test with nil cleaner and logger (should not panic)
	h := stream.NewHandler(nil, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
}

func TestHandleCascadeDelete_ClassRemoval(t *testing.T) {
	c := &recordingCleaner{}
	h := stream.NewHandler(c, quiet)

	err := h.HandleCascadeDelete(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{removal("class", "acme", "c1")},
	})
	if err != nil {
		t.Fatalf("HandleCascadeDelete: %v", err)
	}
	if len(c.calls) != 1 || c.calls[0] != [2]string{"acme", "c1"} {
		t.Errorf("expected cleanup of acme/c1, got %v", c.calls)
	}
}

func TestHandleCascadeDelete_SkipsOtherRecords(t *testing.T) {
	insert := removal("class", "acme", "c1")
	insert.EventName = "INSERT"
	modify := removal("class", "acme", "c2")
	modify.EventName = "MODIFY"
	noTenant := removal("class", "", "c3")
	marker := events.DynamoDBEventRecord{
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"_id": events.NewStringAttribute("_design/groundtruth"),
			},
			OldImage: map[string]events.DynamoDBAttributeValue{
				"_id":     events.NewStringAttribute("_design/groundtruth"),
				"version": events.NewNumberAttribute("1"),
			},
		},
	}

	tests := []struct {
		name   string
		record events.DynamoDBEventRecord
	}{
		{"insert", insert},
		{"modify", modify},
		{"text removal", removal("text", "acme", "t1")},
		{"profile removal", removal("profile", "", "p1")},
		{"class without tenant", noTenant},
		{"design marker", marker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &recordingCleaner{}
			h := stream.NewHandler(c, quiet)
			err := h.HandleCascadeDelete(context.Background(), events.DynamoDBEvent{
				Records: []events.DynamoDBEventRecord{tt.record},
			})
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if len(c.calls) != 0 {
				t.Errorf("expected no cleanup, got %v", c.calls)
			}
		})
	}
}

func TestHandleCascadeDelete_StopsOnError(t *testing.T) {
	boom := errors.New("throttled")
	c := &recordingCleaner{err: boom}
	h := stream.NewHandler(c, quiet)

	err := h.HandleCascadeDelete(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			removal("class", "acme", "c1"),
			removal("class", "acme", "c2"),
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cleanup error, got %v", err)
	}
	if len(c.calls) != 1 {
		t.Errorf("expected processing to stop after the first failure, got %d calls", len(c.calls))
	}
}

func TestHandleCascadeDelete_PartialCleanupRetries(t *testing.T) {
	c := &recordingCleaner{report: &store.CascadeReport{Processed: 4, Failed: 1}}
	h := stream.NewHandler(c, quiet)

	err := h.HandleCascadeDelete(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{removal("class", "acme", "c1")},
	})
	if err == nil {
		t.Fatal("expected an error so the batch is redelivered")
	}
}

func TestHandleCascadeDelete_StripsReferences(t *testing.T) {
	ctx := context.Background()
	backend := memdb.New()
	cfg := store.DefaultConfig()
	cfg.Logger = quiet
	s := store.New(backend, cfg)

	class, err := s.CreateClass(ctx, "acme", map[string]any{"name": "spam"})
	if err != nil {
		t.Fatalf("CreateClass: %v", err)
	}
	for _, v := range []string{"buy now", "free money", "act fast"} {
		if _, err := s.CreateText(ctx, "acme", map[string]any{"value": v, "classes": []string{class.ID}}); err != nil {
			t.Fatalf("CreateText: %v", err)
		}
	}

	// Simulate a class removed without its cascade, as after a crash.
	if err := backend.Delete(ctx, class.ID, class.Rev); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	h := stream.NewHandler(s, quiet)
	err = h.HandleCascadeDelete(ctx, events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{removal("class", "acme", class.ID)},
	})
	if err != nil {
		t.Fatalf("HandleCascadeDelete: %v", err)
	}

	n, err := backend.Count(ctx, store.ViewQuery{View: store.ViewByClass, Tenant: "acme", Keys: []string{class.ID}})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no texts to reference the removed class, got %d", n)
	}
}
