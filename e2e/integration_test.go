//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
//
// Point GROUNDTRUTH_ENDPOINT at DynamoDB Local (with GROUNDTRUTH_REGION and
// static GROUNDTRUTH_ACCESS_KEY_ID / GROUNDTRUTH_SECRET_ACCESS_KEY) or leave it
// unset to use the default AWS credential chain.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jacentio/groundtruth/internal/config"
	"github.com/jacentio/groundtruth/internal/dynamo"
	"github.com/jacentio/groundtruth/store"
)

// Table names - unique per test run to avoid conflicts
const tablePrefix = "groundtruth-e2e-test"

var (
	testID         string
	documentsTable string
	tagsTable      string

	ddbClient *dynamodb.Client
	testStore *store.Store
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	documentsTable = fmt.Sprintf("%s-%s-documents", tablePrefix, testID)
	tagsTable = fmt.Sprintf("%s-%s-tags", tablePrefix, testID)

	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Tables:\n")
	fmt.Printf("  - Documents: %s\n", documentsTable)
	fmt.Printf("  - Tags: %s\n", tagsTable)

	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Dynamo.DocumentsTable = documentsTable
	cfg.Dynamo.TagsTable = tagsTable
	cfg.Dynamo.NumShards = 4
	cfg.Store.PageSize = 5

	ctx := context.Background()
	ddbClient, err = cfg.DynamoClient(ctx)
	if err != nil {
		fmt.Printf("Failed to create DynamoDB client: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	testStore = store.New(dynamo.New(ddbClient, cfg.BackendConfig()), cfg.StoreConfig(logger, nil))

	fmt.Println("Creating test tables...")
	if err := testStore.Migrate(ctx); err != nil {
		fmt.Printf("Failed to migrate: %v\n", err)
		deleteTables(ctx)
		os.Exit(1)
	}

	code := m.Run()

	deleteTables(ctx)
	os.Exit(code)
}

func deleteTables(ctx context.Context) {
	fmt.Println("Deleting test tables...")
	for _, tableName := range []string{documentsTable, tagsTable} {
		_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", tableName, err)
		}
	}
}

// newTenant returns a tenant name no other test uses.
func newTenant() string {
	return "tenant-" + uuid.New().String()[:8]
}

func mustClass(t *testing.T, tenant, name string) *store.Class {
	t.Helper()
	c, err := testStore.CreateClass(context.Background(), tenant, store.Attrs{"name": name})
	if err != nil {
		t.Fatalf("CreateClass(%q): %v", name, err)
	}
	return c
}

func mustText(t *testing.T, tenant, value string, classIDs ...string) *store.Text {
	t.Helper()
	text, err := testStore.CreateText(context.Background(), tenant, store.Attrs{"value": value, "classes": classIDs})
	if err != nil {
		t.Fatalf("CreateText(%q): %v", value, err)
	}
	return text
}

// --- Migration ---

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	if err := testStore.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	b := dynamo.New(ddbClient, dynamo.Config{DocumentsTable: documentsTable, TagsTable: tagsTable})
	v, err := b.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != dynamo.SchemaVersion {
		t.Errorf("expected version %d, got %d", dynamo.SchemaVersion, v)
	}
}

// --- Uniqueness ---

func TestClassName_UniquePerTenant(t *testing.T) {
	ctx := context.Background()
	acme, globex := newTenant(), newTenant()

	mustClass(t, acme, "spam")
	if _, err := testStore.CreateClass(ctx, acme, store.Attrs{"name": "spam"}); !errors.Is(err, store.ErrNonUnique) {
		t.Errorf("expected ErrNonUnique, got %v", err)
	}
	mustClass(t, globex, "spam")

	found, err := testStore.FindClassByName(ctx, globex, "spam")
	if err != nil {
		t.Fatalf("FindClassByName: %v", err)
	}
	if found.Tenant != globex {
		t.Errorf("expected class of %s, got %s", globex, found.Tenant)
	}
}

func TestTextValue_LongKeys(t *testing.T) {
	ctx := context.Background()
	tenant := newTenant()
	prefix := strings.Repeat("x", 2000)

	a := mustText(t, tenant, prefix+"a")
	mustText(t, tenant, prefix+"b")

	found, err := testStore.FindTextByValue(ctx, tenant, prefix+"a")
	if err != nil {
		t.Fatalf("FindTextByValue: %v", err)
	}
	if found.ID != a.ID {
		t.Errorf("expected %s, got %s", a.ID, found.ID)
	}
}

// --- Revisions ---

func TestReplaceText_StaleRevision(t *testing.T) {
	ctx := context.Background()
	tenant := newTenant()
	text := mustText(t, tenant, "hello")

	attrs := store.Attrs{"id": text.ID, "value": "hello again"}
	updated, err := testStore.ReplaceText(ctx, tenant, attrs, text.Rev)
	if err != nil {
		t.Fatalf("ReplaceText: %v", err)
	}
	if _, err := testStore.ReplaceText(ctx, tenant, attrs, text.Rev); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if store.RevisionGeneration(updated.Rev) != 2 {
		t.Errorf("expected generation 2, got %s", updated.Rev)
	}
}

// --- Atomic class mutation ---

func TestAddClasses_Concurrent(t *testing.T) {
	ctx := context.Background()
	tenant := newTenant()
	text := mustText(t, tenant, "contested")

	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, mustClass(t, tenant, fmt.Sprintf("class-%d", i)).ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := testStore.AddClassesToText(ctx, tenant, text.ID, []string{id}); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddClassesToText: %v", err)
	}

	got, err := testStore.GetText(ctx, tenant, text.ID)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	sort.Strings(got.Classes)
	sort.Strings(ids)
	if strings.Join(got.Classes, ",") != strings.Join(ids, ",") {
		t.Errorf("expected every concurrent addition to survive, got %v", got.Classes)
	}
}

func TestText_ManyClasses(t *testing.T) {
	ctx := context.Background()
	tenant := newTenant()

	var ids []string
	for i := 0; i < 150; i++ {
		ids = append(ids, mustClass(t, tenant, fmt.Sprintf("wide-%03d", i)).ID)
	}
	text := mustText(t, tenant, "tagged everywhere", ids...)

	n, err := testStore.CountTextsInClass(ctx, tenant, ids[149])
	if err != nil {
		t.Fatalf("CountTextsInClass: %v", err)
	}
	if n != 1 {
		t.Errorf("expected the text in its last class, got %d", n)
	}

	if err := testStore.DeleteText(ctx, tenant, text.ID, text.Rev); err != nil {
		t.Fatalf("DeleteText: %v", err)
	}
	for _, id := range []string{ids[0], ids[149]} {
		if n, _ := testStore.CountTextsInClass(ctx, tenant, id); n != 0 {
			t.Errorf("expected no texts in %s after delete, got %d", id, n)
		}
	}
}

func TestAddClasses_UnknownClassChangesNothing(t *testing.T) {
	ctx := context.Background()
	tenant := newTenant()
	class := mustClass(t, tenant, "known")
	text := mustText(t, tenant, "untouched")

	_, err := testStore.AddClassesToText(ctx, tenant, text.ID, []string{class.ID, uuid.New().String()})
	if store.KindOf(err) != store.KindInvalid {
		t.Fatalf("expected invalid, got %v", err)
	}
	got, _ := testStore.GetText(ctx, tenant, text.ID)
	if len(got.Classes) != 0 || got.Rev != text.Rev {
		t.Errorf("expected no mutation, got classes %v rev %s", got.Classes, got.Rev)
	}
}

func TestUpdateTextMetadata(t *testing.T) {
	ctx := context.Background()
	tenant := newTenant()
	text := mustText(t, tenant, "annotated")

	value := "annotated twice"
	updated, err := testStore.UpdateTextMetadata(ctx, tenant, text.ID, &store.MetadataPatch{
		Value:    &value,
		Metadata: map[string]any{"source": "e2e"},
	})
	if err != nil {
		t.Fatalf("UpdateTextMetadata: %v", err)
	}
	if updated.Value != value || updated.Metadata["source"] != "e2e" {
		t.Errorf("unexpected text %+v", updated)
	}
}

// --- Cascade ---

func TestDeleteClass_CascadesAcrossPages(t *testing.T) {
	ctx := context.Background()
	tenant := newTenant()
	class := mustClass(t, tenant, "doomed")
	other := mustClass(t, tenant, "survivor")

	for i := 0; i < 12; i++ {
		mustText(t, tenant, fmt.Sprintf("text-%02d", i), class.ID, other.ID)
	}

	report, err := testStore.DeleteClass(ctx, tenant, class.ID, class.Rev)
	if err != nil {
		t.Fatalf("DeleteClass: %v", err)
	}
	if report.Processed != 12 || report.Failed != 0 {
		t.Errorf("expected 12 processed, got %+v", report)
	}

	n, err := testStore.CountTextsInClass(ctx, tenant, class.ID)
	if err != nil {
		t.Fatalf("CountTextsInClass: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no texts left in deleted class, got %d", n)
	}
	n, _ = testStore.CountTextsInClass(ctx, tenant, other.ID)
	if n != 12 {
		t.Errorf("expected 12 texts in surviving class, got %d", n)
	}
}

func TestDeleteTenant(t *testing.T) {
	ctx := context.Background()
	tenant, neighbour := newTenant(), newTenant()
	class := mustClass(t, tenant, "c")
	for i := 0; i < 7; i++ {
		mustText(t, tenant, fmt.Sprintf("t-%d", i), class.ID)
	}
	mustClass(t, neighbour, "c")

	report, err := testStore.DeleteTenant(ctx, tenant)
	if err != nil {
		t.Fatalf("DeleteTenant: %v", err)
	}
	if report.Processed != 8 {
		t.Errorf("expected 8 deleted documents, got %d", report.Processed)
	}
	stats, _ := testStore.Stats(ctx, tenant)
	if stats.Documents != 0 {
		t.Errorf("expected empty tenant, got %s", stats)
	}
	stats, _ = testStore.Stats(ctx, neighbour)
	if stats.Classes != 1 {
		t.Errorf("expected neighbour untouched, got %s", stats)
	}
}

// --- Import ---

func TestImport_Idempotent(t *testing.T) {
	ctx := context.Background()
	tenant := newTenant()
	entries := []store.ImportEntry{
		{Text: "win a prize", Classes: []string{"spam", "promo"}},
		{Text: "meeting at noon", Classes: []string{"work"}},
		{Text: "claim your prize", Classes: []string{"spam"}},
	}

	first, err := testStore.Import(ctx, tenant, entries)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if first.Failed != 0 {
		t.Fatalf("expected no failures, got %d", first.Failed)
	}

	second, err := testStore.Import(ctx, tenant, entries)
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	for _, res := range second.Results {
		if res.Created || res.CreatedClasses() != 0 {
			t.Errorf("expected nothing new for %q", res.Text)
		}
	}

	stats, _ := testStore.Stats(ctx, tenant)
	if stats.Classes != 3 || stats.Texts != 3 {
		t.Errorf("unexpected stats after re-import: %s", stats)
	}
}
