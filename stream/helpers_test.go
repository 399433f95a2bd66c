package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestGetStringAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"name":    events.NewStringAttribute("test-value"),
		"empty":   events.NewStringAttribute(""),
		"unicode": events.NewStringAttribute("日本語テスト"),
		"version": events.NewNumberAttribute("42"),
		"classes": events.NewStringSetAttribute([]string{"a", "b"}),
	}

	tests := []struct {
		name  string
		image map[string]events.DynamoDBAttributeValue
		key   string
		want  string
	}{
		{"existing string", image, "name", "test-value"},
		{"empty string", image, "empty", ""},
		{"unicode", image, "unicode", "日本語テスト"},
		{"number attribute", image, "version", ""},
		{"string set attribute", image, "classes", ""},
		{"missing key", image, "other", ""},
		{"empty image", map[string]events.DynamoDBAttributeValue{}, "name", ""},
		{"nil image", nil, "name", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getStringAttr(tt.image, tt.key); got != tt.want {
				t.Errorf("getStringAttr(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestDocumentID(t *testing.T) {
	keys := map[string]events.DynamoDBAttributeValue{
		"_id": events.NewStringAttribute("c1"),
	}
	if got := documentID(keys); got != "c1" {
		t.Errorf("expected c1, got %q", got)
	}
	if got := documentID(nil); got != "" {
		t.Errorf("expected empty id for nil keys, got %q", got)
	}
}

func BenchmarkGetStringAttr(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"tenant": events.NewStringAttribute("tenant-12345678-1234-1234-1234-123456789012"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		getStringAttr(image, "tenant")
	}
}
