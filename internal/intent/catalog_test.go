package intent

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/BTreeMap/ChatAgent/internal/models"
)

func mustDefault(t *testing.T) *Set {
	t.Helper()
	set, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	return set
}

func TestDefaultCatalogScanOrder(t *testing.T) {
	set := mustDefault(t)
	want := []models.IntentID{
		models.IntentGreeting,
		models.IntentOrderStatus,
		models.IntentShipping,
		models.IntentReturns,
		models.IntentProductHelp,
		models.IntentPayment,
		models.IntentHours,
		models.IntentContact,
	}
	if got := set.Catalog.ScanOrder(); !slices.Equal(got, want) {
		t.Errorf("scan order mismatch\nexpected: %v\nactual:   %v", want, got)
	}
}

func TestDefaultCatalogPools(t *testing.T) {
	set := mustDefault(t)
	for _, id := range set.Catalog.ScanOrder() {
		keywords, replies, ok := set.Catalog.Lookup(id)
		if !ok {
			t.Fatalf("Lookup(%q) not found", id)
		}
		if len(replies) != 3 {
			t.Errorf("%s: expected 3 replies, got %d", id, len(replies))
		}
		if len(keywords) == 0 {
			t.Errorf("%s: expected keywords", id)
		}
	}

	_, defaults, ok := set.Catalog.Lookup(models.IntentUnmatched)
	if !ok || len(defaults) != 5 {
		t.Errorf("expected 5 default replies, got %d (ok=%v)", len(defaults), ok)
	}
	if !slices.Equal(defaults, set.Catalog.DefaultReplies()) {
		t.Error("Lookup(unmatched) should return the default pool")
	}
}

func TestCatalogLookupUnknown(t *testing.T) {
	set := mustDefault(t)
	if _, _, ok := set.Catalog.Lookup("weather"); ok {
		t.Error("expected unknown intent lookup to fail")
	}
	if set.Catalog.Has("weather") {
		t.Error("Has should be false for unknown intent")
	}
	if !set.Catalog.Has(models.IntentUnmatched) {
		t.Error("Has should be true for unmatched")
	}
}

func TestCatalogLookupReturnsCopies(t *testing.T) {
	set := mustDefault(t)
	_, replies, _ := set.Catalog.Lookup(models.IntentGreeting)
	replies[0] = "mutated"
	_, again, _ := set.Catalog.Lookup(models.IntentGreeting)
	if again[0] == "mutated" {
		t.Error("Lookup exposed internal reply slice")
	}
}

func TestNewCatalogLowercasesKeywords(t *testing.T) {
	c, err := NewCatalog([]IntentSpec{{ID: "greeting", Keywords: []string{"HeLLo"}, Replies: []string{"hi"}}}, []string{"?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keywords, _, _ := c.Lookup("greeting")
	if keywords[0] != "hello" {
		t.Errorf("expected lowercased keyword, got %q", keywords[0])
	}
}

func TestNewCatalogValidation(t *testing.T) {
	tests := []struct {
		name     string
		specs    []IntentSpec
		defaults []string
		wantErr  error
	}{
		{
			name:     "empty reply pool",
			specs:    []IntentSpec{{ID: "greeting", Keywords: []string{"hi"}}},
			defaults: []string{"?"},
			wantErr:  models.ErrEmptyReplyPool,
		},
		{
			name:    "empty default pool",
			specs:   []IntentSpec{{ID: "greeting", Keywords: []string{"hi"}, Replies: []string{"hello"}}},
			wantErr: models.ErrEmptyDefaultPool,
		},
		{
			name: "duplicate intent",
			specs: []IntentSpec{
				{ID: "greeting", Keywords: []string{"hi"}, Replies: []string{"hello"}},
				{ID: "greeting", Keywords: []string{"hey"}, Replies: []string{"hey"}},
			},
			defaults: []string{"?"},
			wantErr:  models.ErrDuplicateIntent,
		},
		{
			name:     "reserved intent",
			specs:    []IntentSpec{{ID: models.IntentUnmatched, Keywords: []string{"x"}, Replies: []string{"y"}}},
			defaults: []string{"?"},
			wantErr:  models.ErrReservedIntent,
		},
		{
			name:     "empty intent id",
			specs:    []IntentSpec{{ID: "  ", Keywords: []string{"x"}, Replies: []string{"y"}}},
			defaults: []string{"?"},
			wantErr:  models.ErrEmptyIntentID,
		},
		{
			name:     "blank keyword",
			specs:    []IntentSpec{{ID: "greeting", Keywords: []string{"hi", " "}, Replies: []string{"y"}}},
			defaults: []string{"?"},
			wantErr:  models.ErrEmptyKeyword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCatalog(tt.specs, tt.defaults)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if c != nil {
				t.Error("expected nil catalog on error")
			}
		})
	}
}

func TestNewCatalogReportsAllErrors(t *testing.T) {
	_, err := NewCatalog([]IntentSpec{
		{ID: "a", Keywords: []string{"a"}},
		{ID: "b", Keywords: []string{"b"}},
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, models.ErrEmptyReplyPool) || !errors.Is(err, models.ErrEmptyDefaultPool) {
		t.Errorf("expected joined errors, got %v", err)
	}
	if !strings.Contains(err.Error(), `"a"`) || !strings.Contains(err.Error(), `"b"`) {
		t.Errorf("expected both intents named, got %v", err)
	}
}

func TestLoadFromReader(t *testing.T) {
	doc := `
intents:
  - id: weather
    keywords: [rain, sun]
    replies: ["Bring an umbrella."]
  - id: greeting
    keywords: [hello]
    replies: ["Hi!"]
default_replies: ["Sorry?"]
quick_actions:
  - id: forecast
    label: Forecast
    intent: weather
  - id: fallback
    intent: unmatched
`
	set, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := set.Catalog.ScanOrder(); !slices.Equal(got, []models.IntentID{"weather", "greeting"}) {
		t.Errorf("unexpected scan order %v", got)
	}
	actions := set.QuickActions.Actions()
	if len(actions) != 2 {
		t.Fatalf("expected 2 quick actions, got %d", len(actions))
	}
	if actions[1].Label != "fallback" {
		t.Errorf("expected label to default to id, got %q", actions[1].Label)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	doc := `
intents: []
default_replies: ["?"]
greeting: hello
`
	if _, err := LoadFromReader(strings.NewReader(doc)); err == nil {
		t.Error("expected unknown field to be rejected")
	}
}

func TestLoadFromReaderEmptyPool(t *testing.T) {
	doc := `
intents:
  - id: greeting
    keywords: [hi]
    replies: []
default_replies: ["?"]
`
	_, err := LoadFromReader(strings.NewReader(doc))
	if !errors.Is(err, models.ErrEmptyReplyPool) {
		t.Errorf("expected ErrEmptyReplyPool, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, defaultCatalogYAML, 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	set, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Catalog.ScanOrder()) != 8 {
		t.Errorf("expected 8 intents, got %d", len(set.Catalog.ScanOrder()))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
