// Package intent implements keyword-based intent classification and canned
// reply selection for the chat widget.
//
// A Catalog is built once at startup, either from the embedded storefront
// content or from a YAML file, and is read-only afterwards.
package intent

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	_ "embed"

	"github.com/BTreeMap/ChatAgent/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// IntentSpec is the authoring form of one intent.
type IntentSpec struct {
	ID       models.IntentID `yaml:"id"`
	Keywords []string        `yaml:"keywords"`
	Replies  []string        `yaml:"replies"`
}

// QuickActionSpec is the authoring form of one quick-action shortcut.
type QuickActionSpec struct {
	ID     string          `yaml:"id"`
	Label  string          `yaml:"label"`
	Intent models.IntentID `yaml:"intent"`
}

// File mirrors the on-disk catalog document.
type File struct {
	Intents        []IntentSpec      `yaml:"intents"`
	DefaultReplies []string          `yaml:"default_replies"`
	QuickActions   []QuickActionSpec `yaml:"quick_actions"`
}

// Set bundles a validated catalog with the quick actions declared alongside it.
type Set struct {
	Catalog      *Catalog
	QuickActions *Dispatcher
}

type entry struct {
	keywords []string
	replies  []string
}

// Catalog maps intents to keywords and reply pools, in scan order.
type Catalog struct {
	order    []models.IntentID
	entries  map[models.IntentID]entry
	defaults []string
}

// NewCatalog validates specs and builds a Catalog. The order of specs is the
// scan order used by the classifier. All validation failures are reported
// together.
func NewCatalog(specs []IntentSpec, defaultReplies []string) (*Catalog, error) {
	slog.Debug("NewCatalog invoked", "intents", len(specs), "default_replies", len(defaultReplies))

	var errs []error
	c := &Catalog{
		order:    make([]models.IntentID, 0, len(specs)),
		entries:  make(map[models.IntentID]entry, len(specs)),
		defaults: slices.Clone(defaultReplies),
	}

	if len(defaultReplies) == 0 {
		errs = append(errs, models.ErrEmptyDefaultPool)
	}

	for i, spec := range specs {
		id := models.IntentID(strings.TrimSpace(string(spec.ID)))
		switch {
		case id == "":
			errs = append(errs, fmt.Errorf("intent #%d: %w", i+1, models.ErrEmptyIntentID))
			continue
		case id == models.IntentUnmatched:
			errs = append(errs, fmt.Errorf("intent %q: %w", id, models.ErrReservedIntent))
			continue
		}
		if _, dup := c.entries[id]; dup {
			errs = append(errs, fmt.Errorf("intent %q: %w", id, models.ErrDuplicateIntent))
			continue
		}
		if len(spec.Replies) == 0 {
			errs = append(errs, fmt.Errorf("intent %q: %w", id, models.ErrEmptyReplyPool))
		}

		keywords := make([]string, 0, len(spec.Keywords))
		for _, kw := range spec.Keywords {
			kw = strings.ToLower(kw)
			if strings.TrimSpace(kw) == "" {
				errs = append(errs, fmt.Errorf("intent %q: %w", id, models.ErrEmptyKeyword))
				continue
			}
			keywords = append(keywords, kw)
		}

		c.order = append(c.order, id)
		c.entries[id] = entry{keywords: keywords, replies: slices.Clone(spec.Replies)}
	}

	if err := errors.Join(errs...); err != nil {
		slog.Error("NewCatalog validation failed", "error", err)
		return nil, fmt.Errorf("catalog: %w", err)
	}

	slog.Debug("NewCatalog succeeded", "scan_order", c.order)
	return c, nil
}

// Lookup returns the keywords and reply pool for id. For IntentUnmatched it
// returns no keywords and the default pool.
func (c *Catalog) Lookup(id models.IntentID) (keywords []string, replies []string, ok bool) {
	if id == models.IntentUnmatched {
		return nil, slices.Clone(c.defaults), true
	}
	e, ok := c.entries[id]
	if !ok {
		return nil, nil, false
	}
	return slices.Clone(e.keywords), slices.Clone(e.replies), true
}

// ScanOrder returns the intents in the order the classifier tries them.
func (c *Catalog) ScanOrder() []models.IntentID {
	return slices.Clone(c.order)
}

// DefaultReplies returns the fallback pool used for unmatched input.
func (c *Catalog) DefaultReplies() []string {
	return slices.Clone(c.defaults)
}

// Has reports whether id is a keyworded intent or IntentUnmatched.
func (c *Catalog) Has(id models.IntentID) bool {
	if id == models.IntentUnmatched {
		return true
	}
	_, ok := c.entries[id]
	return ok
}

// pool returns the replies to draw from without copying. Unknown ids fall
// back to the default pool.
func (c *Catalog) pool(id models.IntentID) []string {
	if e, ok := c.entries[id]; ok {
		return e.replies
	}
	return c.defaults
}

// Default returns the built-in storefront catalog and quick actions.
func Default() (*Set, error) {
	set, err := LoadFromReader(bytes.NewReader(defaultCatalogYAML))
	if err != nil {
		return nil, fmt.Errorf("intent: built-in catalog: %w", err)
	}
	return set, nil
}

// Load reads the YAML catalog at path and returns a validated Set.
func Load(path string) (*Set, error) {
	slog.Debug("intent.Load invoked", "path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("intent: open %q: %w", path, err)
	}
	defer f.Close()

	set, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("intent: parse %q: %w", path, err)
	}
	slog.Info("Loaded intent catalog", "path", path, "intents", len(set.Catalog.order), "quick_actions", len(set.QuickActions.actions))
	return set, nil
}

// LoadFromReader decodes a YAML catalog from r and validates it.
func LoadFromReader(r io.Reader) (*Set, error) {
	var doc File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return doc.Build()
}

// Build validates the document and constructs the catalog and dispatcher.
func (f File) Build() (*Set, error) {
	catalog, err := NewCatalog(f.Intents, f.DefaultReplies)
	if err != nil {
		return nil, err
	}
	dispatcher, err := NewDispatcher(catalog, f.QuickActions)
	if err != nil {
		return nil, err
	}
	return &Set{Catalog: catalog, QuickActions: dispatcher}, nil
}
