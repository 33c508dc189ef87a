package intent

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/BTreeMap/ChatAgent/internal/models"
)

// QuickAction is a shortcut button that answers a fixed intent directly.
type QuickAction struct {
	ID     string
	Label  string
	Intent models.IntentID
}

// Dispatcher resolves quick-action identifiers to intents.
type Dispatcher struct {
	actions []QuickAction
	byID    map[string]QuickAction
}

// NewDispatcher validates specs against catalog. Every action must reference
// an intent the catalog knows; IntentUnmatched is allowed and means the
// default pool.
func NewDispatcher(catalog *Catalog, specs []QuickActionSpec) (*Dispatcher, error) {
	d := &Dispatcher{
		actions: make([]QuickAction, 0, len(specs)),
		byID:    make(map[string]QuickAction, len(specs)),
	}

	var errs []error
	for i, spec := range specs {
		id := strings.TrimSpace(spec.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("quick action #%d: %w", i+1, models.ErrEmptyQuickActionID))
			continue
		}
		if _, dup := d.byID[id]; dup {
			errs = append(errs, fmt.Errorf("quick action %q: %w", id, models.ErrDuplicateQuickAction))
			continue
		}
		if !catalog.Has(spec.Intent) {
			errs = append(errs, fmt.Errorf("quick action %q -> %q: %w", id, spec.Intent, models.ErrUnknownQuickActionIntent))
			continue
		}
		label := strings.TrimSpace(spec.Label)
		if label == "" {
			label = id
		}
		qa := QuickAction{ID: id, Label: label, Intent: spec.Intent}
		d.actions = append(d.actions, qa)
		d.byID[id] = qa
	}

	if err := errors.Join(errs...); err != nil {
		slog.Error("NewDispatcher validation failed", "error", err)
		return nil, fmt.Errorf("quick actions: %w", err)
	}
	return d, nil
}

// Resolve returns the action registered under id. Unknown ids are not an
// error: they resolve to an action labelled with the raw id that answers from
// the default pool, and ok is false.
func (d *Dispatcher) Resolve(id string) (QuickAction, bool) {
	if qa, ok := d.byID[id]; ok {
		return qa, true
	}
	slog.Warn("Dispatcher: unrecognized quick action, using default replies", "action", id)
	return QuickAction{ID: id, Label: id, Intent: models.IntentUnmatched}, false
}

// Actions lists the registered actions in declaration order.
func (d *Dispatcher) Actions() []QuickAction {
	return slices.Clone(d.actions)
}
