package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Component property ids the page binds to.
const (
	InputStateDropdown  = "state_dropdown.value"
	InputMetricDropdown = "metric_dropdown.value"
	OutputMapFigure     = "map_fig.figure"
)

var (
	// ErrNoHandler is returned for an (input, output) pair nobody registered.
	ErrNoHandler = eris.New("dashboard: no handler for event")
	// ErrInvalidSelection is returned when a dropdown value is neither a
	// string, a list of strings, nor null.
	ErrInvalidSelection = eris.New("dashboard: invalid selection")
)

// Event is a change of one input property, asking for one output property.
type Event struct {
	Input  string          `json:"input" validate:"required"`
	Output string          `json:"output" validate:"required"`
	Value  json.RawMessage `json:"value"`
}

// EventKey identifies a handler in the dispatch table.
type EventKey struct {
	Input  string
	Output string
}

func (k EventKey) String() string {
	return k.Input + "->" + k.Output
}

// Handler computes an output value from an input value. It runs with the
// session held in the Recomputing state.
type Handler func(ctx context.Context, s *Session, value json.RawMessage) (any, error)

// Dispatcher maps (input, output) pairs to handlers.
type Dispatcher struct {
	handlers map[EventKey]Handler
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKey]Handler)}
}

// Register binds h to the pair. Each pair has at most one handler.
func (d *Dispatcher) Register(input, output string, h Handler) error {
	key := EventKey{Input: input, Output: output}
	if _, dup := d.handlers[key]; dup {
		return eris.Errorf("dashboard: handler for %s already registered", key)
	}
	d.handlers[key] = h
	return nil
}

// Keys lists the registered pairs.
func (d *Dispatcher) Keys() []EventKey {
	keys := make([]EventKey, 0, len(d.handlers))
	for k := range d.handlers {
		keys = append(keys, k)
	}
	return keys
}

// Dispatch runs the handler for ev. Events on one session run one at a time.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, ev Event) (any, error) {
	key := EventKey{Input: ev.Input, Output: ev.Output}
	h, ok := d.handlers[key]
	if !ok {
		return nil, eris.Wrapf(ErrNoHandler, "%s", key)
	}

	s.begin()
	defer s.end()
	return h(ctx, s, ev.Value)
}

// NormalizeSelection turns a dropdown value into a list of names. A single
// string becomes a one-element list, null or "" an empty one. Duplicates are
// dropped, first occurrence kept.
func NormalizeSelection(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []string{}, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return []string{}, nil
		}
		return []string{single}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, eris.Wrapf(ErrInvalidSelection, "%s", truncate(trimmed, 64))
	}
	seen := make(map[string]bool, len(many))
	out := make([]string, 0, len(many))
	for _, name := range many {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
