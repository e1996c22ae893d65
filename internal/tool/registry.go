package tool

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
	"github.com/akindolabs/akindo/internal/state"
)

type ChangeType string

const (
	ChangeRegistered   ChangeType = "registered"
	ChangeUpdated      ChangeType = "updated"
	ChangeUnregistered ChangeType = "unregistered"
)

type ChangeEvent struct {
	Type   ChangeType
	ToolID string
	At     time.Time
}

type Listener func(ChangeEvent)

// Entry pairs a definition with its compiled schema and implementation.
type Entry struct {
	Definition Definition
	Schema     *Schema
	Impl       Implementation
}

// Filter narrows registry listings.
type Filter struct {
	Category string
	Mode     state.Mode
}

// Registry holds action definitions and implementations. Writers mutate
// under a lock and publish a fresh snapshot map; readers load the snapshot
// without locking, so an in-flight turn sees either the old or the new
// registry, never a partial update.
type Registry struct {
	mu        sync.Mutex
	snapshot  atomic.Pointer[map[string]*Entry]
	listeners []Listener
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.snapshot.Store(&map[string]*Entry{})
	return r
}

func (r *Registry) Register(def Definition, impl Implementation) error {
	if def.ID == "" {
		return errors.Validation("INVALID_TOOL_DEFINITION", "tool id is required")
	}
	if impl == nil {
		return errors.Validation("INVALID_TOOL_DEFINITION", "tool implementation is required")
	}

	r.mu.Lock()
	next := r.copySnapshot()
	_, exists := next[def.ID]
	next[def.ID] = &Entry{
		Definition: def,
		Schema:     BuildSchema(def.Params),
		Impl:       impl,
	}
	r.snapshot.Store(&next)
	r.mu.Unlock()

	change := ChangeRegistered
	if exists {
		change = ChangeUpdated
	}
	r.notify(ChangeEvent{Type: change, ToolID: def.ID, At: time.Now().UTC()})
	return nil
}

// Patch describes a partial definition update; nil fields are untouched.
type Patch struct {
	Name        *string
	Description *string
	Category    *string
	Modes       []state.Mode
	Params      map[string]ParamSpec
	RateLimit   *RateLimit
}

func (r *Registry) Update(id string, patch Patch) error {
	r.mu.Lock()
	next := r.copySnapshot()
	entry, ok := next[id]
	if !ok {
		r.mu.Unlock()
		return errors.NotFound("TOOL_NOT_FOUND", "tool not registered: "+id)
	}

	def := entry.Definition
	if patch.Name != nil {
		def.Name = *patch.Name
	}
	if patch.Description != nil {
		def.Description = *patch.Description
	}
	if patch.Category != nil {
		def.Category = *patch.Category
	}
	if patch.Modes != nil {
		def.Modes = patch.Modes
	}
	if patch.Params != nil {
		def.Params = patch.Params
	}
	if patch.RateLimit != nil {
		def.RateLimit = patch.RateLimit
	}

	next[id] = &Entry{Definition: def, Schema: BuildSchema(def.Params), Impl: entry.Impl}
	r.snapshot.Store(&next)
	r.mu.Unlock()

	r.notify(ChangeEvent{Type: ChangeUpdated, ToolID: id, At: time.Now().UTC()})
	return nil
}

func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	next := r.copySnapshot()
	if _, ok := next[id]; !ok {
		r.mu.Unlock()
		return errors.NotFound("TOOL_NOT_FOUND", "tool not registered: "+id)
	}
	delete(next, id)
	r.snapshot.Store(&next)
	r.mu.Unlock()

	r.notify(ChangeEvent{Type: ChangeUnregistered, ToolID: id, At: time.Now().UTC()})
	return nil
}

func (r *Registry) Get(id string) (*Entry, bool) {
	entry, ok := (*r.snapshot.Load())[id]
	return entry, ok
}

func (r *Registry) List() []*Entry {
	snap := (*r.snapshot.Load())
	out := make([]*Entry, 0, len(snap))
	for _, e := range snap {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Definition.ID < out[j].Definition.ID
	})
	return out
}

func (r *Registry) ListBy(filter Filter) []*Entry {
	var out []*Entry
	for _, e := range r.List() {
		if filter.Category != "" && e.Definition.Category != filter.Category {
			continue
		}
		if filter.Mode != "" && !e.Definition.SupportsMode(filter.Mode) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (r *Registry) ForMode(mode state.Mode) []*Entry {
	return r.ListBy(Filter{Mode: mode})
}

func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

func (r *Registry) notify(evt ChangeEvent) {
	r.mu.Lock()
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	logger.Component("tool_registry").Debug("Registry changed", "type", evt.Type, "tool", evt.ToolID)
	for _, l := range listeners {
		l(evt)
	}
}

func (r *Registry) copySnapshot() map[string]*Entry {
	current := (*r.snapshot.Load())
	next := make(map[string]*Entry, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	return next
}

type configFile struct {
	Tools []Definition `yaml:"tools"`
}

// LoadFromConfig registers declarative definitions from YAML, binding each
// to its implementation by id. Unmatched definitions are an error so a
// deploy cannot silently ship an inert tool.
func (r *Registry) LoadFromConfig(data []byte, impls map[string]Implementation) error {
	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return errors.Validation("INVALID_TOOL_CONFIG", "parse tool config").WithCause(err)
	}

	for _, def := range cf.Tools {
		impl, ok := impls[def.ID]
		if !ok {
			return errors.Validation("MISSING_TOOL_IMPLEMENTATION", "no implementation for tool "+def.ID)
		}
		if err := r.Register(def, impl); err != nil {
			return err
		}
	}
	return nil
}
