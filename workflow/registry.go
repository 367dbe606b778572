package workflow

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry errors.
var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrAlreadyRegistered = errors.New("workflow already registered")
	errEmptyWorkflowName = errors.New("workflow name is empty")
)

// Catalogue sources.
const (
	SourceBuiltin = "builtin"
	SourceFile    = "file"
	SourceUser    = "user"
)

// Entry describes a registered workflow. Order is the topological order
// computed at registration; graphs that fail validation keep the error
// instead and are still listed so callers can report them.
type Entry struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source"`
	Tasks       int       `json:"tasks"`
	Order       []string  `json:"order,omitempty"`
	Error       string    `json:"error,omitempty"`
	Registered  time.Time `json:"registered"`

	wf *Workflow
}

// RegisterOption annotates a catalogue entry.
type RegisterOption func(*Entry)

// Described sets the entry description.
func Described(text string) RegisterOption { return func(e *Entry) { e.Description = text } }

// FromSource records where the workflow came from. The default is SourceUser.
func FromSource(src string) RegisterOption { return func(e *Entry) { e.Source = src } }

// The process-wide catalogue shared by the CLI, the HTTP server and the
// workflow tool.
var (
	regMu   sync.RWMutex
	catalog = make(map[string]*Entry)
)

// Register adds wf to the catalogue under name.
func Register(name string, wf *Workflow, opts ...RegisterOption) error {
	if wf == nil {
		return errNilWorkflow
	}
	if name == "" {
		return errEmptyWorkflowName
	}
	e := &Entry{Name: name, Source: SourceUser, Tasks: len(wf.tasks), Registered: time.Now(), wf: wf}
	for _, o := range opts {
		o(e)
	}
	if order, err := wf.TopologicalOrder(); err != nil {
		e.Error = err.Error()
	} else {
		e.Order = order
	}

	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := catalog[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	catalog[name] = e
	return nil
}

// Get returns a registered workflow by name.
func Get(name string) (*Workflow, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	e, ok := catalog[name]
	if !ok {
		return nil, false
	}
	return e.wf, true
}

// Lookup is Get with an error that wraps ErrWorkflowNotFound.
func Lookup(name string) (*Workflow, error) {
	if wf, ok := Get(name); ok {
		return wf, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
}

// Unregister removes name and reports whether it was present.
func Unregister(name string) bool {
	regMu.Lock()
	defer regMu.Unlock()
	_, ok := catalog[name]
	delete(catalog, name)
	return ok
}

// List returns sorted workflow names.
func List() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(catalog))
	for k := range catalog {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Catalog returns copies of every entry sorted by name.
func Catalog() []Entry {
	regMu.RLock()
	out := make([]Entry, 0, len(catalog))
	for _, e := range catalog {
		c := *e
		c.Order = append([]string(nil), e.Order...)
		out = append(out, c)
	}
	regMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset empties the catalogue.
func Reset() {
	regMu.Lock()
	catalog = make(map[string]*Entry)
	regMu.Unlock()
}
