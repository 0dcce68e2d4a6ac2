// Package registry implements the shared component identifier registry for
// Step 2. It is the authority every agent consults before emitting an
// artifact that cites an identifier, and it is mutated concurrently by
// parallel agents, so all operations hold the lock. First register wins;
// later duplicates are recorded as errors, never overwritten.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"stpasec/internal/types"
)

// Violation is a non-fatal registry error. The offending artifact is
// dropped and the validator flags it later.
type Violation struct {
	Kind string // duplicate | undefined_source | undefined_target
	ID   string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("registry violation (%s): %s", v.Kind, v.ID)
}

// Entry is one registered component plus its reference edges.
type Entry struct {
	Component    types.Component
	References   []string // outgoing: ids this component references
	ReferencedBy []string // incoming back-edges
}

// Registry tracks component identifiers and cross-references for one
// Step 2 analysis.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	order      []string // registration order, for stable prompt context
	duplicates []string
	undefined  []string
	errors     []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a component under its identifier. Returns a *Violation
// with kind "duplicate" when the id is already taken; the existing entry
// is untouched.
func (r *Registry) Register(c types.Component) error {
	if !types.ValidIdentifier(c.Identifier) {
		r.mu.Lock()
		r.errors = append(r.errors, fmt.Sprintf("malformed identifier: %s", c.Identifier))
		r.mu.Unlock()
		return &Violation{Kind: "duplicate", ID: c.Identifier}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[c.Identifier]; exists {
		r.duplicates = append(r.duplicates, c.Identifier)
		r.errors = append(r.errors, fmt.Sprintf("duplicate registration: %s", c.Identifier))
		return &Violation{Kind: "duplicate", ID: c.Identifier}
	}
	r.entries[c.Identifier] = &Entry{Component: c}
	r.order = append(r.order, c.Identifier)
	return nil
}

// AddReference records a from -> to reference edge. Both endpoints must be
// registered; an unknown endpoint is accumulated as an undefined reference
// and returned as a *Violation.
func (r *Registry) AddReference(fromID, toID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	from, okFrom := r.entries[fromID]
	if !okFrom {
		r.undefined = append(r.undefined, fromID)
		return &Violation{Kind: "undefined_source", ID: fromID}
	}
	to, okTo := r.entries[toID]
	if !okTo {
		r.undefined = append(r.undefined, toID)
		return &Violation{Kind: "undefined_target", ID: toID}
	}
	from.References = append(from.References, toID)
	to.ReferencedBy = append(to.ReferencedBy, fromID)
	return nil
}

// Validate reports whether an identifier is registered.
func (r *Registry) Validate(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Get returns the component for an identifier.
func (r *Registry) Get(id string) (types.Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return types.Component{}, false
	}
	return e.Component, true
}

// ByKind returns all components of a kind in registration order.
func (r *Registry) ByKind(kind types.ComponentKind) []types.Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.Component
	for _, id := range r.order {
		if e := r.entries[id]; e.Component.Kind == kind {
			out = append(out, e.Component)
		}
	}
	return out
}

// All returns every registered component in registration order.
func (r *Registry) All() []types.Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Component, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].Component)
	}
	return out
}

// PromptContext renders the universe of legal identifiers for inclusion in
// agent prompts after the first Step 2 phase.
func (r *Registry) PromptContext() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Registered components (use ONLY these identifiers in references):\n")
	for _, id := range r.order {
		c := r.entries[id].Component
		b.WriteString(fmt.Sprintf("- %s [%s]: %s", c.Identifier, c.Kind, c.Name))
		if c.Description != "" {
			b.WriteString(" - " + c.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Report summarizes registry health for the validator.
type Report struct {
	Counts              map[types.ComponentKind]int `json:"counts"`
	UndefinedReferences []string                    `json:"undefined_references"`
	OrphanComponents    []string                    `json:"orphan_components"`
	Errors              []string                    `json:"errors"`
}

// Report computes counts, undefined references, and orphans. A component
// with zero references in either direction is an orphan, except controlled
// processes, which legitimately only receive actions recorded elsewhere.
func (r *Registry) Report() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep := Report{
		Counts:              make(map[types.ComponentKind]int),
		UndefinedReferences: dedupe(r.undefined),
		Errors:              append([]string(nil), r.errors...),
	}
	for _, id := range r.order {
		e := r.entries[id]
		rep.Counts[e.Component.Kind]++
		if e.Component.Kind == types.KindControlledProcess {
			continue
		}
		if len(e.References) == 0 && len(e.ReferencedBy) == 0 {
			rep.OrphanComponents = append(rep.OrphanComponents, id)
		}
	}
	sort.Strings(rep.OrphanComponents)
	return rep
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
