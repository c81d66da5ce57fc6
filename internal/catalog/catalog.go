// Package catalog holds the read-only registry of intervention templates.
package catalog

import (
	"fmt"
	"sort"

	"github.com/quantumlife/focuscoach/internal/core"
)

// Catalog is an immutable, validated set of templates with exactly one default.
type Catalog struct {
	templates []core.InterventionTemplate
	byID      map[core.TemplateID]int
	def       int
}

// New validates templates and builds a catalog. The input slice is copied.
func New(templates []core.InterventionTemplate) (*Catalog, error) {
	if len(templates) == 0 {
		return nil, &core.CatalogConfigurationError{Reason: "catalog is empty"}
	}

	c := &Catalog{
		templates: make([]core.InterventionTemplate, 0, len(templates)),
		byID:      make(map[core.TemplateID]int, len(templates)),
		def:       -1,
	}

	for _, t := range templates {
		if err := validateTemplate(t); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, &core.CatalogConfigurationError{TemplateID: t.ID, Reason: "duplicate template id"}
		}
		if t.Default {
			if c.def >= 0 {
				return nil, &core.CatalogConfigurationError{TemplateID: t.ID, Reason: "more than one default template"}
			}
			c.def = len(c.templates)
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, cloneTemplate(t))
	}

	if c.def < 0 {
		return nil, &core.CatalogConfigurationError{Reason: "no default template"}
	}
	return c, nil
}

func validateTemplate(t core.InterventionTemplate) error {
	fail := func(format string, args ...interface{}) error {
		return &core.CatalogConfigurationError{TemplateID: t.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if t.ID == "" {
		return &core.CatalogConfigurationError{Reason: "template without id"}
	}
	if t.Category == "" {
		return fail("missing category")
	}
	if len(t.Actions) == 0 {
		return fail("no actions")
	}
	for i, a := range t.Actions {
		if a.Text == "" {
			return fail("action %d has no text", i)
		}
		if a.Duration <= 0 {
			return fail("action %d has non-positive duration", i)
		}
		if a.Priority < 1 {
			return fail("action %d has priority %d, want >= 1", i, a.Priority)
		}
	}
	b := t.LoadBand
	if b.Min < 0 || b.Max > 1 || b.Min > b.Max {
		return fail("invalid load band [%v, %v]", b.Min, b.Max)
	}
	for _, m := range t.Motivations {
		if _, err := core.ParseMotivationTrigger(string(m)); err != nil {
			return fail("%v", err)
		}
	}
	if t.FollowUp.After < 0 {
		return fail("negative follow-up delay")
	}
	return nil
}

func cloneTemplate(t core.InterventionTemplate) core.InterventionTemplate {
	out := t
	out.Triggers = append([]string(nil), t.Triggers...)
	out.Motivations = append([]core.MotivationTrigger(nil), t.Motivations...)
	out.Actions = append([]core.ActionSkeleton(nil), t.Actions...)
	out.SuccessMetrics = append([]string(nil), t.SuccessMetrics...)
	return out
}

// Get returns the template with the given id.
func (c *Catalog) Get(id core.TemplateID) (*core.InterventionTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	t := c.templates[i]
	return &t, true
}

// Default returns the fallback template.
func (c *Catalog) Default() *core.InterventionTemplate {
	t := c.templates[c.def]
	return &t
}

// Templates returns copies of all templates in registration order.
func (c *Catalog) Templates() []core.InterventionTemplate {
	out := make([]core.InterventionTemplate, len(c.templates))
	for i, t := range c.templates {
		out[i] = cloneTemplate(t)
	}
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Categories returns the distinct template categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range c.templates {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}
