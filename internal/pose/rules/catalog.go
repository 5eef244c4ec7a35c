// Package rules holds the exercise rule catalog and the frame evaluator.
//
// Each rule is a pure function of one frame's landmark set. Rules declare
// the joints they read so the evaluator can fail closed before calling them.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/banshee-data/pose.report/internal/pose"
)

// Category groups exercises by the muscle group they train.
type Category string

const (
	CategoryArms Category = "arms"
	CategoryBack Category = "back"
	CategoryLegs Category = "legs"
)

// Categories lists the categories in display order.
var Categories = []Category{CategoryArms, CategoryBack, CategoryLegs}

// Func classifies a single frame.
type Func func(s *pose.LandmarkSet) pose.Verdict

// Rule is one catalog entry. A Rule with a nil Eval is listed under its
// category but evaluates as unrecognized.
type Rule struct {
	Name     string
	Display  string
	Category Category
	Aliases  []string
	Joints   []pose.Joint
	Eval     Func
}

// Catalog is a keyed registry of exercise rules. It is safe for concurrent
// use; registration normally happens once at startup.
type Catalog struct {
	mu      sync.RWMutex
	rules   map[string]*Rule
	aliases map[string]string
	order   []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		rules:   make(map[string]*Rule),
		aliases: make(map[string]string),
	}
}

// Normalize folds an exercise name to its lookup key: lower case, with
// spaces and underscores replaced by hyphens.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "-", "_", "-").Replace(name)
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	return name
}

// Register adds r to the catalog. Names and aliases must be unique.
func (c *Catalog) Register(r Rule) error {
	key := Normalize(r.Name)
	if key == "" {
		return fmt.Errorf("rule has empty name")
	}
	if r.Display == "" {
		r.Display = r.Name
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken(key) {
		return fmt.Errorf("exercise %q already registered", r.Name)
	}
	for _, a := range r.Aliases {
		if ak := Normalize(a); ak != key && c.taken(ak) {
			return fmt.Errorf("alias %q of %q already registered", a, r.Name)
		}
	}
	r.Name = key
	c.rules[key] = &r
	for _, a := range r.Aliases {
		if ak := Normalize(a); ak != key {
			c.aliases[ak] = key
		}
	}
	c.order = append(c.order, key)
	return nil
}

func (c *Catalog) taken(key string) bool {
	_, rule := c.rules[key]
	_, alias := c.aliases[key]
	return rule || alias
}

// MustRegister is Register for static tables.
func (c *Catalog) MustRegister(r Rule) {
	if err := c.Register(r); err != nil {
		panic(err)
	}
}

// Lookup resolves a name or alias to its rule.
func (c *Catalog) Lookup(name string) (Rule, bool) {
	key := Normalize(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if canon, ok := c.aliases[key]; ok {
		key = canon
	}
	r, ok := c.rules[key]
	if !ok {
		return Rule{}, false
	}
	return *r, true
}

// Names returns canonical exercise names in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Listing is one category with its exercises.
type Listing struct {
	Category  Category `json:"category"`
	Exercises []Entry  `json:"exercises"`
}

// Entry describes an exercise for menus and the HTTP API.
type Entry struct {
	Name      string `json:"name"`
	Display   string `json:"display"`
	Evaluable bool   `json:"evaluable"`
}

// Listings groups the catalog by category. Categories without entries are
// omitted; unknown categories sort after the built-in ones.
func (c *Catalog) Listings() []Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byCat := make(map[Category][]Entry)
	for _, key := range c.order {
		r := c.rules[key]
		byCat[r.Category] = append(byCat[r.Category], Entry{Name: r.Name, Display: r.Display, Evaluable: r.Eval != nil})
	}
	cats := append([]Category(nil), Categories...)
	var extra []Category
	for cat := range byCat {
		if !knownCategory(cat) {
			extra = append(extra, cat)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	cats = append(cats, extra...)

	var out []Listing
	for _, cat := range cats {
		if len(byCat[cat]) == 0 {
			continue
		}
		out = append(out, Listing{Category: cat, Exercises: byCat[cat]})
	}
	return out
}

func knownCategory(c Category) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = NewCatalog()
		for _, table := range [][]Rule{armRules(), backRules(), legRules()} {
			for _, r := range table {
				defaultCatalog.MustRegister(r)
			}
		}
	})
	return defaultCatalog
}

// angle is pose.Angle over joint identifiers.
func angle(s *pose.LandmarkSet, a, b, c pose.Joint) float64 {
	return pose.Angle(s.At(a), s.At(b), s.At(c))
}

// within reports lo <= v <= hi.
func within(v, lo, hi float64) bool { return v >= lo && v <= hi }
