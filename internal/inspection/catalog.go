package inspection

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/linewalk/internal/errors"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Style maps a style number to its model name
type Style struct {
	Code  string `yaml:"code" json:"code"`
	Model string `yaml:"model" json:"model"`
}

// Catalog is the reference data the form is filled from
type Catalog struct {
	Categories []string `yaml:"categories" json:"categories"`
	Styles     []Style  `yaml:"styles" json:"styles"`
	Defects    []string `yaml:"defects" json:"defects"` // defect vocabulary, in display order
	Lines      []string `yaml:"lines" json:"lines"`

	models map[string]string
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("inspection: embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path returns the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, errors.New(err).
			Component("inspection").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Context("operation", "load_catalog").
			Build()
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML and indexes it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.New(err).
			Component("inspection").
			Category(errors.CategoryConfiguration).
			Context("operation", "parse_catalog").
			Build()
	}
	if len(c.Defects) == 0 {
		return nil, errors.Newf("catalog has no defect types").
			Component("inspection").
			Category(errors.CategoryConfiguration).
			Build()
	}
	c.index()
	return &c, nil
}

func (c *Catalog) index() {
	c.models = make(map[string]string, len(c.Styles))
	for _, s := range c.Styles {
		c.models[s.Code] = s.Model
	}
}

// fold builds a new Caser per call; a Caser must not be shared between goroutines.
func (c *Catalog) fold(s string) string {
	return cases.Fold().String(s)
}

// ModelFor returns the model name of a style, or "" when the style is unknown
func (c *Catalog) ModelFor(style string) string {
	return c.models[style]
}

// SuggestStyles returns styles whose code contains query, ignoring case, sorted by code.
// An empty query returns nothing.
func (c *Catalog) SuggestStyles(query string) []Style {
	q := c.fold(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var out []Style
	for _, s := range c.Styles {
		if strings.Contains(c.fold(s.Code), q) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Style) int { return strings.Compare(a.Code, b.Code) })
	return out
}

// IsDefect reports whether tag is in the defect vocabulary
func (c *Catalog) IsDefect(tag string) bool {
	return slices.Contains(c.Defects, tag)
}

// FilterDefects returns the vocabulary entries containing query, ignoring case.
// An empty query returns the whole vocabulary.
func (c *Catalog) FilterDefects(query string) []string {
	q := c.fold(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(c.Defects)
	}
	var out []string
	for _, d := range c.Defects {
		if strings.Contains(c.fold(d), q) {
			out = append(out, d)
		}
	}
	return out
}

// OrderTags returns tags in vocabulary order, dropping unknown ones and duplicates.
func (c *Catalog) OrderTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, d := range c.Defects {
		if slices.Contains(tags, d) {
			out = append(out, d)
		}
	}
	return out
}
