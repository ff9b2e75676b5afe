// Package schema defines column metadata shared by the exchange artifacts and
// the per-run relational store.
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// Level is the granularity a table or module works at.
type Level string

const (
	LevelVariant Level = "variant"
	LevelGene    Level = "gene"
)

// Levels lists the store levels in introspection order.
var Levels = []Level{LevelVariant, LevelGene}

// Valid reports whether l names a known level.
func (l Level) Valid() bool {
	return l == LevelVariant || l == LevelGene
}

// HeaderTable returns the level's column metadata table name.
func (l Level) HeaderTable() string { return string(l) + "_header" }

// AnnotatorTable returns the level's annotator registry table name.
func (l Level) AnnotatorTable() string { return string(l) + "_annotator" }

// ParseLevel converts s into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// Type is the scalar type of a column.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
)

// Valid reports whether t is a known scalar type.
func (t Type) Valid() bool {
	return t == TypeString || t == TypeInt || t == TypeFloat
}

// Category is the categorical classification of a column.
type Category string

const (
	CategoryNone   Category = ""
	CategorySingle Category = "single"
	CategoryMulti  Category = "multi"
)

// Categorical reports whether values of the column are harvested into
// Categories at the end of a post-aggregation run.
func (c Category) Categorical() bool {
	return c == CategorySingle || c == CategoryMulti
}

// CategorySeparator splits multi-valued category cells.
const CategorySeparator = ";"

// TableHeaderDef names one column of a table-shaped value.
type TableHeaderDef struct {
	Name  string `json:"name" mapstructure:"name"`
	Title string `json:"title,omitempty" mapstructure:"title"`
	Type  Type   `json:"type,omitempty" mapstructure:"type"`
}

// ColumnDef describes one column of an exchange stream or store table.
type ColumnDef struct {
	Index       int              `json:"index" mapstructure:"-"`
	Name        string           `json:"name" mapstructure:"name"`
	Title       string           `json:"title" mapstructure:"title"`
	Type        Type             `json:"type" mapstructure:"type"`
	Category    Category         `json:"category" mapstructure:"category"`
	Categories  []string         `json:"categories" mapstructure:"categories"`
	Description string           `json:"desc,omitempty" mapstructure:"desc"`
	Width       int              `json:"width,omitempty" mapstructure:"width"`
	Hidden      bool             `json:"hidden" mapstructure:"hidden"`
	Table       bool             `json:"table,omitempty" mapstructure:"table"`
	TableHeader []TableHeaderDef `json:"table_header,omitempty" mapstructure:"table_header"`
}

// TableHeaderNames returns the ordered names of a table column's header.
func (c ColumnDef) TableHeaderNames() []string {
	names := make([]string, len(c.TableHeader))
	for i, h := range c.TableHeader {
		names[i] = h.Name
	}
	return names
}

// SetCategories stores a sorted, de-duplicated copy of cats.
func (c *ColumnDef) SetCategories(cats []string) {
	seen := make(map[string]bool, len(cats))
	out := make([]string, 0, len(cats))
	for _, cat := range cats {
		if !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	sort.Strings(out)
	c.Categories = out
}

// JSON returns the column definition's persisted JSON form.
func (c ColumnDef) JSON() (string, error) {
	if c.Categories == nil {
		c.Categories = []string{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal column %s: %w", c.Name, err)
	}
	return string(b), nil
}

// ParseColumnDef decodes a column definition persisted with JSON.
func ParseColumnDef(s string) (ColumnDef, error) {
	var c ColumnDef
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return ColumnDef{}, fmt.Errorf("unmarshal column definition: %w", err)
	}
	return c, nil
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s is safe to use as a table or column name.
func ValidIdent(s string) bool {
	return identRE.MatchString(s)
}

// NamespaceSep joins a module name and a field name.
const NamespaceSep = "__"

// Namespaced returns the store column name for a module's field.
func Namespaced(module, field string) string {
	return module + NamespaceSep + field
}

// SplitNamespaced splits "module__field" into its parts.
func SplitNamespaced(col string) (module, field string, ok bool) {
	module, field, ok = strings.Cut(col, NamespaceSep)
	if !ok || module == "" || field == "" {
		return "", col, false
	}
	return module, field, true
}
