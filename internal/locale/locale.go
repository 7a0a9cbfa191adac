// Package locale serves the operator-facing string tables.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLang is the table every other table is checked against.
const DefaultLang = "en"

//go:embed tables/*.yaml
var tables embed.FS

// Table is one language's strings.
type Table struct {
	Lang    string            `yaml:"lang" json:"lang"`
	Name    string            `yaml:"name" json:"name"`
	Strings map[string]string `yaml:"strings" json:"strings"`
}

// Catalog holds every loaded table.
type Catalog struct {
	tables   map[string]*Table
	fallback string
}

// Load parses the embedded tables. Every table must define the same keys as
// the default table.
func Load(fallback string) (*Catalog, error) {
	files, err := fs.Glob(tables, "tables/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("listing locale tables: %w", err)
	}

	c := &Catalog{tables: make(map[string]*Table, len(files))}
	for _, f := range files {
		data, err := tables.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}

		var t Table
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f, err)
		}
		if want := strings.TrimSuffix(path.Base(f), ".yaml"); t.Lang != want {
			return nil, fmt.Errorf("%s declares lang %q", f, t.Lang)
		}
		c.tables[t.Lang] = &t
	}

	base, ok := c.tables[DefaultLang]
	if !ok {
		return nil, fmt.Errorf("missing %s locale table", DefaultLang)
	}
	for lang, t := range c.tables {
		for key := range base.Strings {
			if _, ok := t.Strings[key]; !ok {
				return nil, fmt.Errorf("locale %s is missing key %q", lang, key)
			}
		}
	}

	c.fallback = DefaultLang
	if _, ok := c.tables[fallback]; ok {
		c.fallback = fallback
	}
	return c, nil
}

// Languages returns the available language codes, sorted.
func (c *Catalog) Languages() []string {
	langs := make([]string, 0, len(c.tables))
	for lang := range c.tables {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Table returns the table for lang, or false.
func (c *Catalog) Table(lang string) (*Table, bool) {
	t, ok := c.tables[lang]
	return t, ok
}

// Message resolves key in lang, falling back to the default table and then
// the key itself. Placeholders like {ceiling} are filled from args pairs.
func (c *Catalog) Message(lang, key string, args ...string) string {
	msg, ok := c.lookup(lang, key)
	if !ok {
		msg, ok = c.lookup(c.fallback, key)
	}
	if !ok {
		msg = key
	}
	if len(args) == 0 {
		return msg
	}

	oldnew := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		oldnew = append(oldnew, "{"+args[i]+"}", args[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(msg)
}

func (c *Catalog) lookup(lang, key string) (string, bool) {
	t, ok := c.tables[lang]
	if !ok {
		return "", false
	}
	msg, ok := t.Strings[key]
	return msg, ok
}

// Negotiate picks a language from an explicit choice, then the
// Accept-Language header, then the catalog fallback.
func (c *Catalog) Negotiate(explicit, acceptLanguage string) string {
	if lang, ok := c.match(explicit); ok {
		return lang
	}
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag, _, _ := strings.Cut(part, ";")
		if lang, ok := c.match(tag); ok {
			return lang
		}
	}
	return c.fallback
}

func (c *Catalog) match(tag string) (string, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return "", false
	}
	primary, _, _ := strings.Cut(tag, "-")
	if _, ok := c.tables[primary]; ok {
		return primary, true
	}
	return "", false
}
