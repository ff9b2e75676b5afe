// Package config loads module configuration: module metadata YAML merged
// with a run-supplied override string.
package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-annot/internal/schema"
)

// Recognized configuration keys.
const (
	KeyName          = "name"
	KeyTitle         = "title"
	KeyVersion       = "version"
	KeyType          = "type"
	KeyLevel         = "level"
	KeyInputColumns  = "input_columns"
	KeyRequires      = "requires"
	KeyOutputColumns = "output_columns"
)

var recognized = map[string]bool{
	KeyName: true, KeyTitle: true, KeyVersion: true, KeyType: true, KeyLevel: true,
	KeyInputColumns: true, KeyRequires: true, KeyOutputColumns: true,
}

// ModuleConf is the resolved configuration of one annotation module.
type ModuleConf struct {
	Name          string
	Title         string
	Version       string
	Type          string
	Level         schema.Level
	InputColumns  []string
	Requires      []string
	OutputColumns []schema.ColumnDef
	// Options holds every unrecognized top-level key. Keys are lower-cased.
	Options map[string]Value
}

// Load reads the module metadata file at path and merges overrides on top.
// The module name defaults to the file name without its extension.
func Load(path, overrides string) (*ModuleConf, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read module config %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return resolve(v, name, overrides)
}

// FromMap builds a module configuration from an in-memory metadata mapping,
// as used by built-in modules.
func FromMap(name string, meta map[string]any, overrides string) (*ModuleConf, error) {
	v := viper.New()
	if err := v.MergeConfigMap(meta); err != nil {
		return nil, fmt.Errorf("merge module metadata: %w", err)
	}
	return resolve(v, name, overrides)
}

func resolve(v *viper.Viper, name, overrides string) (*ModuleConf, error) {
	ov, err := ParseOverrides(overrides)
	if err != nil {
		return nil, err
	}
	if len(ov) > 0 {
		if err := v.MergeConfigMap(ov); err != nil {
			return nil, fmt.Errorf("merge overrides: %w", err)
		}
	}

	conf := &ModuleConf{
		Name:         name,
		Title:        v.GetString(KeyTitle),
		Version:      v.GetString(KeyVersion),
		Type:         v.GetString(KeyType),
		InputColumns: v.GetStringSlice(KeyInputColumns),
		Requires:     v.GetStringSlice(KeyRequires),
		Options:      make(map[string]Value),
	}
	if s := v.GetString(KeyLevel); s != "" {
		level, err := schema.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		conf.Level = level
	}
	if n := v.GetString(KeyName); n != "" {
		conf.Name = n
	}
	if !schema.ValidIdent(conf.Name) {
		return nil, fmt.Errorf("invalid module name %q", conf.Name)
	}
	if err := v.UnmarshalKey(KeyOutputColumns, &conf.OutputColumns); err != nil {
		return nil, fmt.Errorf("decode output columns: %w", err)
	}
	for i := range conf.OutputColumns {
		conf.OutputColumns[i].Index = i
		if conf.OutputColumns[i].Type == "" {
			conf.OutputColumns[i].Type = schema.TypeString
		}
	}

	settings := v.AllSettings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if recognized[k] {
			continue
		}
		val, err := ValueOf(settings[k])
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", k, err)
		}
		conf.Options[k] = val
	}
	return conf, nil
}

// ParseOverrides decodes a run-supplied override string. The string is a JSON
// object; single quotes are accepted in place of double quotes and the whole
// string may itself be quoted. An empty string yields no overrides.
func ParseOverrides(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return nil, nil
	}
	s = strings.ReplaceAll(s, "'", `"`)

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	return normalizeNumbers(raw).(map[string]any), nil
}

// normalizeNumbers turns json.Number into int64 or float64 so viper sees
// ordinary scalars.
func normalizeNumbers(x any) any {
	switch t := x.(type) {
	case map[string]any:
		for k, v := range t {
			t[k] = normalizeNumbers(v)
		}
		return t
	case []any:
		for i, v := range t {
			t[i] = normalizeNumbers(v)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return x
	}
}

// Column returns the output column named field, if declared.
func (c *ModuleConf) Column(field string) (schema.ColumnDef, bool) {
	for _, col := range c.OutputColumns {
		if col.Name == field {
			return col, true
		}
	}
	return schema.ColumnDef{}, false
}
