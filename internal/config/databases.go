package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// Database is one entry of the named-database registry file.
type Database struct {
	Type     string            `json:"type" yaml:"type"`
	Server   string            `json:"server,omitempty" yaml:"server,omitempty"`
	Host     string            `json:"host,omitempty" yaml:"host,omitempty"`
	Port     PortValue         `json:"port,omitempty" yaml:"port,omitempty"`
	Database string            `json:"database" yaml:"database"`
	User     string            `json:"user" yaml:"user"`
	Password string            `json:"password" yaml:"password"`
	Options  map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Address returns host, falling back to server.
func (d Database) Address() string {
	if d.Host != "" {
		return d.Host
	}
	return d.Server
}

// PortValue accepts a port written as a number or a string.
type PortValue string

func (p *PortValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PortValue(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("port: %w", err)
	}
	*p = PortValue(n.String())
	return nil
}

func (p *PortValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("port: expected a scalar at line %d", node.Line)
	}
	*p = PortValue(strings.TrimSpace(node.Value))
	return nil
}

// Databases is the loaded registry, keyed by name.
type Databases struct {
	path    string
	entries map[string]Database
}

// LoadDatabases reads the registry at path. Files ending in .yaml or .yml
// are parsed as YAML, everything else as JSON.
func LoadDatabases(path string) (*Databases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read database registry: %w", err)
	}

	entries := make(map[string]Database)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parse database registry %s: %w", path, err)
	}
	return &Databases{path: path, entries: entries}, nil
}

// NewDatabases builds a registry from entries.
func NewDatabases(entries map[string]Database) *Databases {
	if entries == nil {
		entries = make(map[string]Database)
	}
	return &Databases{entries: entries}
}

// Path returns the file the registry was loaded from.
func (d *Databases) Path() string { return d.path }

// Names returns the registered names in sorted order.
func (d *Databases) Names() []string {
	names := make([]string, 0, len(d.entries))
	for n := range d.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the entry for name.
func (d *Databases) Get(name string) (Database, bool) {
	db, ok := d.entries[name]
	return db, ok
}

// Types returns the distinct declared types in sorted order.
func (d *Databases) Types() []string {
	seen := make(map[string]bool)
	var out []string
	for _, db := range d.entries {
		t := strings.ToLower(db.Type)
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve returns the dialect and connection config for name. A missing port
// falls back to the dialect default.
func (d *Databases) Resolve(name string) (string, dialect.Config, error) {
	db, ok := d.entries[name]
	if !ok {
		return "", dialect.Config{}, fmt.Errorf("unknown database %q", name)
	}

	port := string(db.Port)
	if port == "" {
		if n, err := dialect.Normalize(db.Type); err == nil {
			port = strconv.Itoa(dialect.DefaultPort(n))
		}
	}
	return db.Type, dialect.Config{
		Host:     db.Address(),
		Port:     port,
		Database: db.Database,
		User:     db.User,
		Password: db.Password,
		Options:  db.Options,
	}, nil
}
