package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDir is where named configurations are looked up.
const DefaultDir = "/etc/nagios-snmp.d"

var extensions = []string{".json", ".yaml", ".yml"}

// Load reads and parses the configuration file at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// Resolve turns a configuration name into a file path. A name that already
// looks like a path (it has a directory or an extension) is returned as is;
// otherwise <dir>/<name>.json, .yaml and .yml are tried in that order.
func Resolve(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("configuration name is empty")
	}
	if strings.ContainsRune(name, filepath.Separator) || filepath.Ext(name) != "" {
		return name, nil
	}
	for _, ext := range extensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("no configuration %q in %s", name, dir)
}

// List returns the names of the configurations available in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read config directory: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isConfigExt(ext) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func isConfigExt(ext string) bool {
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
