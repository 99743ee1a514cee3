//go:build !darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "provform")
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "provform", "config.yaml")
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// yamlBackend stores settings grouped by section:
//
//	server:
//	  port: 4100
//	storage:
//	  backend: redis
type yamlBackend struct {
	path     string
	sections map[string]map[string]any
}

func newPlatformBackend() Backend {
	return newYAMLBackend(configFilePath())
}

func newYAMLBackend(path string) *yamlBackend {
	b := &yamlBackend{path: path, sections: map[string]map[string]any{}}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := yaml.Unmarshal(data, &b.sections); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
			b.sections = map[string]map[string]any{}
		}
	}
	return b
}

func splitKey(key string) (section, name string) {
	section, name, _ = strings.Cut(key, ".")
	return section, name
}

func (b *yamlBackend) lookup(key string) (any, bool) {
	section, name := splitKey(key)
	v, ok := b.sections[section][name]
	return v, ok
}

func (b *yamlBackend) GetString(key string) (string, bool, error) {
	v, ok := b.lookup(key)
	if !ok || v == nil {
		return "", false, nil
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *yamlBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.lookup(key)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("%s is not an integer: %w", key, err)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("%s: expected an integer, got %T", key, v)
	}
}

func (b *yamlBackend) SetString(key, val string) error {
	return b.set(key, val)
}

func (b *yamlBackend) SetInt(key string, val int) error {
	return b.set(key, val)
}

func (b *yamlBackend) Delete(key string) error {
	section, name := splitKey(key)
	delete(b.sections[section], name)
	if len(b.sections[section]) == 0 {
		delete(b.sections, section)
	}
	return b.save()
}

func (b *yamlBackend) set(key string, val any) error {
	section, name := splitKey(key)
	if b.sections[section] == nil {
		b.sections[section] = map[string]any{}
	}
	b.sections[section][name] = val
	return b.save()
}

func (b *yamlBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(b.sections)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(b.path, data, 0o600)
}
