//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.provform.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "provform-data"
	}
	return filepath.Join(home, "Library", "Application Support", "provform")
}

// defaultsBackend keeps settings in the user defaults database through the
// `defaults` tool.
type defaultsBackend struct {
	domain string
	run    func(args ...string) ([]byte, error)
}

func newPlatformBackend() Backend {
	return &defaultsBackend{
		domain: defaultsDomain,
		run: func(args ...string) ([]byte, error) {
			return exec.Command("defaults", args...).CombinedOutput()
		},
	}
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	out, err := b.run("read", b.domain, key)
	val := strings.TrimSpace(string(out))
	if err == nil {
		return val, true, nil
	}
	// `defaults read` exits 1 for a missing key.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return "", false, nil
	}
	return "", false, fmt.Errorf("defaults read %s: %w (%s)", key, err, val)
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	raw, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s is not an integer: %w", key, err)
	}
	return n, true, nil
}

func (b *defaultsBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

func (b *defaultsBackend) Delete(key string) error {
	if out, err := b.run("delete", b.domain, key); err != nil {
		return fmt.Errorf("defaults delete %s: %w (%s)", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *defaultsBackend) write(key, typeFlag, val string) error {
	if out, err := b.run("write", b.domain, key, typeFlag, val); err != nil {
		return fmt.Errorf("defaults write %s: %w (%s)", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}
