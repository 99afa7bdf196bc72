// Package settings reads and writes the JSON settings files behind the
// configuration service. Settings are stored nested: the key
// "editor.tabSize" lives at {"editor": {"tabSize": ...}}.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// ErrInvalidJSON is returned for settings files that do not hold a JSON
// object.
var ErrInvalidJSON = errors.New("settings: not a JSON object")

var emptyObject = json.RawMessage("{}")

// File is one settings file on disk. A missing file reads as an empty
// object and is created on the first write.
type File struct {
	path string

	mu       sync.Mutex
	contents []byte
}

// Open reads the settings file at path.
func Open(path string) (*File, error) {
	f := &File{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Reload re-reads the file from disk.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		data = emptyObject
	} else if err != nil {
		return fmt.Errorf("failed to read settings %s: %w", f.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		data = emptyObject
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return fmt.Errorf("%w: %s", ErrInvalidJSON, f.path)
	}

	f.mu.Lock()
	f.contents = data
	f.mu.Unlock()
	return nil
}

// Contents returns the whole file.
func (f *File) Contents() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append(json.RawMessage(nil), f.contents...)
}

// Get returns the value at the dotted key.
func (f *File) Get(key string) gjson.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gjson.GetBytes(f.contents, key)
}

// Set writes value, a JSON document, at the dotted key.
func (f *File) Set(key string, value json.RawMessage) error {
	if !gjson.ValidBytes(value) {
		return fmt.Errorf("settings: value for %s is not valid JSON", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	updated, err := sjson.SetRawBytes(f.contents, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s in %s: %w", key, f.path, err)
	}
	return f.write(updated)
}

// Remove deletes the dotted key. Removing a missing key is not an error.
func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !gjson.GetBytes(f.contents, key).Exists() {
		return nil
	}
	updated, err := sjson.DeleteBytes(f.contents, key)
	if err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", key, f.path, err)
	}
	return f.write(updated)
}

func (f *File) write(contents []byte) error {
	contents = pretty.Pretty(contents)
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(f.path, contents, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", f.path, err)
	}
	f.contents = contents
	return nil
}

// Merge overlays layers from left to right. Objects merge key by key, any
// other value replaces what was there.
func Merge(layers ...json.RawMessage) json.RawMessage {
	merged := []byte(emptyObject)
	for _, layer := range layers {
		if len(layer) == 0 || !gjson.ValidBytes(layer) {
			continue
		}
		for path, raw := range Flatten(layer) {
			// An empty object adds nothing to an object already merged.
			if isEmptyObject(raw) && gjson.GetBytes(merged, path).IsObject() {
				continue
			}
			if out, err := sjson.SetRawBytes(merged, path, []byte(raw)); err == nil {
				merged = out
			}
		}
	}
	return pretty.Ugly(merged)
}

func isEmptyObject(raw string) bool {
	v := gjson.Parse(raw)
	if !v.IsObject() {
		return false
	}
	empty := true
	v.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	return empty
}

// Flatten maps every leaf of an object to its raw JSON value, keyed by
// sjson path. Arrays and empty objects are leaves.
func Flatten(contents json.RawMessage) map[string]string {
	out := make(map[string]string)
	flatten(gjson.ParseBytes(contents), "", out)
	return out
}

func flatten(v gjson.Result, prefix string, out map[string]string) {
	if !v.IsObject() {
		if prefix != "" {
			out[prefix] = v.Raw
		}
		return
	}
	empty := true
	v.ForEach(func(k, child gjson.Result) bool {
		empty = false
		path := escapeKey(k.String())
		if prefix != "" {
			path = prefix + "." + path
		}
		flatten(child, path, out)
		return true
	})
	if empty && prefix != "" {
		out[prefix] = v.Raw
	}
}

// ChangedKeys returns the sorted keys whose values differ between before and
// after, including keys present on one side only.
func ChangedKeys(before, after json.RawMessage) []string {
	a, b := Flatten(before), Flatten(after)
	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, unescapeKey(k))
		}
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || compact(v) != compact(w) {
			add(k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			add(k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Section returns the value below a dotted section. An empty section
// returns the whole document.
func Section(contents json.RawMessage, section string) gjson.Result {
	if section == "" {
		return gjson.ParseBytes(contents)
	}
	return gjson.GetBytes(contents, section)
}

func compact(raw string) string {
	return string(pretty.Ugly([]byte(raw)))
}

var keyEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
var keyUnescaper = strings.NewReplacer(`\.`, ".", `\*`, "*", `\?`, "?")

func escapeKey(k string) string   { return keyEscaper.Replace(k) }
func unescapeKey(k string) string { return keyUnescaper.Replace(k) }
