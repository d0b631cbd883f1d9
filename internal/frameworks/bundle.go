package frameworks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// BundleExt is the file extension of framework bundles.
const BundleExt = ".json"

const bundleSchemaURL = "https://ksinstall.local/schemas/framework-bundle.json"

// bundleSchema accepts any object carrying a controls array whose entries
// are objects.
const bundleSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["controls"],
  "properties": {
    "name": {"type": "string"},
    "controls": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func bundleValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(bundleSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parse bundle schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(bundleSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add bundle schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(bundleSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateBundle reports whether data is a framework bundle.
func ValidateBundle(data []byte) error {
	sch, err := bundleValidator()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse bundle: %w", err)
	}
	return sch.Validate(inst)
}

// ScanDir lists valid bundles in dir. Files that fail to parse or lack a
// controls array are skipped silently. A missing dir yields no frameworks.
func ScanDir(dir string) ([]Framework, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read framework dir: %w", err)
	}

	var out []Framework
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), BundleExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if ValidateBundle(data) != nil {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		out = append(out, Framework{Name: normalize(stem), Location: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Control is the human readable part of one control definition.
type Control struct {
	ID          string `json:"controlID"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

type bundleFile struct {
	Controls []Control `json:"controls"`
}

// Controls lazily indexes every cataloged bundle's controls by identifier.
// The first definition of an identifier wins; bundles are read in name
// order. Unreadable bundles are skipped.
func (c *Catalog) Controls() map[string]Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controlsBuilt {
		return c.controls
	}

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]Control)
	for _, name := range names {
		data, err := os.ReadFile(c.entries[name].Location)
		if err != nil {
			continue
		}
		var bundle bundleFile
		if err := json.Unmarshal(data, &bundle); err != nil {
			continue
		}
		for _, ctrl := range bundle.Controls {
			if ctrl.ID == "" {
				continue
			}
			if _, exists := index[ctrl.ID]; !exists {
				index[ctrl.ID] = ctrl
			}
		}
	}
	c.controls = index
	c.controlsBuilt = true
	return index
}

// Control looks up one control definition.
func (c *Catalog) Control(id string) (Control, bool) {
	ctrl, ok := c.Controls()[id]
	return ctrl, ok
}
