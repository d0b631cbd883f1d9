package frameworks

import (
	"sort"
	"strings"
	"sync"

	"ksinstall/internal/config"
)

// Framework is one rule bundle. IsInstalled means selected for the current
// scan, not merely present on disk.
type Framework struct {
	Name        string `json:"name"`
	IsInstalled bool   `json:"is_installed"`
	Location    string `json:"location"`
}

// Catalog maps lower-cased framework names to bundles. The first entry
// recorded for a name is never replaced.
type Catalog struct {
	mu      sync.Mutex
	entries map[string]Framework

	controls      map[string]Control
	controlsBuilt bool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Framework)}
}

// Add records a bundle unless the name is already cataloged. It reports
// whether the entry was added.
func (c *Catalog) Add(name, location string) bool {
	key := normalize(name)
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return false
	}
	c.entries[key] = Framework{Name: key, Location: location}
	c.controlsBuilt = false
	return true
}

// Merge adds every framework in order with first-write-wins semantics and
// returns how many were new.
func (c *Catalog) Merge(items []Framework) int {
	added := 0
	for _, fw := range items {
		if c.Add(fw.Name, fw.Location) {
			added++
		}
	}
	return added
}

// Get returns the cataloged framework for name.
func (c *Catalog) Get(name string) (Framework, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fw, ok := c.entries[normalize(name)]
	return fw, ok
}

// Len returns the number of cataloged frameworks.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Names returns every cataloged name, sorted.
func (c *Catalog) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Frameworks returns a sorted snapshot of the catalog.
func (c *Catalog) Frameworks() []Framework {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Framework, 0, len(c.entries))
	for _, fw := range c.entries {
		out = append(out, fw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Activate selects the scan set. An empty list or one containing "all"
// selects every cataloged framework. Requested names that are not
// cataloged are returned.
func (c *Catalog) Activate(names []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := len(names) == 0 || config.ContainsAll(names)
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[normalize(name)] = true
	}

	for key, fw := range c.entries {
		fw.IsInstalled = all || wanted[key]
		c.entries[key] = fw
	}
	if all {
		return nil
	}

	var unknown []string
	for name := range wanted {
		if name == "" {
			continue
		}
		if _, ok := c.entries[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// Active returns the sorted names selected for scanning.
func (c *Catalog) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for name, fw := range c.entries {
		if fw.IsInstalled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Missing returns the required names not yet cataloged, in request order.
// The "all" sentinel is ignored.
func (c *Catalog) Missing(required []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(required))
	var out []string
	for _, name := range required {
		key := normalize(name)
		if key == "" || key == config.AllFrameworks || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := c.entries[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
