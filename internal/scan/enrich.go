package scan

import "ksinstall/internal/frameworks"

// Report is the scanner's JSON result document.
type Report = map[string]any

// ControlLookup resolves a control identifier to its definition.
type ControlLookup func(id string) (frameworks.Control, bool)

// Enrich adds description and remediation text to each entry under
// summaryDetails.controls in place. Entries without a match are left as is.
// It returns the number of enriched entries.
func Enrich(report Report, lookup ControlLookup) int {
	controls := summaryControls(report)
	if controls == nil || lookup == nil {
		return 0
	}
	enriched := 0
	for id, raw := range controls {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		key := id
		if v, ok := entry["controlID"].(string); ok && v != "" {
			key = v
		}
		ctrl, ok := lookup(key)
		if !ok {
			continue
		}
		if ctrl.Description != "" {
			entry["description"] = ctrl.Description
		}
		if ctrl.Remediation != "" {
			entry["remediation"] = ctrl.Remediation
		}
		enriched++
	}
	return enriched
}

// ControlCount returns the number of per-control summary entries.
func ControlCount(report Report) int {
	return len(summaryControls(report))
}

func summaryControls(report Report) map[string]any {
	summary, ok := report["summaryDetails"].(map[string]any)
	if !ok {
		return nil
	}
	controls, _ := summary["controls"].(map[string]any)
	return controls
}
