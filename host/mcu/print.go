package mcu

import (
	"fmt"
	"io"
	"sort"
)

// PrintDictionary writes a summary of the dictionary, entries ordered by ID
func (m *MCU) PrintDictionary(w io.Writer) {
	dict := m.GetDictionary()
	if dict == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}

	fmt.Fprintln(w, "=== MCU Dictionary ===")
	fmt.Fprintf(w, "Version: %s\n", dict.Version)
	fmt.Fprintf(w, "Build: %s\n", dict.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	keys := make([]string, 0, len(dict.Config))
	for k := range dict.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, dict.Config[k])
	}

	printIDs(w, "Commands", dict.Commands)
	printIDs(w, "Responses", dict.Responses)

	if len(dict.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(dict.Enumerations))
		for name, values := range dict.Enumerations {
			fmt.Fprintf(w, "  %s: %d values\n", name, len(values))
		}
	}
}

func printIDs(w io.Writer, title string, ids map[string]int) {
	sigs := make([]string, 0, len(ids))
	for sig := range ids {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return ids[sigs[i]] < ids[sigs[j]] })

	fmt.Fprintf(w, "\n%s (%d):\n", title, len(ids))
	for _, sig := range sigs {
		fmt.Fprintf(w, "  [%d] %s\n", ids[sig], sig)
	}
}
