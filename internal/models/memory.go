package models

import "strings"

// MemoryWindow is a bounded FIFO of recent turn summaries. It is a lossy
// rolling context injected into oracle prompts; the full history log is kept
// separately on the scene.
type MemoryWindow struct {
	Entries  []string `json:"entries"`
	Capacity int      `json:"capacity"`
}

// NewMemoryWindow creates an empty window with the given capacity.
func NewMemoryWindow(capacity int) MemoryWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return MemoryWindow{Capacity: capacity}
}

// Push appends a summary, evicting the oldest entry when the window is full.
func (m *MemoryWindow) Push(summary string) {
	if summary == "" {
		return
	}
	m.Entries = append(m.Entries, summary)
	if m.Capacity > 0 && len(m.Entries) > m.Capacity {
		m.Entries = m.Entries[len(m.Entries)-m.Capacity:]
	}
}

// Render produces a single context block for oracle prompts. An empty window
// renders as an empty string so it never confuses the oracle with a
// placeholder.
func (m *MemoryWindow) Render() string {
	if len(m.Entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("--- RECENT EVENTS (MEMORY) ---\n")
	b.WriteString(strings.Join(m.Entries, "\n"))
	return b.String()
}
