// Package llm wraps the backend model service and its model catalog.
package llm

// Model describes one selectable backend model. Capabilities are carried as
// data so callers never hard-code model-name membership checks.
type Model struct {
	ID          string
	Description string // shown in the settings menu
	Reasoning   bool   // request shape differs: no temperature, no system role
	WebSearch   bool   // can ground answers with web search
	Retired     bool   // kept for old rows, hidden from the settings menu
}

// DefaultModel is the baseline assigned to new visitors.
const DefaultModel = "gpt-4o-mini"

// catalog is the closed set of known models.
var catalog = []Model{
	{ID: "gpt-4o-mini", Description: "быстрая и дешевая"},
	{ID: "gpt-4o", Description: "средний вариант"},
	{ID: "gpt-4o-search-preview", Description: "ищет ответы в интернете", WebSearch: true},
	{ID: "o1", Description: "думающая, долгая и умная", Reasoning: true},
	{ID: "o1-mini", Description: "ее облегченная версия", Reasoning: true},
	{ID: "o3-mini", Description: "недорогая думающая модель", Reasoning: true},

	// Early misspelled entries that may still sit in visitor rows.
	{ID: "gpt-o1", Retired: true, Reasoning: true},
	{ID: "gpt-o1-mini", Retired: true, Reasoning: true},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Model, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Choices returns the models offered in the settings menu, retired entries
// excluded, catalog order preserved.
func Choices() []Model {
	var out []Model
	for _, m := range catalog {
		if !m.Retired {
			out = append(out, m)
		}
	}
	return out
}
