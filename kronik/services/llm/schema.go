package llm

import "kronik/kronik/types"

var harmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_CIVIC_INTEGRITY",
}

// AnalysisSchema requires all six analysis fields and restricts category to
// the known set.
func AnalysisSchema() *Schema {
	categories := make([]string, 0, len(types.Categories()))
	for _, c := range types.Categories() {
		categories = append(categories, string(c))
	}
	return &Schema{
		Type:     "OBJECT",
		Required: []string{"transcript", "analysis", "tags", "category", "rating", "like"},
		Properties: map[string]*Schema{
			"transcript": {Type: "STRING"},
			"analysis":   {Type: "STRING"},
			"tags":       {Type: "ARRAY", Items: &Schema{Type: "STRING"}},
			"category":   {Type: "STRING", Enum: categories},
			"rating":     {Type: "INTEGER"},
			"like":       {Type: "BOOLEAN"},
		},
	}
}

func blockNone() []SafetySetting {
	settings := make([]SafetySetting, 0, len(harmCategories))
	for _, c := range harmCategories {
		settings = append(settings, SafetySetting{Category: c, Threshold: "BLOCK_NONE"})
	}
	return settings
}
