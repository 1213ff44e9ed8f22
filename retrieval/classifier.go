package retrieval

import (
	"slices"
	"strings"
)

// ComprehensiveKeywords are the lowercase phrases that mark a question as a
// request for the complete content of the selected resources.
var ComprehensiveKeywords = []string{
	"complete",
	"comprehensive",
	"full",
	"all",
	"everything",
	"entire",
	"whole",
	"total",
	"complete information",
	"all information",
	"everything about",
	"full details",
	"complete details",
	"summarize",
	"overview",
	"summary",
	"describe",
	"explain",
	"tell me about",
	"show me",
	"give me",
	"provide",
	"list",
	"enumerate",
	"detail",
	"comprehensive overview",
}

// IsComprehensive reports whether question contains any of
// ComprehensiveKeywords, ignoring case. Matching is by substring, so
// "overall" matches "all".
func IsComprehensive(question string) bool {
	lower := strings.ToLower(question)
	return slices.ContainsFunc(ComprehensiveKeywords, func(keyword string) bool {
		return strings.Contains(lower, keyword)
	})
}
