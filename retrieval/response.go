package retrieval

import (
	"unicode/utf8"

	"github.com/poiesic/groundwork/core"
)

// Envelope messages.
const (
	MessageNoResults = "No relevant information found in the selected resources for your question."
	MessageComplete  = "Found complete information from the selected resources. All content has been retrieved and is available for analysis."
	MessageRelevant  = "Found relevant information from the selected resources based on your specific query."
	MessageError     = "Error retrieving information from selected resources."
)

// Response is the envelope handed to tool callers and HTTP clients.
type Response struct {
	Message            string                   `json:"message"`
	Results            []*core.ComparisonResult `json:"results,omitempty"`
	Resources          []string                 `json:"resources"`
	Question           string                   `json:"question"`
	TotalContentLength int                      `json:"totalContentLength"`
	IsComplete         bool                     `json:"isComplete"`
	Summary            *Summary                 `json:"summary,omitempty"`
	Error              string                   `json:"error,omitempty"`
}

// Summary aggregates the results of a Response.
type Summary struct {
	TotalResources    int                `json:"totalResources"`
	TotalChunks       int                `json:"totalChunks"`
	AverageSimilarity float64            `json:"averageSimilarity"`
	ContentBreakdown  []ContentBreakdown `json:"contentBreakdown"`
}

// ContentBreakdown describes one result of a Response.
type ContentBreakdown struct {
	Name          string  `json:"name"`
	ContentLength int     `json:"contentLength"`
	Similarity    float64 `json:"similarity"`
	IsComplete    bool    `json:"isComplete"`
}

// BuildResponse wraps the results of a retrieval in an envelope.
// Content lengths are counted in characters.
func BuildResponse(question string, resources []core.Resource, results []*core.ComparisonResult) *Response {
	resp := &Response{
		Resources: resourceNames(resources),
		Question:  question,
	}
	if len(results) == 0 {
		resp.Message = MessageNoResults
		return resp
	}

	summary := &Summary{
		TotalResources:   len(results),
		ContentBreakdown: make([]ContentBreakdown, len(results)),
	}
	var similaritySum float64
	for i, r := range results {
		length := utf8.RuneCountInString(r.Content)
		resp.TotalContentLength += length
		resp.IsComplete = resp.IsComplete || r.IsComplete
		summary.TotalChunks += r.ChunkCount
		similaritySum += r.Similarity
		summary.ContentBreakdown[i] = ContentBreakdown{
			Name:          r.Name,
			ContentLength: length,
			Similarity:    r.Similarity,
			IsComplete:    r.IsComplete,
		}
	}
	summary.AverageSimilarity = similaritySum / float64(len(results))

	resp.Results = results
	resp.Summary = summary
	if resp.IsComplete {
		resp.Message = MessageComplete
	} else {
		resp.Message = MessageRelevant
	}
	return resp
}

// ErrorResponse builds the envelope reported when a retrieval fails.
func ErrorResponse(question string, resources []core.Resource, err error) *Response {
	resp := &Response{
		Message:   MessageError,
		Resources: resourceNames(resources),
		Question:  question,
		Error:     "Unknown error",
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func resourceNames(resources []core.Resource) []string {
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.DisplayName()
	}
	return names
}
