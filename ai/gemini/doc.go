// Package gemini provides embeddings from the Google Gemini API.
//
// Requests pass through a rate limiter and a circuit breaker so a failing
// or throttled API degrades into fast errors instead of piling up calls.
// Vectors come back at the model's native length; configure
// ai.Config.Dimensions to match (3072 for gemini-embedding-001, 768 for
// text-embedding-004).
package gemini
