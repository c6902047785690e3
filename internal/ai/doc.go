// Package ai describes images and fonts with a vision-capable chat model
// behind an OpenAI-compatible endpoint.
//
// Model output goes through a post-processing check that yields a Verdict:
// either the decoded value or a rejection reason (missing keys, ill-typed
// values, or English text when another language was requested). Callers
// decide what a rejection means; the activity pipelines treat it as a
// retryable step failure.
package ai
