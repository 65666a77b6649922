// Package merge reduces a cycle's submissions to a single action, either by
// vote tally or by recursive batched language-model synthesis.
package merge
