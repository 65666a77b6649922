// Package domain contains the pure session state: phase machine, submission
// ledger, and pausable timers. Everything here is deterministic under an
// injected clock and scheduler, and nothing talks to collaborators.
package domain
