// Package session holds the crowd-cycle orchestration core: the phase state
// machine, the submission ledger, and the pausable timers that drive a timed
// submit-and-vote cycle from chat input to one game action.
package session
