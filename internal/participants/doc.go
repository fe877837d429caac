// Package participants persists one JSON record per experiment
// participant: demographics, the fixed video assignment, and the
// append-only response list.
package participants
