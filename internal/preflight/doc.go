// Package preflight runs environment checks before the experiment
// server starts: content tree layout, data directory access, and
// external tool availability.
package preflight
