// Package runs keeps SQLite bookkeeping for dual-tier generation
// runs: prompts, remote task ids, output files, and terminal status.
package runs
