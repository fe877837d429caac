// Package logging wires log/slog with the console and JSON handlers used by
// the server and CLI, plus small attribute helpers.
package logging
