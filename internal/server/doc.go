// Package server exposes the experiment over HTTP: session
// initialization, response capture, on-demand video generation,
// statistics, and data exports.
package server
