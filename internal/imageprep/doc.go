// Package imageprep validates and adjusts uploaded still images before they
// are submitted to the video generation service.
package imageprep
