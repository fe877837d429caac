// Package analysis derives cheap visual features from an uploaded image:
// aspect class, brightness, dominant color, color temperature, a face-region
// hint, and composition focus. These features feed prompt composition.
package analysis
