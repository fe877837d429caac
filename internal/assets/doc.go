// Package assets discovers the pre-existing video files under the
// content tree and assembles each participant's stratified, randomly
// ordered video assignment.
package assets
