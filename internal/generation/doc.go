// Package generation orchestrates dual-tier video generation: it
// submits one high-quality and one low-quality image-to-video job,
// polls both until they finish, downloads the clips, and re-encodes
// them where the tier settings demand it.
package generation
