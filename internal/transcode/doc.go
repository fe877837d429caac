// Package transcode wraps the ffmpeg command line for re-encoding
// generated clips down to a target bitrate.
package transcode
