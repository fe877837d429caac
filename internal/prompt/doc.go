// Package prompt composes the differentiated high/low fidelity motion
// prompts sent to the video generation service.
package prompt
