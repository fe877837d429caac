// Package runway implements the REST client for the Runway
// image-to-video generation API: task submission, status polling, and
// artifact download.
package runway
