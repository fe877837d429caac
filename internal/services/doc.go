// Package services defines the shared error taxonomy for experiment
// components and the context annotations used for request correlation.
package services
