// Package report aggregates participant records into summary
// statistics and exports them as CSV or JSON.
package report
