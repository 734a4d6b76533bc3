// Package export renders history records as JSON or CSV.
package export
