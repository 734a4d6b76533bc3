// Package recorder turns orchestrator pass reports into history records
// and writes them on a background goroutine.
package recorder
