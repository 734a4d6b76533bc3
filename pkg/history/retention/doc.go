// Package retention removes old history records.
//
// A Pruner deletes records older than the configured number of days and
// then trims the oldest records beyond a maximum count. With an archive
// path configured, each batch is exported as JSON before it is deleted.
// A Scheduler runs the pruner on a cron schedule.
package retention
