// Package middleware provides the HTTP middleware chain of the ruleflow
// server: request ids, access logging, panic recovery and body limits.
//
// Every middleware has the func(http.Handler) http.Handler shape so it
// plugs into chi's Router.Use:
//
//	r.Use(middleware.RequestID)
//	r.Use(middleware.Logging(logger))
//	r.Use(middleware.Recovery(logger))
package middleware
