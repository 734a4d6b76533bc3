// Package logging builds the structured *slog.Logger shared by every
// ruleflow component.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//
//	ctx = logging.WithRuleSet(ctx, "persona@v1")
//	logger.InfoContext(ctx, "validation requested", "rules", 12)
//	// {"level":"INFO","msg":"validation requested","rules":12,"ruleset":"persona@v1"}
//
// Records logged with a context that carries an OpenTelemetry span also get
// trace_id and span_id.
//
// # PII Redaction
//
// With RedactPII, attributes whose key looks sensitive (password, token,
// api_key, ...) are replaced by "***", and e-mail addresses, bearer tokens
// and SSN-shaped values are masked inside string attributes.
package logging
