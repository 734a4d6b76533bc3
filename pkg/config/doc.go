// Package config provides configuration management for ruleflow.
//
// This package handles loading, validating, and defaulting configuration
// from YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("ruleflow.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("ruleflow.yaml")
//
// Without a file, config.Default() returns a configuration with every
// default applied.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RULEFLOW_SECTION_FIELD.
// For example:
//
//   - RULEFLOW_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - RULEFLOW_ENGINE_MAX_PARALLEL_RULES overrides engine.max_parallel_rules
//   - RULEFLOW_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Values from YAML file
//  2. Default values for anything left unset (defined in defaults.go)
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Engine Section
//
// The engine section maps onto ruleengine.Config. EngineConfig.Options
// returns a partial override suitable for Orchestrator.UpdateConfig, which
// the serve command uses to apply a reloaded file without a restart.
//
// # Example Configuration
//
//	engine:
//	  max_parallel_rules: 10
//	  default_timeout: 5s
//	  skip_dependent_on_failure: true
//	rulesets:
//	  path: ./rules
//	  watch: true
//	history:
//	  enabled: true
//	  backend: sqlite
//	  sqlite:
//	    path: data/history.db
//	server:
//	  listen_address: 127.0.0.1:8080
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
