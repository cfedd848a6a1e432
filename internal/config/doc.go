// Package config loads typegraph settings from an optional YAML or TOML
// file and TYPEGRAPH_* environment variables.
//
//	log:
//	  level: debug
//	  format: json
//	store:
//	  path: runs.db
//	analysis:
//	  strict: true
//	  jobs: 4
package config
