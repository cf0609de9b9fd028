// Package config loads runtime configuration for the casevault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. CASEVAULT_ADDR, CASEVAULT_TOKEN, CASEVAULT_JOURNAL and the
//     CASEVAULT_RETRY_* variables.
//
// Command-line flags parsed by the CLI itself override all of the above.
//
// # JSON schema
//
// Durations are strings like "250ms" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "localhost:8081",
//	  "retries": 5,
//	  "retry_base": "250ms",
//	  "retry_max": "4s",
//	  "journal_path": "/var/lib/casevault/journal.db"
//	}
//
// An empty journal path means .casevault/journal.db under the working
// directory.
//
// The token is never read from JSON.
package config
