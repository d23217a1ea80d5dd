// Package config loads runtime configuration for the options client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A dotenv file: -e/-env, or ./.env when present. Variables already set
//     in the process environment win over the file.
//  3. Environment variables (see the env tags on Config).
//  4. Optional JSON file selected via flags: -c or -config.
//  5. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-u string   auth service endpoint URL
//	-k string   public API key
//	-s string   path of the local storage database
//	-r string   redis address backing the sync area
//	-l string   page location handed to OAuth sign-ins
//	-x string   extension public key (base64 DER)
//	-t duration request timeout
//	-v string   log level
//	-dev        run against an in-process fake auth service
//	-otel string  OTLP/HTTP trace collector URL
//	-sample float share of traces kept, 0 to 1
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "10s" or
// integer nanoseconds:
//
//	{
//	  "supabase_url": "https://abc.supabase.co",
//	  "supabase_key": "public-anon-key",
//	  "storage_path": ".options/storage.db",
//	  "request_timeout": "10s",
//	  "telemetry_endpoint": "http://localhost:4318",
//	  "trace_sample_ratio": 0.5
//	}
//
// The endpoint URL and API key are mandatory; Validate reports their absence
// as a startup error.
package config
