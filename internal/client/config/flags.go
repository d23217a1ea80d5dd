package config

import (
	"flag"
	"io"
	"os"

	"github.com/dmitrijs2005/optionsauth/internal/flagx"
)

var knownFlags = []string{"-u", "-k", "-s", "-r", "-l", "-x", "-t", "-v", "-dev", "-otel", "-sample"}

// parseFlags populates Config fields from command-line flags.
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.SupabaseURL, "u", cfg.SupabaseURL, "auth service endpoint url")
	fs.StringVar(&cfg.SupabaseKey, "k", cfg.SupabaseKey, "public api key")
	fs.StringVar(&cfg.StoragePath, "s", cfg.StoragePath, "local storage database path")
	fs.StringVar(&cfg.SyncRedisAddr, "r", cfg.SyncRedisAddr, "redis address for the sync storage area")
	fs.StringVar(&cfg.Location, "l", cfg.Location, "page location used as oauth redirect target")
	fs.StringVar(&cfg.PublicKey, "x", cfg.PublicKey, "extension public key (base64 DER)")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "request timeout")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "use an in-process fake auth service")
	fs.StringVar(&cfg.TelemetryEndpoint, "otel", cfg.TelemetryEndpoint, "OTLP/HTTP trace collector url")
	fs.Float64Var(&cfg.TraceSampleRatio, "sample", cfg.TraceSampleRatio, "share of traces to keep (0..1)")

	return fs.Parse(args)
}
