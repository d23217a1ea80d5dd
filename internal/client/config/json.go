package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/optionsauth/internal/flagx"
	"github.com/dmitrijs2005/optionsauth/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell an absent key apart from an empty value, so a partial file
// only overrides what it names.
type JsonConfig struct {
	SupabaseURL    *string         `json:"supabase_url"`
	SupabaseKey    *string         `json:"supabase_key"`
	StoragePath    *string         `json:"storage_path"`
	SyncRedisAddr  *string         `json:"sync_redis_addr"`
	Location       *string         `json:"location"`
	PublicKey      *string         `json:"public_key"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	LogLevel       *string         `json:"log_level"`
	Dev            *bool           `json:"dev"`

	TelemetryEndpoint *string  `json:"telemetry_endpoint"`
	TelemetryEnabled  *bool    `json:"telemetry_enabled"`
	TraceSampleRatio  *float64 `json:"trace_sample_ratio"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without either flag it does nothing.
func parseJson(cfg *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	setString(&cfg.SupabaseURL, jc.SupabaseURL)
	setString(&cfg.SupabaseKey, jc.SupabaseKey)
	setString(&cfg.StoragePath, jc.StoragePath)
	setString(&cfg.SyncRedisAddr, jc.SyncRedisAddr)
	setString(&cfg.Location, jc.Location)
	setString(&cfg.PublicKey, jc.PublicKey)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.Dev != nil {
		cfg.Dev = *jc.Dev
	}
	setString(&cfg.TelemetryEndpoint, jc.TelemetryEndpoint)
	if jc.TelemetryEnabled != nil {
		cfg.TelemetryEnabled = *jc.TelemetryEnabled
	}
	if jc.TraceSampleRatio != nil {
		cfg.TraceSampleRatio = *jc.TraceSampleRatio
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
