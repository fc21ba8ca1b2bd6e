package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/ormpb/internal/flagx"
)

// Duration reads either a duration string such as "15m" or an integer
// number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

// jsonConfig is the file form of Config. Absent keys keep the value that
// is already set.
type jsonConfig struct {
	DatabaseDSN    *string   `json:"database_dsn"`
	Dialect        *string   `json:"dialect"`
	LogLevel       *string   `json:"log_level"`
	ProtoPackage   *string   `json:"proto_package"`
	GoPackage      *string   `json:"go_package"`
	FileURLs       *bool     `json:"file_urls"`
	FileBaseURL    *string   `json:"file_base_url"`
	URLExpiry      *Duration `json:"url_expiry"`
	S3AccessKey    *string   `json:"s3_access_key"`
	S3SecretKey    *string   `json:"s3_secret_key"`
	S3Bucket       *string   `json:"s3_bucket"`
	S3Region       *string   `json:"s3_region"`
	S3BaseEndpoint *string   `json:"s3_base_endpoint"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// parseJSON overlays the file named by -c or -config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var c jsonConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&cfg.DatabaseDSN, c.DatabaseDSN)
	set(&cfg.Dialect, c.Dialect)
	set(&cfg.LogLevel, c.LogLevel)
	set(&cfg.ProtoPackage, c.ProtoPackage)
	set(&cfg.GoPackage, c.GoPackage)
	set(&cfg.FileURLs, c.FileURLs)
	set(&cfg.FileBaseURL, c.FileBaseURL)
	if c.URLExpiry != nil {
		cfg.URLExpiry = time.Duration(*c.URLExpiry)
	}
	set(&cfg.S3AccessKey, c.S3AccessKey)
	set(&cfg.S3SecretKey, c.S3SecretKey)
	set(&cfg.S3Bucket, c.S3Bucket)
	set(&cfg.S3Region, c.S3Region)
	set(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	return nil
}
