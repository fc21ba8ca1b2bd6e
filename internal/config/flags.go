package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/ormpb/internal/flagx"
)

// parseFlags overlays command-line flags:
//
//	-d string           database DSN
//	-dialect string     postgres or sqlite
//	-log-level string   debug, info, warn or error
//	-package string     proto package of generated schemas
//	-go-package string  go_package option of generated schemas
//	-url                write file fields as access URLs
//	-file-base-url str  public base URL for file fields
//	-url-expiry dur     lifetime of presigned URLs
//	-u, -p string       S3 access key and secret key
//	-b, -g, -e string   S3 bucket, region and base endpoint
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.Dialect, "dialect", cfg.Dialect, "SQL dialect")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.ProtoPackage, "package", cfg.ProtoPackage, "proto package")
	fs.StringVar(&cfg.GoPackage, "go-package", cfg.GoPackage, "go_package option")
	fs.BoolVar(&cfg.FileURLs, "url", cfg.FileURLs, "file fields as URLs")
	fs.StringVar(&cfg.FileBaseURL, "file-base-url", cfg.FileBaseURL, "file base URL")
	fs.DurationVar(&cfg.URLExpiry, "url-expiry", cfg.URLExpiry, "presigned URL lifetime")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")

	return flagx.Parse(fs, args)
}
