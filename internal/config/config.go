// ABOUTME: Layered configuration: built-in defaults, optional config file,
// ABOUTME: APP_-prefixed environment variables, then CLI flag overrides.

package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config is a snapshot of every recognized setting.
type Config struct {
	Debug                bool
	LogLevel             string
	DatabaseURL          string
	HTTPServerAddress    string
	HTTPServerStaticPath string

	FetchFeedsFilename    string
	FetchRetainSrc        bool
	FetchSkipEntryUpdate  bool
	FetchMarkDefunct      bool
	FetchMinFetchPeriod   time.Duration
	FetchRequestTimeout   time.Duration
	FetchConcurrencyLimit int
}

// Keys, also usable as APP_-prefixed environment variables
// (APP_DATABASE_URL and so on) and as config file entries.
const (
	KeyDebug                 = "debug"
	KeyLogLevel              = "log_level"
	KeyDatabaseURL           = "database_url"
	KeyHTTPServerAddress     = "http_server_address"
	KeyHTTPServerStaticPath  = "http_server_static_path"
	KeyFetchFeedsFilename    = "fetch_feeds_filename"
	KeyFetchRetainSrc        = "fetch_retain_src"
	KeyFetchSkipEntryUpdate  = "fetch_skip_entry_update"
	KeyFetchMarkDefunct      = "fetch_mark_defunct"
	KeyFetchMinFetchPeriod   = "fetch_min_fetch_period"
	KeyFetchRequestTimeout   = "fetch_request_timeout"
	KeyFetchConcurrencyLimit = "fetch_concurrency_limit"
)

// Init returns a viper instance with defaults set, the optional config
// file from the working directory read, and APP_ environment variables
// bound. Flag overrides are bound by the CLI layer on top of this.
func Init() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyDatabaseURL, "feedspool.sqlite")
	v.SetDefault(KeyHTTPServerAddress, "0.0.0.0:3010")
	v.SetDefault(KeyHTTPServerStaticPath, "./www/")
	v.SetDefault(KeyFetchFeedsFilename, "feed-urls.txt")
	v.SetDefault(KeyFetchRetainSrc, false)
	v.SetDefault(KeyFetchSkipEntryUpdate, true)
	v.SetDefault(KeyFetchMarkDefunct, false)
	v.SetDefault(KeyFetchMinFetchPeriod, "1800s")
	v.SetDefault(KeyFetchRequestTimeout, "5s")
	v.SetDefault(KeyFetchConcurrencyLimit, 16)
}

// Snapshot materializes the layered values into a Config. Debug forces
// the log level down to debug.
func Snapshot(v *viper.Viper) *Config {
	cfg := &Config{
		Debug:                 v.GetBool(KeyDebug),
		LogLevel:              v.GetString(KeyLogLevel),
		DatabaseURL:           v.GetString(KeyDatabaseURL),
		HTTPServerAddress:     v.GetString(KeyHTTPServerAddress),
		HTTPServerStaticPath:  v.GetString(KeyHTTPServerStaticPath),
		FetchFeedsFilename:    v.GetString(KeyFetchFeedsFilename),
		FetchRetainSrc:        v.GetBool(KeyFetchRetainSrc),
		FetchSkipEntryUpdate:  v.GetBool(KeyFetchSkipEntryUpdate),
		FetchMarkDefunct:      v.GetBool(KeyFetchMarkDefunct),
		FetchMinFetchPeriod:   v.GetDuration(KeyFetchMinFetchPeriod),
		FetchRequestTimeout:   v.GetDuration(KeyFetchRequestTimeout),
		FetchConcurrencyLimit: v.GetInt(KeyFetchConcurrencyLimit),
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}
