package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/mr-karan/caskdb/pkg/cask"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zerodha/logf"
)

// initLogger initializes logger instance with the level set in `app.log`.
func initLogger(ko *koanf.Koanf) logf.Logger {
	opts := logf.Opts{EnableCaller: true}
	switch ko.String("app.log") {
	case "debug":
		opts.Level = logf.DebugLevel
		opts.EnableColor = true
	case "warn":
		opts.Level = logf.WarnLevel
	case "error":
		opts.Level = logf.ErrorLevel
	}
	return logf.New(opts)
}

// initConfig loads config to `ko` object. Values are read from the config
// file, then `CASKDB_` env vars and finally the command line flags, each
// overriding the previous one.
func initConfig(args []string) (*koanf.Koanf, error) {
	var (
		ko = koanf.New(".")
		f  = flag.NewFlagSet("front", flag.ContinueOnError)
	)

	// Configure Flags.
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	// Register `--config` flag.
	cfgPath := f.String("config", "config.sample.toml", "Path to a config file to load.")

	// Flags named after their config key, so they load straight into `ko`.
	f.String("store.dir", "./data", "Directory of the store.")
	f.Int("store.capacity", 1000, "Max number of records in a segment.")
	f.Bool("store.replay", false, "Rebuild the index from the segments on disk at startup.")
	f.String("app.log", "info", "Log level: debug, info, warn or error.")

	// Parse and Load Flags.
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	if err := ko.Load(file.Provider(*cfgPath), toml.Parser()); err != nil {
		return nil, fmt.Errorf("error loading config file %q: %w", *cfgPath, err)
	}
	err := ko.Load(env.Provider("CASKDB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CASKDB_")), "__", ".", -1)
	}), nil)
	if err != nil {
		return nil, err
	}
	// Defaults of flags which weren't set only fill keys missing from the file and env.
	if err := ko.Load(posflag.Provider(f, ".", ko), nil); err != nil {
		return nil, err
	}
	return ko, nil
}

// initStore opens the store with the options from the `store` section of the config.
func initStore(ko *koanf.Koanf, lo logf.Logger) (*cask.Cask, error) {
	cfg := []cask.Config{
		cask.WithLogger(lo),
		cask.WithRegisterer(prometheus.DefaultRegisterer),
	}

	if capacity := ko.Int("store.capacity"); capacity > 0 {
		cfg = append(cfg, cask.WithCapacity(capacity))
	}
	if size := ko.Int64("store.max_segment_size"); size > 0 {
		cfg = append(cfg, cask.WithMaxSegmentSize(size))
	}
	if interval := ko.Duration("store.sync_interval"); interval > 0 {
		cfg = append(cfg, cask.WithSyncInterval(interval))
	} else {
		cfg = append(cfg, cask.WithAlwaysSync())
	}
	if ko.Bool("store.replay") {
		cfg = append(cfg, cask.WithReplay())
	}

	return cask.Open(ko.MustString("store.dir"), cfg...)
}
