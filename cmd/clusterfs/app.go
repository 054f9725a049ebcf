package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/hupe1980/clusterfs"
	"github.com/spf13/pflag"
)

// app carries the parsed configuration of one invocation.
type app struct {
	cfg    *Config
	flags  *pflag.FlagSet
	args   []string
	stdin  io.Reader
	stdout io.Writer

	blob bool
	help bool
}

func newApp(name string, args []string, stdin io.Reader, stdout io.Writer) (*app, error) {
	var (
		configPath string
		override   Config
	)
	a := &app{stdin: stdin, stdout: stdout}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configPath, "config", "", "YAML config file (default: $CLUSTERFS_CONFIG)")
	fs.StringVarP(&override.Container, "container", "f", "", "container file")
	fs.IntVar(&override.MinClusterSize, "min-cluster-size", 0, "minimum cluster size: 16, 32, 64, 128 or 256")
	fs.StringVar(&override.Growth, "growth", "", "growth strategy: quadratic or exponential")
	fs.IntVar(&override.CacheSize, "cache-size", 0, "number of cached cluster headers")
	fs.StringVar(&override.Codec, "codec", "", "blob codec: none, lz4 or zstd")
	fs.Int64Var(&override.IOLimit, "io-limit", 0, "scan and export read limit in bytes per second")
	fs.StringVar(&override.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&override.Export.Target, "target", "", "export target: local, minio or s3")
	fs.StringVar(&override.Export.Prefix, "prefix", "", "export object name prefix")
	fs.StringVar(&override.Export.Dir, "dir", "", "export directory (local target)")
	fs.StringVar(&override.Export.Bucket, "bucket", "", "export bucket (minio and s3 targets)")
	fs.StringVar(&override.Export.Endpoint, "endpoint", "", "object store endpoint")
	fs.StringVar(&override.Export.Region, "region", "", "AWS region (s3 target)")
	fs.BoolVar(&a.blob, "blob", false, "read or write whole compressed blobs")
	fs.BoolVarP(&a.help, "help", "h", false, "show help")
	a.flags = fs

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if a.help {
		return a, nil
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, &override, fs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a.cfg = cfg
	a.args = fs.Args()
	return a, nil
}

// applyOverrides copies every flag the user set onto cfg.
func applyOverrides(cfg, o *Config, fs *pflag.FlagSet) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("container", func() { cfg.Container = o.Container })
	set("min-cluster-size", func() { cfg.MinClusterSize = o.MinClusterSize })
	set("growth", func() { cfg.Growth = o.Growth })
	set("cache-size", func() { cfg.CacheSize = o.CacheSize })
	set("codec", func() { cfg.Codec = o.Codec })
	set("io-limit", func() { cfg.IOLimit = o.IOLimit })
	set("log-level", func() { cfg.LogLevel = o.LogLevel })
	set("target", func() { cfg.Export.Target = o.Export.Target })
	set("prefix", func() { cfg.Export.Prefix = o.Export.Prefix })
	set("dir", func() { cfg.Export.Dir = o.Export.Dir })
	set("bucket", func() { cfg.Export.Bucket = o.Export.Bucket })
	set("endpoint", func() { cfg.Export.Endpoint = o.Export.Endpoint })
	set("region", func() { cfg.Export.Region = o.Export.Region })
}

// open opens the configured container.
func (a *app) open() (*clusterfs.FileSystem, error) {
	if a.cfg.Container == "" {
		return nil, fmt.Errorf("no container: pass --container or set it in the config file")
	}
	growth, err := clusterfs.ParseGrowthStrategy(a.cfg.Growth)
	if err != nil {
		return nil, err
	}
	codec, err := clusterfs.ParseCodec(a.cfg.Codec)
	if err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := []clusterfs.Option{
		clusterfs.WithMinClusterSize(a.cfg.MinClusterSize),
		clusterfs.WithGrowthStrategy(growth),
		clusterfs.WithCodec(codec),
		clusterfs.WithIOLimit(a.cfg.IOLimit),
		clusterfs.WithLogLevel(level),
	}
	if a.cfg.CacheSize > 0 {
		opts = append(opts, clusterfs.WithCacheSize(a.cfg.CacheSize))
	}
	return clusterfs.Open(a.cfg.Container, opts...)
}

// arg returns positional argument i, or an error naming what is missing.
func (a *app) arg(i int, what string) (string, error) {
	if i >= len(a.args) {
		return "", fmt.Errorf("missing %s", what)
	}
	return a.args[i], nil
}

func parseHandle(s string) (clusterfs.Handle, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return clusterfs.NotSet, fmt.Errorf("invalid handle %q", s)
	}
	return clusterfs.Handle(n), nil
}
