package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	"github.com/envato-archive/outatime"
	"github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/s3types"
)

// Options collects every setting of a restore run.
// Environment variables provide the defaults; flags override them.
type Options struct {
	Bucket      string `env:"OUTATIME_BUCKET"`
	Prefix      string `env:"OUTATIME_PREFIX"`
	Destination string `env:"OUTATIME_DESTINATION" envDefault:"."`
	From        string `env:"OUTATIME_FROM"`
	Region      string `env:"OUTATIME_REGION"`
	Profile     string `env:"AWS_PROFILE"`
	Endpoint    string `env:"OUTATIME_ENDPOINT"`
	PathStyle   bool   `env:"OUTATIME_PATH_STYLE"`
	Threads     int    `env:"OUTATIME_THREADS" envDefault:"20"`
	Verbose     bool   `env:"OUTATIME_VERBOSE"`
	DryRun      bool   `env:"OUTATIME_DRY_RUN"`
}

// loadOptions reads option defaults from the environment.
func loadOptions() (*Options, error) {
	return parseOptions(env.Options{})
}

func parseOptions(envOpts env.Options) (*Options, error) {
	var opts Options
	if err := env.ParseWithOptions(&opts, envOpts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &opts, nil
}

// bind registers the command line flags on flags, using the current values as defaults.
func (o *Options) bind(flags *pflag.FlagSet) {
	flags.StringVarP(&o.Bucket, "bucket", "b", o.Bucket, "versioned `bucket` to restore from")
	flags.StringVarP(&o.From, "from", "f", o.From, "point in `time` to restore (RFC3339, \"2006-01-02 15:04:05\", \"2006-01-02\" or \"now\")")
	flags.StringVarP(&o.Prefix, "prefix", "p", o.Prefix, "only restore keys starting with `prefix`")
	flags.StringVarP(&o.Destination, "destination", "d", o.Destination, "`directory` to write the restored files to")
	flags.StringVarP(&o.Region, "region", "r", o.Region, "AWS `region` of the bucket")
	flags.StringVar(&o.Profile, "profile", o.Profile, "shared config `profile` to load credentials from")
	flags.StringVar(&o.Endpoint, "endpoint", o.Endpoint, "custom S3 endpoint `URL` (S3-compatible services)")
	flags.BoolVar(&o.PathStyle, "path-style", o.PathStyle, "use path-style addressing")
	flags.IntVarP(&o.Threads, "threads", "t", o.Threads, "number of parallel downloads")
	flags.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "log every listing page and download")
	flags.BoolVar(&o.DryRun, "dry-run", o.DryRun, "list the revisions that would be restored without downloading them")
}

// validate checks the options that have no usable default.
func (o *Options) validate() error {
	if o.Bucket == "" {
		return errors.NewError("options", errors.ErrInvalidInput).WithMessage("--bucket is required")
	}
	if o.From == "" {
		return errors.NewError("options", errors.ErrInvalidInstant).WithMessage("--from is required")
	}
	if o.Threads <= 0 {
		return errors.NewError("options", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("--threads must be positive, got %d", o.Threads))
	}
	return nil
}

// clientOptions translates the run settings into client options.
func (o *Options) clientOptions() []s3types.Option {
	opts := []s3types.Option{
		outatime.WithConcurrency(o.Threads),
	}
	if o.Region != "" {
		opts = append(opts, outatime.WithRegion(o.Region))
	}
	if o.Profile != "" {
		opts = append(opts, outatime.WithProfile(o.Profile))
	}
	if o.Endpoint != "" {
		opts = append(opts, outatime.WithEndpoint(o.Endpoint))
	}
	if o.PathStyle {
		opts = append(opts, outatime.WithForcePathStyle(true))
	}
	return opts
}
