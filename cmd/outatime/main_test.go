package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envato-archive/outatime"
	"github.com/envato-archive/outatime/errors"
	"github.com/envato-archive/outatime/internal/testutil"
	"github.com/envato-archive/outatime/s3types"
)

func TestParseInstant(t *testing.T) {
	loc := time.FixedZone("AEDT", 11*60*60)
	now := time.Date(2015, 10, 21, 16, 29, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{"now", "now", now, false},
		{"now any case", " NOW ", now, false},
		{"rfc3339", "2015-10-21T14:49:00Z", time.Date(2015, 10, 21, 14, 49, 0, 0, time.UTC), false},
		{"rfc3339 offset", "2015-10-21T14:49:00-07:00", time.Date(2015, 10, 21, 21, 49, 0, 0, time.UTC), false},
		{"date time", "2015-10-21 14:49:00", time.Date(2015, 10, 21, 14, 49, 0, 0, loc), false},
		{"date time minutes", "2015-10-21 14:49", time.Date(2015, 10, 21, 14, 49, 0, 0, loc), false},
		{"date only", "2015-10-21", time.Date(2015, 10, 21, 0, 0, 0, 0, loc), false},
		{"garbage", "next tuesday", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInstant(tt.value, now, loc)
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrInvalidInstant)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestParseOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseOptions(env.Options{Environment: map[string]string{}})
		require.NoError(t, err)

		assert.Equal(t, ".", opts.Destination)
		assert.Equal(t, 20, opts.Threads)
		assert.Empty(t, opts.Bucket)
	})

	t.Run("environment", func(t *testing.T) {
		opts, err := parseOptions(env.Options{Environment: map[string]string{
			"OUTATIME_BUCKET":      "my-bucket",
			"OUTATIME_PREFIX":      "lib/",
			"OUTATIME_DESTINATION": "/tmp/restore",
			"OUTATIME_REGION":      "ap-southeast-2",
			"OUTATIME_THREADS":     "8",
			"AWS_PROFILE":          "restore",
		}})
		require.NoError(t, err)

		assert.Equal(t, "my-bucket", opts.Bucket)
		assert.Equal(t, "lib/", opts.Prefix)
		assert.Equal(t, "/tmp/restore", opts.Destination)
		assert.Equal(t, "ap-southeast-2", opts.Region)
		assert.Equal(t, 8, opts.Threads)
		assert.Equal(t, "restore", opts.Profile)
	})

	t.Run("invalid number", func(t *testing.T) {
		_, err := parseOptions(env.Options{Environment: map[string]string{"OUTATIME_THREADS": "many"}})
		require.Error(t, err)
	})
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"valid", Options{Bucket: "b", From: "now", Threads: 1}, nil},
		{"missing bucket", Options{From: "now", Threads: 1}, errors.ErrInvalidInput},
		{"missing from", Options{Bucket: "b", Threads: 1}, errors.ErrInvalidInstant},
		{"no threads", Options{Bucket: "b", From: "now"}, errors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 2, errors.CodeOf(err).ExitStatus())
		})
	}
}

// useFakeBackend points the command at an in-memory bucket for the duration of a test.
func useFakeBackend(t *testing.T) *testutil.FakeBackend {
	t.Helper()

	backend := testutil.NewFakeBackend()
	testutil.SeedReadmeHistory(backend)

	previous := clientFactory
	clientFactory = func(opts ...s3types.Option) (*outatime.Client, error) {
		return outatime.NewWithBackend(backend, opts...)
	}
	t.Cleanup(func() { clientFactory = previous })

	return backend
}

func execute(t *testing.T, vars map[string]string, args ...string) (string, error) {
	t.Helper()

	opts, err := parseOptions(envOptions(vars))
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(opts, &stdout, &stderr)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func envOptions(vars map[string]string) env.Options {
	if vars == nil {
		vars = map[string]string{}
	}
	return env.Options{Environment: vars}
}

func TestRestoreCommand(t *testing.T) {
	backend := useFakeBackend(t)
	dir := t.TempDir()

	out, err := execute(t, nil,
		"--bucket", "bucket",
		"--from", "2015-10-21T14:49:00Z",
		"--prefix", "lib/",
		"--destination", dir,
		"--threads", "2",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "restoring s3://bucket/lib/")
	assert.Contains(t, out, "1.4 kB")
	assert.Contains(t, out, "restored 3 files")
	assert.Contains(t, out, "lib/c/d.rb")

	info, err := os.Stat(filepath.Join(dir, "lib", "b.rb"))
	require.NoError(t, err)
	assert.Equal(t, int64(456), info.Size())
	assert.Equal(t, 3, backend.GetCalls())
}

func TestRestoreCommand_EnvironmentAndFlags(t *testing.T) {
	useFakeBackend(t)
	dir := t.TempDir()

	out, err := execute(t,
		map[string]string{"OUTATIME_BUCKET": "bucket", "OUTATIME_DESTINATION": dir},
		"-f", "2015-10-21T14:49:00Z", "-p", "README",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "restored 1 file ")

	data, err := os.ReadFile(filepath.Join(dir, "README"))
	require.NoError(t, err)
	assert.Equal(t, "readme 112\n", string(data))
}

func TestRestoreCommand_DryRun(t *testing.T) {
	backend := useFakeBackend(t)
	dir := filepath.Join(t.TempDir(), "untouched")

	out, err := execute(t, nil,
		"-b", "bucket", "-f", "now", "-d", dir, "--dry-run",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "would restore 5 revisions")
	assert.NotContains(t, out, "deleted_file")
	assert.Equal(t, 7, strings.Count(out, "\n"), "header, one line per revision, summary")
	assert.Zero(t, backend.GetCalls())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreCommand_Errors(t *testing.T) {
	useFakeBackend(t)

	tests := []struct {
		name   string
		args   []string
		status int
	}{
		{"missing bucket", []string{"-f", "now"}, 2},
		{"missing from", []string{"-b", "bucket"}, 2},
		{"bad time", []string{"-b", "bucket", "-f", "yesterday-ish"}, 2},
		{"bad bucket", []string{"-b", "Bad_Bucket", "-f", "now"}, 2},
		{"positional argument", []string{"-b", "bucket", "-f", "now", "extra"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, nil, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.status, errors.CodeOf(err).ExitStatus())
		})
	}
}
