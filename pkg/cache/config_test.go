package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache"
	"github.com/llcsim/approxcache/pkg/fs"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func Test_LoadConfig_Reads_Yaml(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "llc.yaml", `
name: test-llc
variant: dedup_bdi
num_tag_lines: 1024
tag_assoc: 8
num_data_lines: 1024
data_assoc: 8
line_size: 64
hash_size: 1024
num_mshrs: 4
`)

	opts, err := cache.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cache.VariantDedupBDI, opts.Variant)
	require.EqualValues(t, 1024, opts.NumTagLines)
}

func Test_LoadConfig_Reads_Jsonc_With_Comments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "llc.jsonc", `{
  // a comment hujson must tolerate
  "name": "test-llc",
  "variant": "exact_bdi",
  "num_tag_lines": 1024,
  "tag_assoc": 8,
  "num_data_lines": 1024,
  "data_assoc": 8,
  "line_size": 64,
  "hash_size": 1024,
  "num_mshrs": 4,
}`)

	opts, err := cache.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cache.VariantExactBDI, opts.Variant)
}

func Test_LoadConfig_Missing_File_Is_A_Distinct_Error(t *testing.T) {
	t.Parallel()

	_, err := cache.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, cache.ErrConfigFileNotFound)
}

func Test_LoadConfig_Unknown_Extension_Is_An_Error(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "llc.toml", "name = \"x\"")

	_, err := cache.LoadConfig(path)
	require.ErrorIs(t, err, cache.ErrUnknownExtension)
}

func Test_LoadConfigFS_Uses_The_Given_Filesystem(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "llc.yaml", "variant: exact_bdi\n")

	opts, err := cache.LoadConfigFS(fs.NewReal(), path)
	require.NoError(t, err)
	require.Equal(t, cache.VariantExactBDI, opts.Variant)
}

func Test_Options_Validate_Rejects_Unsupported_Line_Size(t *testing.T) {
	t.Parallel()

	o := cache.DefaultOptions()
	o.LineSize = 32
	require.ErrorIs(t, o.Validate(), cache.ErrLineSizeUnsupported)
}

func Test_Options_Validate_Rejects_Assoc_Not_Dividing_Line_Count(t *testing.T) {
	t.Parallel()

	o := cache.DefaultOptions()
	o.NumTagLines = 17
	require.ErrorIs(t, o.Validate(), cache.ErrAssocNotDivisor)
}

func Test_Options_Validate_Rejects_Zero_MSHRs(t *testing.T) {
	t.Parallel()

	o := cache.DefaultOptions()
	o.NumMSHRs = 0
	require.ErrorIs(t, o.Validate(), cache.ErrZeroMSHRs)
}

func Test_Options_Validate_Rejects_Unknown_Variant(t *testing.T) {
	t.Parallel()

	o := cache.DefaultOptions()
	o.Variant = "nonsense"
	require.ErrorIs(t, o.Validate(), cache.ErrUnknownVariant)
}

func Test_Options_Validate_Accepts_The_Default_Configuration(t *testing.T) {
	t.Parallel()

	require.NoError(t, cache.DefaultOptions().Validate())
}
