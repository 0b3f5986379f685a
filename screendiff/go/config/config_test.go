package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.skia.org/screendiff/go/testutils"
	"go.skia.org/screendiff/screendiff/go/block"
	"go.skia.org/screendiff/screendiff/go/imgcmp"
)

func TestLoad_AllFields_Success(t *testing.T) {
	cfg, err := Load(filepath.Join(testutils.TestDataDir(t), "full.json5"))
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(&Config{
		ReferenceDir:     "/refs",
		ErrorDir:         "/errors",
		Tolerance:        0.05,
		Retries:          4,
		RetryDelay:       Duration{Duration: 2 * time.Second},
		DevicePixelRatio: 2,
		Parallelism:      3,
		CacheSize:        64,
		Cursor: imgcmp.CursorConfig{
			DarkLuminance:   60,
			BrightLuminance: 150,
			MinRunLength:    8,
			MaxBlockHeight:  3,
			MaxWidth:        3,
		},
	}, cfg))

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, block.BoxAverage{Ratio: 2}, opts.CandidatePolicy)
	require.NotNil(t, opts.Cursor)
	assert.Equal(t, 8, opts.Cursor.MinRunLength)
}

func TestLoad_OnlyRequiredFields_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(testutils.TestDataDir(t), "minimal.json5"))
	require.NoError(t, err)

	want := Default()
	want.ReferenceDir = "/refs"
	want.ErrorDir = "/errors"
	assert.Equal(t, &want, cfg)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, block.Exact{}, opts.CandidatePolicy)
	assert.Equal(t, imgcmp.DefaultTolerance, opts.Tolerance)
}

func TestLoad_ExplicitZeroCursorThreshold_Kept(t *testing.T) {
	cfg, err := Load(filepath.Join(testutils.TestDataDir(t), "zero_dark.json5"))
	require.NoError(t, err)

	want := imgcmp.DefaultCursorConfig()
	want.DarkLuminance = 0
	assert.Equal(t, want, cfg.Cursor)
}

func TestLoad_RequiredFieldMissing_Error(t *testing.T) {
	_, err := Load(filepath.Join(testutils.TestDataDir(t), "missing_error_dir.json5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ErrorDir")
}

func TestLoad_InvalidTolerance_Error(t *testing.T) {
	_, err := Load(filepath.Join(testutils.TestDataDir(t), "bad_tolerance.json5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tolerance")
}

func TestLoad_MissingFile_Error(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	assert.Error(t, err)
}

func TestLoadFromJSON5_NotAPointerToStruct_Error(t *testing.T) {
	var s string
	assert.Error(t, LoadFromJSON5(&s, "unused"))
	assert.Error(t, LoadFromJSON5(Config{}, "unused"))
}

func TestOptions_DisableCursorFilter(t *testing.T) {
	cfg := Default()
	cfg.DisableCursorFilter = true
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Nil(t, opts.Cursor)

	cfg.DevicePixelRatio = 0
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestNewAsserter_UsesRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.ReferenceDir = t.TempDir()
	cfg.ErrorDir = t.TempDir()
	cfg.Retries = 5
	cfg.RetryDelay = Duration{Duration: time.Second}

	a, err := cfg.NewAsserter()
	require.NoError(t, err)
	assert.Equal(t, 5, a.Retries)
	assert.Equal(t, time.Second, a.Delay)
}
