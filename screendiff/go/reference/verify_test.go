package reference

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.skia.org/screendiff/go/metrics2"
	"go.skia.org/screendiff/go/util"
	"go.skia.org/screendiff/screendiff/go/block"
	"go.skia.org/screendiff/screendiff/go/imgcmp"
)

var login = Descriptor{ID: "login", Browser: "chrome", Version: "114.0.5735.90"}

const loginName = "login_unknown_chrome_114"

func newTestVerifier(t *testing.T, opts imgcmp.Options) (*Verifier, string, string) {
	refDir := filepath.Join(t.TempDir(), "refs")
	errDir := filepath.Join(t.TempDir(), "errors")
	store, err := NewStore(refDir, 4)
	require.NoError(t, err)
	v := NewVerifier(store, NewReporter(errDir), opts)
	v.Metrics = metrics2.NewClient(prometheus.NewRegistry())
	return v, refDir, errDir
}

func (v *Verifier) testCount(result string) int64 {
	return v.Metrics.GetCounter(verificationsMetric, map[string]string{"result": result}).Get()
}

func TestVerify_NoReference_ArchivesAndReportsMissing(t *testing.T) {
	v, _, errDir := newTestVerifier(t, imgcmp.DefaultOptions())

	out, err := v.Verify(testContext(), login, filled(32, 32, white))
	require.NoError(t, err)
	assert.Equal(t, &Outcome{Name: loginName, Missing: true}, out)
	assert.True(t, util.FileExists(filepath.Join(errDir, loginName+".png")))
	assert.Equal(t, int64(1), v.testCount(resultMissing))
}

func TestVerify_MatchingReference_PassesAndClearsArtifacts(t *testing.T) {
	v, refDir, _ := newTestVerifier(t, imgcmp.DefaultOptions())
	p := writeTestPNG(t, refDir, loginName+".png", filled(32, 32, white))
	require.NoError(t, v.Reporter.WriteMissing(testContext(), loginName, filled(32, 32, black)))

	out, err := v.Verify(testContext(), login, filled(32, 32, white))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, p, out.Reference)
	assert.Equal(t, 1, out.Candidates)
	assert.False(t, util.FileExists(v.Reporter.ScreenshotPath(loginName)))
	assert.False(t, util.FileExists(v.Reporter.ReportPath(loginName)))
	assert.Equal(t, int64(1), v.testCount(resultPass))
}

func TestVerify_SecondVariantMatches_Passes(t *testing.T) {
	v, refDir, _ := newTestVerifier(t, imgcmp.DefaultOptions())
	writeTestPNG(t, refDir, loginName+".png", filled(32, 32, black))
	second := writeTestPNG(t, refDir, loginName+"_2.png", filled(32, 32, white))

	out, err := v.Verify(testContext(), login, filled(32, 32, white))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, second, out.Reference)
	assert.Equal(t, 2, out.Candidates)
}

func TestVerify_Mismatch_ReportsClosestReference(t *testing.T) {
	v, refDir, _ := newTestVerifier(t, imgcmp.DefaultOptions())
	writeTestPNG(t, refDir, loginName+".png", filled(48, 32, white))
	closest := writeTestPNG(t, refDir, loginName+"_2.png", filled(100, 100, white))
	writeTestPNG(t, refDir, loginName+"_3.png", filled(100, 100, black))
	cand := withSquare(filled(100, 100, white), image.Rect(40, 40, 60, 60), black)

	out, err := v.Verify(testContext(), login, cand)
	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.False(t, out.Missing)
	assert.Equal(t, closest, out.Reference)
	assert.Equal(t, []image.Point{{2, 2}, {3, 2}, {2, 3}, {3, 3}}, out.Result.Diff.Blocks())

	rep, err := v.Reporter.ReadReport(loginName)
	require.NoError(t, err)
	assert.Equal(t, closest, rep.Reference)
	assert.Len(t, rep.FailingBlocks, 4)
	assert.True(t, util.FileExists(v.Reporter.DiffPath(loginName)))
	assert.Equal(t, int64(1), v.testCount(resultFail))
}

func TestVerify_BlinkingCursor_Passes(t *testing.T) {
	v, refDir, _ := newTestVerifier(t, imgcmp.DefaultOptions())
	writeTestPNG(t, refDir, loginName+".png", filled(64, 64, white))
	cand := withSquare(filled(64, 64, white), image.Rect(20, 3, 22, 13), black)

	out, err := v.Verify(testContext(), login, cand)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.True(t, out.Result.CursorForgiven)
}

func TestVerify_HiDPICapture_ComparedInLogicalPixels(t *testing.T) {
	opts := imgcmp.DefaultOptions()
	opts.CandidatePolicy = block.PolicyForRatio(2)
	v, refDir, _ := newTestVerifier(t, opts)

	// Without a reference the archived screenshot is in logical pixels.
	_, err := v.Verify(testContext(), login, filled(64, 64, white))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), readTestPNG(t, v.Reporter.ScreenshotPath(loginName)).Bounds())

	writeTestPNG(t, refDir, loginName+".png", filled(32, 32, white))
	out, err := v.Verify(testContext(), login, filled(64, 64, white))
	require.NoError(t, err)
	assert.True(t, out.Passed)
}

func TestVerify_CorruptReference_ReturnsError(t *testing.T) {
	v, refDir, _ := newTestVerifier(t, imgcmp.DefaultOptions())
	require.NoError(t, os.MkdirAll(refDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(refDir, loginName+".png"), []byte("garbage"), 0644))

	_, err := v.Verify(context.Background(), login, filled(8, 8, white))
	assert.Error(t, err)
}

func TestVerify_InvalidDescriptor_ReturnsError(t *testing.T) {
	v, _, _ := newTestVerifier(t, imgcmp.DefaultOptions())
	_, err := v.Verify(context.Background(), Descriptor{ID: "login"}, filled(8, 8, white))
	assert.Error(t, err)
	_, err = v.Verify(context.Background(), login, nil)
	assert.Error(t, err)
}
