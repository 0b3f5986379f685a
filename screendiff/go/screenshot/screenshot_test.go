package screenshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
	"go.skia.org/screendiff/go/metrics2"
	"go.skia.org/screendiff/screendiff/go/imgcmp"
	"go.skia.org/screendiff/screendiff/go/reference"
)

var (
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	black = color.NRGBA{A: 0xff}

	desc = reference.Descriptor{ID: "login", Browser: "chrome", Version: "114.0.5735.90"}
)

func filled(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// scriptedVerifier returns the scripted outcomes in order, repeating the last one.
type scriptedVerifier struct {
	mutex    sync.Mutex
	outcomes []*reference.Outcome
	errs     []error
	calls    int
}

func (s *scriptedVerifier) Verify(_ context.Context, d reference.Descriptor, _ image.Image) (*reference.Outcome, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	i := min(s.calls, len(s.outcomes)-1)
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	out := *s.outcomes[i]
	out.Name = d.FileName()
	return &out, nil
}

var (
	passed   = &reference.Outcome{Passed: true}
	mismatch = &reference.Outcome{}
	missing  = &reference.Outcome{Missing: true}
)

func whiteCapturer(calls *int32) Capturer {
	return CapturerFunc(func(ctx context.Context) (image.Image, error) {
		atomic.AddInt32(calls, 1)
		return filled(8, 8, white), nil
	})
}

func testAsserter(v Verifier) *Asserter {
	return &Asserter{Verifier: v, Retries: 2, Delay: time.Millisecond}
}

func TestAsserter_Matches_PassesAfterRetries(t *testing.T) {
	v := &scriptedVerifier{outcomes: []*reference.Outcome{mismatch, mismatch, passed}}
	var captures int32

	ok, err := testAsserter(v).Matches(context.Background(), whiteCapturer(&captures), desc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, v.calls)
	assert.Equal(t, int32(3), captures)
}

func TestAsserter_Matches_NeverMatches_FalseWithoutError(t *testing.T) {
	v := &scriptedVerifier{outcomes: []*reference.Outcome{mismatch}}
	var captures int32

	a := testAsserter(v)
	ok, err := a.Matches(context.Background(), whiteCapturer(&captures), desc)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, v.calls)

	out, err := a.Check(context.Background(), whiteCapturer(&captures), desc)
	require.NoError(t, err)
	assert.Equal(t, "login_unknown_chrome_114", out.Name)
	assert.False(t, out.Passed)
}

func TestAsserter_Matches_ZeroRetries_SingleAttempt(t *testing.T) {
	v := &scriptedVerifier{outcomes: []*reference.Outcome{mismatch, passed}}
	var captures int32

	a := testAsserter(v)
	a.Retries = 0
	ok, err := a.Matches(context.Background(), whiteCapturer(&captures), desc)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, v.calls)
}

func TestAsserter_Matches_MissingReference_NotRetried(t *testing.T) {
	v := &scriptedVerifier{outcomes: []*reference.Outcome{missing, passed}}
	var captures int32

	ok, err := testAsserter(v).Matches(context.Background(), whiteCapturer(&captures), desc)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, v.calls)
}

func TestAsserter_Matches_VerifyErrorThenPass(t *testing.T) {
	v := &scriptedVerifier{
		outcomes: []*reference.Outcome{nil, passed},
		errs:     []error{errors.New("disk on fire")},
	}
	var captures int32

	ok, err := testAsserter(v).Matches(context.Background(), whiteCapturer(&captures), desc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, v.calls)
}

func TestAsserter_Matches_CaptureAlwaysFails_ReturnsLastError(t *testing.T) {
	v := &scriptedVerifier{outcomes: []*reference.Outcome{passed}}
	attempts := 0
	c := CapturerFunc(func(ctx context.Context) (image.Image, error) {
		attempts++
		return nil, errors.New("session lost")
	})

	ok, err := testAsserter(v).Matches(context.Background(), c, desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session lost")
	assert.False(t, ok)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, v.calls)
}

func TestAsserter_Matches_CancelledContext_Error(t *testing.T) {
	v := &scriptedVerifier{outcomes: []*reference.Outcome{mismatch}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testAsserter(v).Matches(ctx, FileCapturer{Path: "unused.png"}, desc)
	assert.Error(t, err)
}

type fakeSession struct {
	png  []byte
	caps selenium.Capabilities
	err  error
}

func (f *fakeSession) Screenshot() ([]byte, error) {
	return f.png, f.err
}

func (f *fakeSession) Capabilities() (selenium.Capabilities, error) {
	return f.caps, f.err
}

func TestWebDriverCapturer_Capture_DecodesPNG(t *testing.T) {
	s := &fakeSession{png: encodePNG(t, filled(3, 2, black))}
	img, err := NewWebDriverCapturer(s).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
}

func TestWebDriverCapturer_Capture_Errors(t *testing.T) {
	_, err := NewWebDriverCapturer(&fakeSession{err: errors.New("no session")}).Capture(context.Background())
	assert.Error(t, err)
	_, err = NewWebDriverCapturer(&fakeSession{png: []byte("jpeg?")}).Capture(context.Background())
	assert.Error(t, err)
}

func TestDescriptorFromCapabilities(t *testing.T) {
	tests := []struct {
		name string
		caps selenium.Capabilities
		want string
	}{
		{
			name: "w3c",
			caps: selenium.Capabilities{"browserName": "chrome", "platformName": "Linux", "browserVersion": "114.0.5735.90"},
			want: "login_linux_chrome_114",
		},
		{
			name: "legacy",
			caps: selenium.Capabilities{"browserName": "firefox", "platform": "WINDOWS", "version": "102.0esr"},
			want: "login_windows_firefox_102",
		},
		{
			name: "no platform or version",
			caps: selenium.Capabilities{"browserName": "safari", "platformName": ""},
			want: "login_unknown_safari_unknown",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DescriptorFromCapabilities("login", tc.caps).FileName())
			d, err := NewWebDriverCapturer(&fakeSession{caps: tc.caps}).Descriptor("login")
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.FileName())
		})
	}
}

func TestRunParallel_RespectsLimitAndAggregatesErrors(t *testing.T) {
	var running, maxRunning int32
	var jobs []Job
	for i := 0; i < 6; i++ {
		fail := i%3 == 0
		jobs = append(jobs, Job{
			Name: string(rune('a' + i)),
			Run: func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					m := atomic.LoadInt32(&maxRunning)
					if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				if fail {
					return errors.New("boom")
				}
				return nil
			},
		})
	}

	err := RunParallel(context.Background(), 2, jobs)
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), "job a")
	assert.Contains(t, err.Error(), "job d")
	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(2))
}

func TestRunParallel_AllPass_Nil(t *testing.T) {
	assert.NoError(t, RunParallel(context.Background(), 0, []Job{
		{Name: "a", Run: func(ctx context.Context) error { return nil }},
		{Name: "b", Run: func(ctx context.Context) error { return nil }},
	}))
	assert.NoError(t, RunParallel(context.Background(), 4, nil))
}

func TestVerifyJob_EndToEndWithFiles(t *testing.T) {
	dir := t.TempDir()
	refDir := filepath.Join(dir, "refs")
	require.NoError(t, os.MkdirAll(refDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(refDir, "login_unknown_chrome_114.png"), encodePNG(t, filled(32, 32, white)), 0644))
	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(good, encodePNG(t, filled(32, 32, white)), 0644))
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, encodePNG(t, filled(32, 32, black)), 0644))

	store, err := reference.NewStore(refDir, 4)
	require.NoError(t, err)
	v := reference.NewVerifier(store, reference.NewReporter(filepath.Join(dir, "errors")), imgcmp.DefaultOptions())
	v.Metrics = metrics2.NewClient(prometheus.NewRegistry())
	a := &Asserter{Verifier: v, Retries: 1, Delay: time.Millisecond}

	chromeDesc := desc
	firefoxDesc := reference.Descriptor{ID: "login", Browser: "firefox"}
	err = RunParallel(context.Background(), 2, []Job{
		VerifyJob(a, FileCapturer{Path: good}, chromeDesc),
		VerifyJob(a, FileCapturer{Path: bad}, firefoxDesc),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reference for login_unknown_firefox_unknown")
	assert.NotContains(t, err.Error(), "login_unknown_chrome_114")
}

func TestFileCapturer_DecodesPNGAndText(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(pngPath, encodePNG(t, filled(5, 4, white)), 0644))
	textPath := filepath.Join(dir, "a.sktext")
	require.NoError(t, os.WriteFile(textPath, []byte("! SKTEXTSIMPLE\n2 1\n0x00 0xff\n"), 0644))

	img, err := FileCapturer{Path: pngPath}.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 4), img.Bounds())

	img, err = FileCapturer{Path: textPath}.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())
	assert.Equal(t, black, img.(*image.NRGBA).NRGBAAt(0, 0))

	_, err = FileCapturer{Path: filepath.Join(dir, "missing.png")}.Capture(context.Background())
	assert.Error(t, err)
}
