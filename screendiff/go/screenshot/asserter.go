package screenshot

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/sklog"
	"go.skia.org/screendiff/screendiff/go/reference"
)

const (
	// DefaultRetries is the number of extra attempts after a mismatch.
	DefaultRetries = 2

	// DefaultDelay is the pause between attempts, giving animations time to settle.
	DefaultDelay = 500 * time.Millisecond
)

var errMismatch = errors.New("screenshot does not match reference")

// Verifier verifies a screenshot against its references. It is implemented by
// *reference.Verifier.
type Verifier interface {
	Verify(ctx context.Context, desc reference.Descriptor, img image.Image) (*reference.Outcome, error)
}

// Asserter repeatedly captures and verifies a screenshot until it matches or the attempts run
// out.
type Asserter struct {
	Verifier Verifier

	// Retries is the number of attempts after the first one.
	Retries int

	// Delay between attempts.
	Delay time.Duration
}

// NewAsserter returns an Asserter with the default retry policy.
func NewAsserter(v Verifier) *Asserter {
	return &Asserter{
		Verifier: v,
		Retries:  DefaultRetries,
		Delay:    DefaultDelay,
	}
}

// Check captures and verifies until the screenshot matches, and returns the last Outcome.
// Mismatches and capture or I/O errors are retried. A missing reference is not retried. If the
// attempts run out on an error, that error is returned.
func (a *Asserter) Check(ctx context.Context, c Capturer, desc reference.Descriptor) (*reference.Outcome, error) {
	var last *reference.Outcome
	attempt := 0
	op := func() error {
		attempt++
		img, err := c.Capture(ctx)
		if err != nil {
			return skerr.Wrapf(err, "capturing %s", desc.ID)
		}
		out, err := a.Verifier.Verify(ctx, desc, img)
		if err != nil {
			return skerr.Wrap(err)
		}
		last = out
		switch {
		case out.Passed:
			return nil
		case out.Missing:
			return backoff.Permanent(errMismatch)
		default:
			return errMismatch
		}
	}
	notify := func(err error, d time.Duration) {
		sklog.Infof("Attempt %d for %s failed, retrying in %s: %s", attempt, desc.ID, d, err)
	}
	retries := a.Retries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(a.Delay), uint64(retries)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	if err != nil && !errors.Is(err, errMismatch) {
		return last, skerr.Wrapf(err, "verifying %s after %d attempts", desc.ID, attempt)
	}
	return last, nil
}

// Matches returns true if a screenshot captured by c matches one of the references for desc
// within the configured attempts.
func (a *Asserter) Matches(ctx context.Context, c Capturer, desc reference.Descriptor) (bool, error) {
	out, err := a.Check(ctx, c, desc)
	if err != nil {
		return false, skerr.Wrap(err)
	}
	return out != nil && out.Passed, nil
}
