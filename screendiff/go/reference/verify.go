package reference

import (
	"context"
	"image"

	"go.skia.org/screendiff/go/metrics2"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/sklog"
	"go.skia.org/screendiff/go/timer"
	"go.skia.org/screendiff/screendiff/go/block"
	"go.skia.org/screendiff/screendiff/go/imgcmp"
)

const (
	verificationsMetric = "screendiff_verifications"
	verifyLatencyMetric = "screendiff_verify_seconds"

	resultPass    = "pass"
	resultFail    = "fail"
	resultMissing = "missing"
)

// Outcome describes the result of verifying one screenshot.
type Outcome struct {
	// Name is the resolved reference name.
	Name string

	// Passed is true if the screenshot matched one of the references.
	Passed bool

	// Missing is true if no reference exists yet. The screenshot was archived.
	Missing bool

	// Reference is the path of the matching reference, or of the closest one on failure.
	Reference string

	// Result is the comparison against Reference. nil if Missing.
	Result *imgcmp.Result

	// Candidates is the number of reference variants that were tried.
	Candidates int
}

// Verifier compares captured screenshots against the references in a Store and archives the
// failures with a Reporter. A Verifier is safe for concurrent use as long as concurrent calls
// verify different reference names.
type Verifier struct {
	Store    *Store
	Reporter *Reporter

	// Options for each comparison. The CandidatePolicy is applied once per Verify call, so the
	// archived screenshot is in logical pixels like the references.
	Options imgcmp.Options

	// Metrics receives the verification counters. nil uses the default registry.
	Metrics *metrics2.Client
}

// NewVerifier returns a Verifier with the given options.
func NewVerifier(store *Store, reporter *Reporter, opts imgcmp.Options) *Verifier {
	return &Verifier{
		Store:    store,
		Reporter: reporter,
		Options:  opts,
	}
}

// Verify compares img against every accepted variant of the reference for desc and passes if
// any of them is equal. A missing reference is not an error: the screenshot is archived and
// the Outcome reports Missing. Errors are returned for invalid input and I/O failures only.
func (v *Verifier) Verify(ctx context.Context, desc Descriptor, img image.Image) (*Outcome, error) {
	if err := desc.Validate(); err != nil {
		return nil, skerr.Wrap(err)
	}
	if img == nil {
		return nil, skerr.Fmt("no screenshot to verify for %s", desc.ID)
	}
	name := desc.FileName()
	defer timer.NewWithSummary("verify "+name, v.summary()).Stop()

	policy := v.Options.CandidatePolicy
	if policy == nil {
		policy = block.Exact{}
	}
	cand := policy.Logical(img)
	opts := v.Options
	opts.CandidatePolicy = nil

	paths, err := v.Store.Candidates(name)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	if len(paths) == 0 {
		sklog.Warningf("No reference for %s; archiving screenshot to %s", name, v.Reporter.ScreenshotPath(name))
		if err := v.Reporter.WriteMissing(ctx, name, cand); err != nil {
			return nil, skerr.Wrapf(err, "archiving screenshot without reference")
		}
		v.count(resultMissing)
		return &Outcome{Name: name, Missing: true}, nil
	}

	ret := &Outcome{Name: name, Candidates: len(paths)}
	for _, p := range paths {
		ref, err := v.Store.Load(p)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		res, err := imgcmp.Compare(ref, cand, opts)
		if err != nil {
			return nil, skerr.Wrapf(err, "comparing against %s", p)
		}
		if res.Equal() {
			if res.CursorForgiven {
				sklog.Debugf("%s matched %s after ignoring a text cursor", name, p)
			}
			if err := v.Reporter.Clear(name); err != nil {
				return nil, skerr.Wrap(err)
			}
			v.count(resultPass)
			ret.Passed = true
			ret.Reference = p
			ret.Result = res
			return ret, nil
		}
		if ret.Result == nil || closer(res, ret.Result) {
			ret.Reference = p
			ret.Result = res
		}
	}

	sklog.Infof("%s matches none of %d references; %d blocks differ from %s", name, len(paths), ret.Result.Diff.Count(), ret.Reference)
	if err := v.Reporter.WriteFailure(ctx, name, cand, ret.Reference, ret.Result); err != nil {
		return nil, skerr.Wrapf(err, "archiving failed screenshot")
	}
	v.count(resultFail)
	return ret, nil
}

// closer returns true if a is a closer match than b: same size beats different size, then
// fewer failing blocks wins.
func closer(a, b *imgcmp.Result) bool {
	if a.SizesDiffer != b.SizesDiffer {
		return !a.SizesDiffer
	}
	return a.Diff.Count() < b.Diff.Count()
}

func (v *Verifier) count(result string) {
	tags := map[string]string{"result": result}
	if v.Metrics != nil {
		v.Metrics.GetCounter(verificationsMetric, tags).Inc(1)
		return
	}
	metrics2.GetCounter(verificationsMetric, tags).Inc(1)
}

func (v *Verifier) summary() metrics2.Float64SummaryMetric {
	if v.Metrics != nil {
		return v.Metrics.GetFloat64SummaryMetric(verifyLatencyMetric)
	}
	return metrics2.GetFloat64SummaryMetric(verifyLatencyMetric)
}
