package screenshot

import (
	"context"
	"sync"

	multierror "github.com/hashicorp/go-multierror"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/screendiff/go/reference"
	"golang.org/x/sync/errgroup"
)

// Job is an independent unit of screenshot work, typically all the checks for one browser.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunParallel runs the jobs with at most limit of them at a time, or all at once if limit is
// not positive. Every job runs to completion even if others fail; the failures are returned
// together.
func RunParallel(ctx context.Context, limit int, jobs []Job) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	var mutex sync.Mutex
	var errs *multierror.Error
	for _, job := range jobs {
		g.Go(func() error {
			if err := job.Run(ctx); err != nil {
				mutex.Lock()
				defer mutex.Unlock()
				errs = multierror.Append(errs, skerr.Wrapf(err, "job %s", job.Name))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs.ErrorOrNil()
}

// VerifyJob returns a Job that fails if the screenshot from c does not match its reference.
func VerifyJob(a *Asserter, c Capturer, desc reference.Descriptor) Job {
	return Job{
		Name: desc.FileName(),
		Run: func(ctx context.Context) error {
			out, err := a.Check(ctx, c, desc)
			if err != nil {
				return skerr.Wrap(err)
			}
			switch {
			case out.Missing:
				return skerr.Fmt("no reference for %s; screenshot archived", out.Name)
			case !out.Passed:
				return skerr.Fmt("%s does not match %s: %d blocks differ", out.Name, out.Reference, out.Result.Diff.Count())
			}
			return nil
		},
	}
}
