package reference

import (
	"os"
	"strings"

	"github.com/otiai10/copy"
	"go.skia.org/screendiff/go/fileutil"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/sklog"
)

// Promote accepts the screenshot archived by reporter for the named reference as a new
// reference variant in store, and returns the path it was written to. The archived artifacts
// are removed afterwards.
func Promote(reporter *Reporter, store *Store, name string) (string, error) {
	src := reporter.ScreenshotPath(name)
	if _, err := os.Stat(src); err != nil {
		return "", skerr.Wrapf(err, "no archived screenshot for %s", name)
	}
	if _, err := fileutil.EnsureDirExists(store.Dir()); err != nil {
		return "", skerr.Wrap(err)
	}
	dst, err := store.NextVariant(name)
	if err != nil {
		return "", skerr.Wrap(err)
	}
	if err := copy.Copy(src, dst, copy.Options{Sync: true}); err != nil {
		return "", skerr.Wrapf(err, "copying %s to %s", src, dst)
	}
	sklog.Infof("Promoted %s to %s", src, dst)
	if err := reporter.Clear(name); err != nil {
		return "", skerr.Wrap(err)
	}
	return dst, nil
}

// Archived returns the reference names with an archived screenshot in the reporter's directory.
func Archived(reporter *Reporter) ([]string, error) {
	entries, err := os.ReadDir(reporter.Dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "listing %s", reporter.Dir())
	}
	var ret []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, Ext) || strings.HasSuffix(n, diffSuffix) {
			continue
		}
		ret = append(ret, strings.TrimSuffix(n, Ext))
	}
	return ret, nil
}
