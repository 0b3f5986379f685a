package fileutil

import (
	"os"
	"path/filepath"

	"go.skia.org/screendiff/go/skerr"
)

// EnsureDirExists checks whether the given path to a directory exits and creates it
// if necessary. Returns the absolute path that corresponds to the input path
// and an error indicating a problem.
func EnsureDirExists(dirPath string) (string, error) {
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return "", skerr.Wrapf(err, "resolving %s", dirPath)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return "", skerr.Wrapf(err, "creating %s", absPath)
	}
	return absPath, nil
}
