package reference

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/util"
	"go.skia.org/screendiff/screendiff/go/block"
)

const (
	// Ext is the extension of reference and archived screenshots.
	Ext = ".png"

	// DefaultCacheSize is the number of decoded reference images kept in memory.
	DefaultCacheSize = 64
)

// VariantFileName returns the file name of the n-th accepted variant of a reference, starting
// at 1: "name.png", "name_2.png", "name_3.png", ...
func VariantFileName(name string, n int) string {
	if n <= 1 {
		return name + Ext
	}
	return fmt.Sprintf("%s_%d%s", name, n, Ext)
}

type cacheKey struct {
	path  string
	size  int64
	mtime int64
}

// Store reads reference screenshots from a directory. Decoded images are cached and must not be
// modified by callers. A Store is safe for concurrent use.
type Store struct {
	dir   string
	cache *lru.Cache
}

// NewStore returns a Store for the given directory, caching up to cacheSize decoded images.
func NewStore(dir string, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, skerr.Wrapf(err, "creating reference cache of size %d", cacheSize)
	}
	return &Store{
		dir:   dir,
		cache: c,
	}, nil
}

// Dir returns the reference directory.
func (s *Store) Dir() string {
	return s.dir
}

// Candidates returns the paths of all accepted variants of the named reference, in variant
// order. Enumeration stops at the first missing variant. An empty result means no reference
// exists yet.
func (s *Store) Candidates(name string) ([]string, error) {
	var ret []string
	for n := 1; ; n++ {
		p := filepath.Join(s.dir, VariantFileName(name, n))
		_, err := os.Stat(p)
		if os.IsNotExist(err) {
			return ret, nil
		}
		if err != nil {
			return nil, skerr.Wrapf(err, "checking reference %s", p)
		}
		ret = append(ret, p)
	}
}

// NextVariant returns the path the next accepted variant of the named reference should be
// written to.
func (s *Store) NextVariant(name string) (string, error) {
	existing, err := s.Candidates(name)
	if err != nil {
		return "", skerr.Wrap(err)
	}
	return filepath.Join(s.dir, VariantFileName(name, len(existing)+1)), nil
}

// Load decodes the PNG at path. Images are cached until the file changes.
func (s *Store) Load(path string) (*image.NRGBA, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, skerr.Wrapf(err, "loading reference %s", path)
	}
	key := cacheKey{path: path, size: fi.Size(), mtime: fi.ModTime().UnixNano()}
	if img, ok := s.cache.Get(key); ok {
		return img.(*image.NRGBA), nil
	}
	var img *image.NRGBA
	err = util.WithReadFile(path, func(r io.Reader) error {
		decoded, err := png.Decode(r)
		if err != nil {
			return err
		}
		img = block.ToNRGBA(decoded)
		return nil
	})
	if err != nil {
		return nil, skerr.Wrapf(err, "decoding reference %s", path)
	}
	s.cache.Add(key, img)
	return img, nil
}
