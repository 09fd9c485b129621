package ember

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileServant serves files from a base directory on disk. It holds only the
// directory path; the filesystem itself stays external and is consulted on
// every request unless the in-memory asset cache is on.
//
// Only GET requests reach a `FileServant`. The unmatched tail of the request
// path is resolved against the base directory with every ".." sequence
// stripped first. Missing targets yield 404. A directory serves its
// "index.html" when present and 403 otherwise. Hidden files, meaning any
// path component starting with '.', yield 403 as well.
type FileServant struct {
	server    *Server
	root      string
	cacheOnce sync.Once
	cache     *assetCache
}

// newFileServant returns a new instance of the `FileServant` serving the
// directory for the s.
func newFileServant(s *Server, directory string) *FileServant {
	return &FileServant{
		server: s,
		root:   directory,
	}
}

// serve resolves the remaining path of the req inside the base directory of
// the fs and materializes the matching response.
func (fs *FileServant) serve(req *Request) *Response {
	remaining := strings.ReplaceAll(req.RemainingPath, "..", "")

	target := filepath.Join(fs.root, filepath.FromSlash(remaining))
	fi, err := os.Stat(target)
	if err != nil {
		return NotFound(req.Path)
	}

	if fi.IsDir() {
		index := filepath.Join(target, "index.html")
		if _, err := os.Stat(index); err != nil {
			return Forbidden("directory has no index")
		}

		target = index
	}

	if hiddenPath(remaining) {
		return Forbidden("hidden file")
	}

	b, err := fs.read(target)
	if err != nil {
		return NotFound(req.Path)
	}

	res := NewResponse(200)
	res.Header.Set("Content-Type", detectContentType(target, b))
	res.Body = b

	return res
}

// read returns the content of the file targeted by the name, going through
// the asset cache when the feature is on. The cache is built on first use so
// that configuration loaded at start time is honored.
func (fs *FileServant) read(name string) ([]byte, error) {
	if fs.server.AssetCacheEnabled {
		fs.cacheOnce.Do(func() {
			fs.cache = newAssetCache(
				fs.server.AssetCacheMaxBytes,
				fs.server.Logger,
			)
		})

		return fs.cache.read(name)
	}

	return os.ReadFile(name)
}

// hiddenPath reports whether any component of the p is a dotfile.
func hiddenPath(p string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(p), "/") {
		if len(segment) > 1 && segment[0] == '.' {
			return true
		}
	}

	return false
}

// assetCache keeps file contents in runtime memory to reduce the disk I/O
// pressure of a `FileServant`. Contents live in a fastcache keyed by the
// xxhash digest of the file name; a filesystem watcher evicts entries as
// soon as the file underneath them changes.
type assetCache struct {
	assets  sync.Map
	cache   *fastcache.Cache
	watcher *fsnotify.Watcher
	logger  logrus.FieldLogger
}

// asset is one cached file.
type asset struct {
	name     string
	key      [8]byte
	modTime  int64
	checksum uint64
}

// newAssetCache returns a new instance of the `assetCache` holding at most
// maxBytes of content.
func newAssetCache(maxBytes int, logger logrus.FieldLogger) *assetCache {
	c := &assetCache{
		cache:  fastcache.New(maxBytes),
		logger: logger,
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		panic(fmt.Errorf(
			"ember: failed to build asset cache watcher: %v",
			err,
		))
	}

	c.watcher = watcher

	go func() {
		for {
			select {
			case e, ok := <-watcher.Events:
				if !ok {
					return
				}

				c.evict(e.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				c.logger.WithError(err).Warn(
					"ember: asset cache watcher error",
				)
			}
		}
	}()

	return c
}

// read returns the content of the file targeted by the name, loading and
// caching it on first use.
func (c *assetCache) read(name string) ([]byte, error) {
	if ai, ok := c.assets.Load(name); ok {
		a := ai.(*asset)
		if b := c.cache.Get(nil, a.key[:]); len(b) > 0 &&
			xxhash.Sum64(b) == a.checksum {
			return b, nil
		}

		c.evict(name)
	}

	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	a := &asset{
		name:     name,
		modTime:  fi.ModTime().UnixNano(),
		checksum: xxhash.Sum64(b),
	}
	binary.BigEndian.PutUint64(a.key[:], xxhash.Sum64String(name))

	if err := c.watcher.Add(name); err != nil {
		// Still serve the content; it just will not be cached.
		return b, nil
	}

	c.cache.Set(a.key[:], b)
	c.assets.Store(name, a)

	return b, nil
}

// evict drops the cache entry of the file targeted by the name.
func (c *assetCache) evict(name string) {
	if ai, ok := c.assets.LoadAndDelete(name); ok {
		a := ai.(*asset)
		c.cache.Del(a.key[:])
	}
}
