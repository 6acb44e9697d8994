package datadir

import (
	"context"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/geocatalog/pkg/parallel"
	"github.com/geocatalog/pkg/utils"
)

// ByteLoader reads whole files on behalf of pool workers. Reads go through
// Pool.ManagedBlock so the pool can start a spare worker while one waits on
// the filesystem.
type ByteLoader struct {
	fs     billy.Filesystem
	pool   *parallel.Pool
	logger utils.Logger
}

// NewByteLoader returns a loader for fs. pool may be nil.
func NewByteLoader(fs billy.Filesystem, pool *parallel.Pool, logger utils.Logger) *ByteLoader {
	return &ByteLoader{fs: fs, pool: pool, logger: utils.OrNull(logger)}
}

// Load returns the content of the file at path. It reports false when the
// file cannot be read or ctx is cancelled; failures are logged, never returned.
func (l *ByteLoader) Load(ctx context.Context, path string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	r := &fileRead{ctx: ctx, fs: l.fs, path: path}
	var err error
	if l.pool != nil {
		err = l.pool.ManagedBlock(ctx, r)
	} else {
		_, err = r.Block()
	}
	if err == nil {
		err = r.err
	}
	if err != nil {
		if ctx.Err() != nil {
			l.logger.Debug("Interrupted while reading %s", path)
		} else {
			l.logger.Error("Failed to load %s: %v", path, err)
		}
		return nil, false
	}
	return r.data, true
}

// fileRead is a parallel.Blocker reading one file.
type fileRead struct {
	ctx  context.Context
	fs   billy.Filesystem
	path string

	done bool
	data []byte
	err  error
}

func (r *fileRead) Block() (bool, error) {
	if r.done {
		return true, nil
	}
	if err := r.ctx.Err(); err != nil {
		return false, err
	}
	r.data, r.err = util.ReadFile(r.fs, r.path)
	r.done = true
	return true, nil
}

func (r *fileRead) IsReleasable() bool { return r.done }
