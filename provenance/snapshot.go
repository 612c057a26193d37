package provenance

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/pkg/log"
)

const (
	codeDir       = "code"
	frameworkName = "runtrack"
)

// vcsDirs are left out of the framework copy.
var vcsDirs = map[string]bool{".git": true, ".hg": true, ".svn": true}

// Snapshotter copies source trees into <logdir>/code.
type Snapshotter struct {
	frameworkDir string
	logger       log.Logger
}

// SnapshotterOption configures a Snapshotter.
type SnapshotterOption func(*Snapshotter)

// WithFrameworkDir sets the tree copied to code/runtrack. Defaults to the
// module source this package was built from. Version control metadata is
// not copied.
func WithFrameworkDir(dir string) SnapshotterOption {
	return func(s *Snapshotter) {
		s.frameworkDir = dir
	}
}

// WithSnapshotterLogger sets the logger.
func WithSnapshotterLogger(logger log.Logger) SnapshotterOption {
	return func(s *Snapshotter) {
		s.logger = logger
	}
}

// NewSnapshotter returns a Snapshotter.
func NewSnapshotter(opts ...SnapshotterOption) *Snapshotter {
	s := &Snapshotter{frameworkDir: defaultFrameworkDir()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("provenance")
	}
	return s
}

func defaultFrameworkDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Dir(filepath.Dir(file))
}

// Dump replaces code/runtrack with a copy of the framework tree and, when
// expdir is set, code/<basename of expdir> with a copy of expdir. It
// returns the destination directories.
func (s *Snapshotter) Dump(logdir, expdir string) ([]string, error) {
	if s.frameworkDir == "" {
		return nil, errors.NewCaptureError("code snapshot", "", errors.New("framework source directory is unknown"))
	}

	dst := filepath.Join(logdir, codeDir, frameworkName)
	if err := refreshCopy(s.frameworkDir, dst, vcsDirs); err != nil {
		return nil, errors.NewCaptureError("code snapshot", s.frameworkDir, err)
	}
	dirs := []string{dst}

	if expdir != "" {
		src, err := filepath.Abs(strings.TrimSuffix(expdir, "/"))
		if err != nil {
			return dirs, errors.NewCaptureError("experiment snapshot", expdir, err)
		}
		dst := filepath.Join(logdir, codeDir, filepath.Base(src))
		if err := refreshCopy(src, dst, nil); err != nil {
			return dirs, errors.NewCaptureError("experiment snapshot", src, err)
		}
		dirs = append(dirs, dst)
	}

	s.logger.Debug("code dumped", log.OperationKey, log.OperationDumpCode, log.LogdirKey, logdir, log.ExpdirKey, expdir)
	return dirs, nil
}

// refreshCopy removes dst and copies src into it, leaving out directories
// named in skip. A dst nested inside src is not copied into itself.
func refreshCopy(src, dst string, skip map[string]bool) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.Newf("%s is not a directory", src)
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(absDst, 0o755); err != nil {
		return err
	}
	if err := os.RemoveAll(absDst); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if abs == absDst {
			return filepath.SkipDir
		}
		if d.IsDir() && path != src && skip[d.Name()] {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(absDst, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		default:
			// sockets, devices and pipes
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
