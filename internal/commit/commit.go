// Package commit is the persistence adapter: it turns a computed change
// list into file writes. Writes are atomic per file; there is no
// multi-file rollback, so a failure mid-list leaves earlier files
// written (the caller surfaces this rather than hiding it).
package commit

import (
	"context"
	"os"
	"path/filepath"

	recasterr "recast/internal/errors"
	"recast/internal/logging"
	"recast/internal/operation"
	"recast/internal/paths"
)

// Result lists which workspace-relative paths a commit touched.
type Result struct {
	Modified []string `json:"modified"`
	Created  []string `json:"created"`
	Deleted  []string `json:"deleted"`
}

// Total returns the number of files touched.
func (r *Result) Total() int {
	return len(r.Modified) + len(r.Created) + len(r.Deleted)
}

// Committer writes changes under a workspace root.
type Committer struct {
	root   string
	logger *logging.Logger
}

func New(root string, logger *logging.Logger) *Committer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Committer{root: root, logger: logger}
}

// Apply writes every change in order. Cancellation is observed between
// files, never inside one: once a file's write starts it completes or
// fails whole. Unchanged documents never appear in the input because
// the change list is materialized content-diffed.
func (c *Committer) Apply(ctx context.Context, changes []operation.Change) (*Result, error) {
	res := &Result{}
	for _, ch := range changes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		full := paths.JoinWorkspacePath(c.root, ch.Path)
		switch ch.Kind {
		case operation.ChangeDelete:
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return res, recasterr.Wrap(recasterr.CommitFailed, "deleting "+ch.Path, err)
			}
			res.Deleted = append(res.Deleted, ch.Path)
		case operation.ChangeCreate:
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return res, recasterr.Wrap(recasterr.CommitFailed, "creating directory for "+ch.Path, err)
			}
			if err := writeAtomic(full, ch.New); err != nil {
				return res, recasterr.Wrap(recasterr.CommitFailed, "writing "+ch.Path, err)
			}
			res.Created = append(res.Created, ch.Path)
		case operation.ChangeModify:
			if err := writeAtomic(full, ch.New); err != nil {
				return res, recasterr.Wrap(recasterr.CommitFailed, "writing "+ch.Path, err)
			}
			res.Modified = append(res.Modified, ch.Path)
		default:
			return res, recasterr.New(recasterr.InternalError, "unknown change kind "+string(ch.Kind))
		}
		c.logger.Debug("committed change", map[string]interface{}{
			"path": ch.Path,
			"kind": string(ch.Kind),
		})
	}
	return res, nil
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place. The temp artifact is removed on any failure.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
