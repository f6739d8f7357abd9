package workspace

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"recast/internal/config"
	recasterr "recast/internal/errors"
	"recast/internal/logging"
	"recast/internal/paths"
	"recast/internal/source"
)

// Workspace loads source documents from disk into immutable snapshots.
// It is the only component that reads source files; everything past it
// operates on snapshot values.
type Workspace struct {
	Root     string
	Config   *config.Config
	Manifest *Manifest

	logger *logging.Logger
}

// Open validates the workspace root and reads the manifest if present.
func Open(root string, cfg *config.Config, logger *logging.Logger) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, recasterr.Wrap(recasterr.PathInvalid, "cannot resolve workspace root", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, recasterr.Wrap(recasterr.PathInvalid, "workspace root does not exist", err)
	}
	if !info.IsDir() {
		return nil, recasterr.New(recasterr.PathInvalid, "workspace root is not a directory")
	}
	manifest, err := LoadManifest(abs)
	if err != nil {
		return nil, recasterr.Wrap(recasterr.ParamInvalid, "invalid workspace manifest", err)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Workspace{Root: abs, Config: cfg, Manifest: manifest, logger: logger}, nil
}

// Load walks the workspace and builds a snapshot of every matching
// document. Declared manifest roots restrict the walk when present.
func (w *Workspace) Load(ctx context.Context) (*source.Snapshot, error) {
	start := time.Now()
	var docs []*source.Document

	walkRoots := []walkRoot{{dir: w.Root}}
	if w.Manifest != nil && len(w.Manifest.Roots) > 0 {
		walkRoots = walkRoots[:0]
		for i := range w.Manifest.Roots {
			r := &w.Manifest.Roots[i]
			walkRoots = append(walkRoots, walkRoot{
				dir:     paths.JoinWorkspacePath(w.Root, r.Path),
				exclude: r.Exclude,
			})
		}
	}

	seen := make(map[string]bool)
	for _, wr := range walkRoots {
		loaded, err := w.walkRoot(ctx, wr, seen)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}

	w.logger.Info("workspace loaded", map[string]interface{}{
		"root":      w.Root,
		"documents": len(docs),
		"elapsedMs": time.Since(start).Milliseconds(),
	})
	return source.NewSnapshot(docs), nil
}

// Reload derives a new snapshot after the given workspace-relative
// paths changed on disk. Paths that no longer exist become removals.
func (w *Workspace) Reload(ctx context.Context, snap *source.Snapshot, changed []string) (*source.Snapshot, error) {
	var upserts []*source.Document
	var removals []string
	for _, p := range changed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		canonical := paths.NormalizePath(p)
		full := paths.JoinWorkspacePath(w.Root, canonical)
		content, err := os.ReadFile(full)
		if os.IsNotExist(err) {
			if snap.Document(canonical) != nil {
				removals = append(removals, canonical)
			}
			continue
		}
		if err != nil {
			w.logger.Warn("skipping unreadable document", map[string]interface{}{
				"path":  canonical,
				"error": err.Error(),
			})
			continue
		}
		upserts = append(upserts, source.NewDocument(canonical, content))
	}
	return snap.Derive(upserts, removals), nil
}

type walkRoot struct {
	dir     string
	exclude []string
}

func (w *Workspace) walkRoot(ctx context.Context, wr walkRoot, seen map[string]bool) ([]*source.Document, error) {
	var docs []*source.Document
	maxSize := int64(w.Config.Workspace.MaxFileSizeBytes)

	err := filepath.Walk(wr.dir, func(fullPath string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := info.Name()
		if info.IsDir() {
			if fullPath == wr.dir {
				return nil
			}
			if strings.HasPrefix(name, ".") || w.ignoredDir(name) || contains(wr.exclude, name) {
				return filepath.SkipDir
			}
			return nil
		}
		if maxSize > 0 && info.Size() > maxSize {
			w.logger.Debug("skipping oversized document", map[string]interface{}{
				"path": fullPath,
				"size": info.Size(),
			})
			return nil
		}
		canonical, err := paths.CanonicalizePath(fullPath, w.Root)
		if err != nil || seen[canonical] {
			return nil
		}
		if !w.matchesInclude(canonical) {
			return nil
		}
		content, readErr := os.ReadFile(fullPath)
		if readErr != nil {
			w.logger.Warn("skipping unreadable document", map[string]interface{}{
				"path":  canonical,
				"error": readErr.Error(),
			})
			return nil
		}
		seen[canonical] = true
		docs = append(docs, source.NewDocument(canonical, content))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, recasterr.Wrap(recasterr.PathInvalid, "workspace walk failed", err)
	}
	return docs, nil
}

func (w *Workspace) ignoredDir(name string) bool {
	return contains(w.Config.Workspace.Ignore, name)
}

// matchesInclude applies the configured include patterns to a
// canonical path. A pattern starting with "**/" matches against the
// basename; anything else matches the whole canonical path.
func (w *Workspace) matchesInclude(canonical string) bool {
	include := w.Config.Workspace.Include
	if len(include) == 0 {
		return strings.HasSuffix(canonical, ".cs")
	}
	base := path.Base(canonical)
	for _, pattern := range include {
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matched, _ := path.Match(rest, base); matched {
				return true
			}
			continue
		}
		if matched, _ := path.Match(pattern, canonical); matched {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
