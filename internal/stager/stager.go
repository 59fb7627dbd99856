package stager

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/logger"
	"github.com/agentforge/controlplane/internal/objectstore"
)

// Stager materializes input_files entries under a session's workspace
// inputs/ directory. It holds no state of its own: re-running it against
// the same entry list is idempotent (files overwritten, repo directories
// removed and recloned).
type Stager struct {
	store         objectstore.Store
	workspaceRoot string
	cloneTimeout  int // seconds, 0 means no explicit deadline beyond ctx
	log           *logger.Logger
}

func New(store objectstore.Store, workspaceRoot string, log *logger.Logger) *Stager {
	if log == nil {
		log = logger.Default()
	}
	return &Stager{
		store:         store,
		workspaceRoot: workspaceRoot,
		log:           log.With(zap.String("component", "stager")),
	}
}

// Stage materializes every entry under <workspaceRoot>/<sessionID>/workspace/inputs/
// and returns the staged descriptors for entries that succeeded. Entries
// that fail a safety check (path traversal) are dropped silently per
// spec.md §4.3, but logged.
func (s *Stager) Stage(ctx context.Context, sessionID string, entries []Entry) ([]Staged, error) {
	inputsDir := filepath.Join(s.workspaceRoot, sessionID, "workspace", "inputs")
	if err := os.MkdirAll(inputsDir, 0o755); err != nil {
		return nil, apperr.Wrap(err, "create inputs directory")
	}

	out := make([]Staged, 0, len(entries))
	for _, entry := range entries {
		staged, ok, err := s.stageOne(ctx, inputsDir, entry)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, staged)
		}
	}
	return out, nil
}

func (s *Stager) stageOne(ctx context.Context, inputsDir string, entry Entry) (Staged, bool, error) {
	switch strings.ToLower(entry.Type) {
	case "file":
		return s.stageFile(ctx, inputsDir, entry)
	case "url":
		return s.stageURL(ctx, inputsDir, entry)
	default:
		s.log.Warn("dropping input_files entry with unknown type", zap.String("type", entry.Type))
		return Staged{}, false, nil
	}
}

func (s *Stager) stageFile(ctx context.Context, inputsDir string, entry Entry) (Staged, bool, error) {
	relPath := firstNonEmpty(entry.TargetPath, entry.Name, filepath.Base(entry.Source))
	dest, ok := safeJoin(inputsDir, relPath)
	if !ok {
		s.log.Warn("dropping input_files entry with unsafe target path",
			zap.String("source", entry.Source), zap.String("target_path", relPath))
		return Staged{}, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Staged{}, false, apperr.Wrap(err, "create input parent directory")
	}

	body, err := s.store.Get(ctx, entry.Source)
	if err != nil {
		return Staged{}, false, err
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return Staged{}, false, apperr.Wrap(err, "create staged file")
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return Staged{}, false, apperr.Wrap(err, "write staged file")
	}

	name := firstNonEmpty(entry.Name, filepath.Base(relPath))
	return Staged{
		Type:   entry.Type,
		Name:   name,
		Source: entry.Source,
		Path:   "/inputs/" + filepath.ToSlash(relPath),
	}, true, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// safeJoin joins base and rel, rejecting any rel whose normalized segments
// are empty, ".", "..", or which escape base once cleaned.
func safeJoin(base, rel string) (string, bool) {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	if rel == "" {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}

	joined := filepath.Join(base, filepath.FromSlash(rel))
	if !strings.HasPrefix(joined, filepath.Clean(base)+string(os.PathSeparator)) {
		return "", false
	}
	return joined, true
}
