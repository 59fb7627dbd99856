package executormanager

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/httpmw"
)

// WorkspaceFileInfo describes one entry under a session's live workspace
// tree, returned by GET /sessions/{id}/workspace/files (spec.md §6) once
// the backend proxies the request here.
type WorkspaceFileInfo struct {
	Path  string    `json:"path"` // workspace-relative, slash-separated
	Size  int64     `json:"size"`
	IsDir bool      `json:"is_dir"`
	MTime time.Time `json:"mtime"`
}

// WorkspaceProxy serves the two workspace read endpoints the backend
// redirects/proxies to: a listing of every file under a session's
// workspace directory, and a single file's content.
type WorkspaceProxy struct {
	workspaceRoot string
}

func NewWorkspaceProxy(workspaceRoot string) *WorkspaceProxy {
	return &WorkspaceProxy{workspaceRoot: workspaceRoot}
}

// Register mounts the proxy's routes on group, matching the path shape the
// backend forwards: /sessions/:id/workspace/files and
// /sessions/:id/workspace/file.
func (p *WorkspaceProxy) Register(group gin.IRouter) {
	group.GET("/sessions/:id/workspace/files", p.handleList)
	group.GET("/sessions/:id/workspace/file", p.handleFile)
}

func (p *WorkspaceProxy) handleList(c *gin.Context) {
	sessionID := c.Param("id")
	files, err := p.ListFiles(sessionID)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"files": files})
}

func (p *WorkspaceProxy) handleFile(c *gin.Context) {
	sessionID := c.Param("id")
	path := c.Query("path")
	if path == "" {
		httpmw.Fail(c, apperr.BadRequest("path is required"))
		return
	}

	full, ok := safeWorkspacePath(p.workspaceRoot, sessionID, path)
	if !ok {
		httpmw.Fail(c, apperr.BadRequest("invalid workspace path"))
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		httpmw.Fail(c, apperr.NotFound("workspace file", path))
		return
	}
	c.File(full)
}

// ListFiles walks a session's workspace directory and returns every regular
// file and directory beneath it, relative to the workspace root.
func (p *WorkspaceProxy) ListFiles(sessionID string) ([]WorkspaceFileInfo, error) {
	root := filepath.Join(p.workspaceRoot, sessionID, "workspace")
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return []WorkspaceFileInfo{}, nil
		}
		return nil, apperr.Wrap(err, "stat workspace root")
	}

	var out []WorkspaceFileInfo
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		out = append(out, WorkspaceFileInfo{
			Path:  filepath.ToSlash(rel),
			Size:  info.Size(),
			IsDir: d.IsDir(),
			MTime: info.ModTime(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, apperr.Wrap(walkErr, "walk workspace directory")
	}
	return out, nil
}

// safeWorkspacePath resolves a client-supplied relative path against a
// session's workspace directory, rejecting any path that escapes it. Mirrors
// the stager's safeJoin: empty/"."/".." segments are rejected outright, and
// the cleaned result must stay under the workspace directory.
func safeWorkspacePath(workspaceRoot, sessionID, relPath string) (string, bool) {
	base := filepath.Join(workspaceRoot, sessionID, "workspace")
	rel := strings.TrimPrefix(filepath.ToSlash(relPath), "/")
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
