package api

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/httpmw"
)

// handleWorkspaceFiles proxies GET /sessions/{id}/workspace/files to the
// executor manager, the only component with filesystem access to a
// session's live (not yet exported) workspace tree (SPEC_FULL.md §E.3.5).
func (s *Server) handleWorkspaceFiles(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	if s.workspaceManagerURL == "" {
		httpmw.Fail(c, apperr.Internal("workspace manager not configured"))
		return
	}

	target := s.workspaceManagerURL + "/sessions/" + sess.ID + "/workspace/files"
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
	if err != nil {
		httpmw.Fail(c, apperr.Wrap(err, "build workspace proxy request"))
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		httpmw.Fail(c, apperr.ExternalService("executor manager", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		httpmw.Fail(c, apperr.Wrap(err, "read workspace proxy response"))
		return
	}
	c.Data(resp.StatusCode, "application/json", body)
}

// handleWorkspaceFile implements GET /sessions/{id}/workspace/file?path=…
// as a 307 redirect into the executor manager, per spec.md §6.
func (s *Server) handleWorkspaceFile(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	path := c.Query("path")
	if path == "" {
		httpmw.Fail(c, apperr.BadRequest("path is required"))
		return
	}
	if s.workspaceManagerURL == "" {
		httpmw.Fail(c, apperr.Internal("workspace manager not configured"))
		return
	}

	target := s.workspaceManagerURL + "/sessions/" + sess.ID + "/workspace/file?path=" + url.QueryEscape(path)
	c.Redirect(http.StatusTemporaryRedirect, target)
}
