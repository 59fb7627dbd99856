package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/httpmw"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/pkg/apiv1"
)

// handleClaimRun is the executor manager's entrypoint into the claim
// protocol (spec.md §4.1). Protected by httpmw.RequireServiceToken, not by
// requireUserID: the caller is the manager, not an end user.
func (s *Server) handleClaimRun(c *gin.Context) {
	var req apiv1.ClaimRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.Fail(c, apperr.BadRequest(err.Error()))
		return
	}

	claimed, err := s.runs.Claim(c.Request.Context(), req.WorkerID)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	if claimed == nil {
		httpmw.OK(c, http.StatusOK, gin.H{"run": nil})
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"run": claimed})
}

func (s *Server) handleStartRun(c *gin.Context) {
	runID := c.Param("id")
	var req apiv1.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.Fail(c, apperr.BadRequest(err.Error()))
		return
	}

	r, err := s.runs.Start(c.Request.Context(), runID, req.ClaimToken)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}

	if req.SDKSessionID != nil && *req.SDKSessionID != "" {
		if err := s.sessions.SetSDKSessionID(c.Request.Context(), r.SessionID, *req.SDKSessionID); err != nil {
			httpmw.Fail(c, err)
			return
		}
	}
	if err := s.sessions.SetStatus(c.Request.Context(), r.SessionID, session.StatusRunning); err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, r)
}

func (s *Server) handleFailRun(c *gin.Context) {
	runID := c.Param("id")
	var req apiv1.FailRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.Fail(c, apperr.BadRequest(err.Error()))
		return
	}

	r, err := s.runs.Fail(c.Request.Context(), runID, req.ClaimToken, run.RunError{
		Code:    req.Code,
		Message: req.Message,
		Details: req.Details,
	})
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	if err := s.sessions.SetStatus(c.Request.Context(), r.SessionID, session.StatusFailed); err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, r)
}

func (s *Server) handleGetRun(c *gin.Context) {
	r, err := s.ownedRun(c, c.Param("id"))
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, r)
}

func (s *Server) handleListRunsBySession(c *gin.Context) {
	sid := c.Param("sid")
	sess, err := s.sessions.GetSession(c.Request.Context(), sid, false)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	if sess.UserID != userID(c) {
		httpmw.Fail(c, apperr.NotFound("session", sid))
		return
	}

	items, err := s.runs.ListBySession(c.Request.Context(), sid)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"runs": items})
}

// ownedRun loads a run and verifies its parent session belongs to the
// caller, since AgentRun carries no user_id of its own.
func (s *Server) ownedRun(c *gin.Context, id string) (*run.Run, error) {
	r, err := s.runs.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetSession(c.Request.Context(), r.SessionID, false)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID(c) {
		return nil, apperr.NotFound("run", id)
	}
	return r, nil
}
