package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/callback"
	"github.com/agentforge/controlplane/internal/common/httpmw"
	"github.com/agentforge/controlplane/pkg/apiv1"
)

// handleCallback is POST /callback, the executor's single entrypoint back
// into the backend (spec.md §4.4), protected by httpmw.RequireServiceToken
// rather than requireUserID.
func (s *Server) handleCallback(c *gin.Context) {
	var req apiv1.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.Fail(c, apperr.BadRequest(err.Error()))
		return
	}

	err := s.sink.Handle(c.Request.Context(), callback.Request{
		Kind:      callback.Kind(req.Kind),
		RunID:     req.RunID,
		SessionID: req.SessionID,
		Payload:   req.Payload,
	})
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"accepted": true})
}
