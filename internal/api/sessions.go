package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/httpmw"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/pkg/apiv1"
)

func (s *Server) handleCreateSession(c *gin.Context) {
	var req apiv1.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.Fail(c, apperr.BadRequest(err.Error()))
		return
	}

	sess := &session.Session{
		UserID:         userID(c),
		ProjectID:      req.ProjectID,
		ConfigSnapshot: req.ConfigSnapshot,
	}
	if sess.ConfigSnapshot == nil {
		sess.ConfigSnapshot = map[string]any{}
	}
	if err := s.sessions.CreateSession(c.Request.Context(), sess); err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, sess)
}

func (s *Server) handleListSessions(c *gin.Context) {
	limit, offset := pageParams(c)
	items, err := s.sessions.ListSessions(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, apiv1.Page[*session.Session]{Items: items, Limit: limit, Offset: offset})
}

// sessionWithTitle is GET /sessions/list-with-titles's response shape: a
// Session plus title, derived from its first user message's text_preview.
// Deprecated: kept for legacy clients; not extended beyond this field.
type sessionWithTitle struct {
	*session.Session
	Title string `json:"title"`
}

func (s *Server) handleListSessionsWithTitles(c *gin.Context) {
	limit, offset := pageParams(c)
	items, err := s.sessions.ListSessions(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}

	out := make([]sessionWithTitle, 0, len(items))
	for _, sess := range items {
		title := ""
		msgs, err := s.sessions.ListMessages(c.Request.Context(), sess.ID)
		if err == nil {
			for _, m := range msgs {
				if m.Role == session.RoleUser && m.TextPreview != nil {
					title = *m.TextPreview
					break
				}
			}
		}
		out = append(out, sessionWithTitle{Session: sess, Title: title})
	}
	httpmw.OK(c, http.StatusOK, apiv1.Page[sessionWithTitle]{Items: out, Limit: limit, Offset: offset})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	if err := s.sessions.DeleteSession(c.Request.Context(), sess.ID); err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handleListMessages(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	msgs, err := s.sessions.ListMessages(c.Request.Context(), sess.ID)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) handleListToolExecutions(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	tes, err := s.tools.ListBySession(c.Request.Context(), sess.ID)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"tool_executions": tes})
}

func (s *Server) handleListUsage(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	usage, err := s.tools.ListUsageBySession(c.Request.Context(), sess.ID)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"usage": usage})
}

func (s *Server) handleCreateRun(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}

	var req apiv1.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.Fail(c, apperr.BadRequest(err.Error()))
		return
	}

	if req.UserMessageText != "" {
		preview := req.UserMessageText
		msg := &session.Message{
			SessionID:   sess.ID,
			Role:        session.RoleUser,
			Content:     map[string]any{"text": req.UserMessageText},
			TextPreview: &preview,
		}
		if err := s.sessions.AppendMessage(c.Request.Context(), msg); err != nil {
			httpmw.Fail(c, err)
			return
		}
	}

	snapshot := req.ConfigSnapshot
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	r := &run.Run{SessionID: sess.ID, ConfigSnapshot: snapshot}
	if err := s.runs.Create(c.Request.Context(), r); err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusCreated, r)
}

// ownedSession loads :id and enforces that it belongs to the caller's
// user_id (spec.md §3: "all read paths enforce the ownership check").
func (s *Server) ownedSession(c *gin.Context) (*session.Session, error) {
	id := c.Param("id")
	sess, err := s.sessions.GetSession(c.Request.Context(), id, false)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID(c) {
		return nil, apperr.NotFound("session", id)
	}
	return sess, nil
}

// sanitizeFilename matches spec.md §6: basename, replace runs of
// [^a-zA-Z0-9._-]+ with "_", empty result falls back to "upload.bin".
func sanitizeFilename(name string) string {
	base := name
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}

	var b strings.Builder
	inRun := false
	for _, r := range base {
		if isFilenameSafe(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}

	out := b.String()
	if out == "" {
		return "upload.bin"
	}
	return out
}

func isFilenameSafe(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
}

func newAttachmentKey(userID, filename string) string {
	return "attachments/" + userID + "/" + uuid.NewString() + "/" + sanitizeFilename(filename)
}
