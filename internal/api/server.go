// Package api wires the backend's HTTP surface (spec.md §6): session,
// project, run, attachment, and callback endpoints over gin, plus the
// internal claim/start/fail/callback routes the executor manager consumes.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/callback"
	"github.com/agentforge/controlplane/internal/common/httpmw"
	"github.com/agentforge/controlplane/internal/common/logger"
	"github.com/agentforge/controlplane/internal/objectstore"
	"github.com/agentforge/controlplane/internal/project"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/serviceauth"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/toolexec"
)

// Server is the backend's HTTP API.
type Server struct {
	router *gin.Engine
	log    *logger.Logger

	sessions session.Repository
	projects project.Repository
	runs     run.Repository
	tools    toolexec.Repository
	store    objectstore.Store
	sink     *callback.Sink

	workspaceManagerURL string
}

// Deps bundles the collaborators a Server needs. workspaceManagerURL is the
// executor manager's base URL, used to proxy/redirect the workspace
// endpoints (spec.md §6).
type Deps struct {
	Sessions            session.Repository
	Projects            project.Repository
	Runs                run.Repository
	Tools               toolexec.Repository
	Store               objectstore.Store
	Sink                *callback.Sink
	ServiceVerifier     *serviceauth.Verifier
	WorkspaceManagerURL string
	Logger              *logger.Logger
}

func NewServer(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(zap.String("component", "api-server"))

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:              gin.New(),
		log:                 log,
		sessions:            d.Sessions,
		projects:            d.Projects,
		runs:                d.Runs,
		tools:               d.Tools,
		store:               d.Store,
		sink:                d.Sink,
		workspaceManagerURL: d.WorkspaceManagerURL,
	}

	s.router.Use(httpmw.RequestID(), httpmw.Recovery(log), httpmw.RequestLogger(log, "backend"), httpmw.ErrorEnvelope(log))
	s.setupRoutes(d.ServiceVerifier)
	return s
}

// Router exposes the underlying http.Handler for cmd/backend to serve.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(verifier *serviceauth.Verifier) {
	s.router.GET("/callback/health", s.handleHealth)
	s.router.GET("/attachments/health", s.handleHealth)

	s.router.POST("/attachments/upload", s.handleUploadAttachment)

	sessions := s.router.Group("/sessions")
	sessions.Use(requireUserID())
	{
		sessions.POST("", s.handleCreateSession)
		sessions.GET("", s.handleListSessions)
		sessions.GET("/list-with-titles", s.handleListSessionsWithTitles)
		sessions.GET("/:id", s.handleGetSession)
		sessions.DELETE("/:id", s.handleDeleteSession)
		sessions.GET("/:id/messages", s.handleListMessages)
		sessions.GET("/:id/tool-executions", s.handleListToolExecutions)
		sessions.GET("/:id/usage", s.handleListUsage)
		sessions.GET("/:id/workspace/files", s.handleWorkspaceFiles)
		sessions.GET("/:id/workspace/file", s.handleWorkspaceFile)
		sessions.POST("/:id/runs", s.handleCreateRun)
	}

	projects := s.router.Group("/projects")
	projects.Use(requireUserID())
	{
		projects.POST("", s.handleCreateProject)
		projects.GET("", s.handleListProjects)
		projects.GET("/:id", s.handleGetProject)
		projects.PATCH("/:id", s.handleUpdateProject)
		projects.DELETE("/:id", s.handleDeleteProject)
	}

	internalGroup := s.router.Group("")
	if verifier != nil {
		internalGroup.Use(httpmw.RequireServiceToken(verifier))
	}
	{
		internalGroup.POST("/runs/claim", s.handleClaimRun)
		internalGroup.POST("/runs/:id/start", s.handleStartRun)
		internalGroup.POST("/runs/:id/fail", s.handleFailRun)
		internalGroup.POST("/callback", s.handleCallback)
	}

	runs := s.router.Group("/runs")
	runs.Use(requireUserID())
	{
		runs.GET("/:id", s.handleGetRun)
		runs.GET("/session/:sid", s.handleListRunsBySession)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	httpmw.OK(c, http.StatusOK, gin.H{"status": "ok"})
}
