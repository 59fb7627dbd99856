package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/httpmw"
	"github.com/agentforge/controlplane/internal/project"
	"github.com/agentforge/controlplane/pkg/apiv1"
)

func (s *Server) handleCreateProject(c *gin.Context) {
	var req apiv1.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.Fail(c, apperr.BadRequest(err.Error()))
		return
	}
	p := &project.Project{UserID: userID(c), Name: req.Name}
	if err := s.projects.Create(c.Request.Context(), p); err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusCreated, p)
}

func (s *Server) handleListProjects(c *gin.Context) {
	limit, offset := pageParams(c)
	items, err := s.projects.List(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, apiv1.Page[*project.Project]{Items: items, Limit: limit, Offset: offset})
}

func (s *Server) handleGetProject(c *gin.Context) {
	p, err := s.ownedProject(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	p, err := s.ownedProject(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}

	var req apiv1.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.Fail(c, apperr.BadRequest(err.Error()))
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if err := s.projects.Update(c.Request.Context(), p); err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	p, err := s.ownedProject(c)
	if err != nil {
		httpmw.Fail(c, err)
		return
	}
	if err := s.projects.Delete(c.Request.Context(), p.ID); err != nil {
		httpmw.Fail(c, err)
		return
	}
	httpmw.OK(c, http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) ownedProject(c *gin.Context) (*project.Project, error) {
	id := c.Param("id")
	p, err := s.projects.Get(c.Request.Context(), id, false)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID(c) {
		return nil, apperr.NotFound("project", id)
	}
	return p, nil
}
