package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/httpmw"
	"github.com/agentforge/controlplane/pkg/apiv1"
)

const maxUploadBytes = 100 << 20 // 100 MiB

// handleUploadAttachment implements POST /attachments/upload: a multipart
// file upload that lands in the object store under
// attachments/{user_id}/{uuid}/{sanitized_name} and returns an InputFile
// descriptor pointing at that key.
func (s *Server) handleUploadAttachment(c *gin.Context) {
	uid := c.GetHeader("X-User-Id")
	if uid == "" {
		httpmw.Fail(c, apperr.Unauthorized("missing X-User-Id header"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpmw.Fail(c, apperr.BadRequest("missing multipart field \"file\""))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		httpmw.Fail(c, apperr.Wrap(err, "open uploaded file"))
		return
	}
	defer f.Close()

	key := newAttachmentKey(uid, fileHeader.Filename)
	contentType := fileHeader.Header.Get("Content-Type")
	if err := s.store.Put(c.Request.Context(), key, f, fileHeader.Size, contentType); err != nil {
		httpmw.Fail(c, err)
		return
	}

	httpmw.OK(c, http.StatusCreated, apiv1.AttachmentUploadResponse{
		ID:          key,
		Type:        "file",
		Name:        sanitizeFilename(fileHeader.Filename),
		Source:      key,
		Size:        fileHeader.Size,
		ContentType: contentType,
	})
}
