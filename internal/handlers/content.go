package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"board-service/internal/storage"
)

// ImageOpener reads stored element images.
type ImageOpener interface {
	Open(imageID string) (io.ReadSeekCloser, error)
}

// ContentHandler serves stored images without authentication.
type ContentHandler struct {
	images ImageOpener
}

func NewContentHandler(images ImageOpener) *ContentHandler {
	return &ContentHandler{images: images}
}

// GetImage handles GET /content/:image_id.
func (h *ContentHandler) GetImage(c *gin.Context) {
	f, err := h.images.Open(c.Param("image_id"))
	if err != nil {
		if errors.Is(err, storage.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}
	defer f.Close()

	c.Header("Content-Type", "image/jpeg")
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	http.ServeContent(c.Writer, c.Request, c.Param("image_id")+".jpg", time.Time{}, f)
}
