package controller

import (
	"context"
	"net/http"

	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/storage"
	"github.com/gin-gonic/gin"
)

// ImagePresigner is implemented by *storage.S3Storage.
type ImagePresigner interface {
	PresignImageUpload(ctx context.Context, folder, filename, contentType string) (*storage.PresignedUpload, error)
}

type UploadController struct {
	storage ImagePresigner
}

// NewUploadController accepts a nil presigner; uploads then answer 503.
func NewUploadController(presigner ImagePresigner) *UploadController {
	return &UploadController{
		storage: presigner,
	}
}

type PresignRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Folder      string `json:"folder"` // products (default) or categories
}

// Presign returns a presigned PUT URL for a catalog image (admin)
// POST /api/v1/admin/uploads/presign
func (ctrl *UploadController) Presign(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if ctrl.storage == nil {
		apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.UploadUnavailable, "Image uploads are not configured")
		return
	}

	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	upload, err := ctrl.storage.PresignImageUpload(c.Request.Context(), req.Folder, req.Filename, req.ContentType)
	if err != nil {
		if respondError(c, err, "upload") {
			log.Warn("Presign request rejected", map[string]interface{}{
				"content_type": req.ContentType,
				"folder":       req.Folder,
			})
			return
		}
		log.Error("Failed to generate presigned URL", err, map[string]interface{}{
			"filename": req.Filename,
		})
		return
	}

	log.Info("Presigned URL generated", map[string]interface{}{
		"key": upload.Key,
	})
	c.JSON(http.StatusOK, upload)
}
