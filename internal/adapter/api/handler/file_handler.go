package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/repository"
	"lapakchat/internal/domain/service"
	"lapakchat/pkg/errors"
	"lapakchat/pkg/logger"
	"lapakchat/pkg/response"
)

type FileHandler struct {
	uploadService service.FileUploadService
	fileRepo      repository.FileMetadataRepository
}

func NewFileHandler(uploadService service.FileUploadService, fileRepo repository.FileMetadataRepository) *FileHandler {
	return &FileHandler{
		uploadService: uploadService,
		fileRepo:      fileRepo,
	}
}

// UploadFile accepts one image as multipart form data, stores it and records
// its metadata so a later message can reference the returned URL.
func (h *FileHandler) UploadFile(c echo.Context) error {
	uid := c.Get("uid").(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("file is required", err))
	}

	if fileHeader.Size > service.MaxUploadSize {
		return response.Error(c, errors.Validation("File exceeds the 5MB limit", nil))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to open uploaded file", err))
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := src.Read(head)
	if err != nil && err != io.EOF {
		return response.Error(c, errors.Internal("Failed to read uploaded file", err))
	}
	mimeType := http.DetectContentType(head[:n])
	if !service.AcceptedImageMIME(mimeType) {
		return response.Error(c, errors.Validation("Unsupported image type: "+mimeType, nil))
	}

	body := io.MultiReader(bytes.NewReader(head[:n]), src)
	url, err := h.uploadService.UploadFile(c.Request().Context(), body, mimeType, "chat")
	if err != nil {
		logger.Error("Upload failed for user %s: %v", uid, err)
		return response.Error(c, err)
	}

	meta := &entity.FileMetadata{
		URL:        url,
		MIMEType:   mimeType,
		Size:       fileHeader.Size,
		UploadedBy: uid,
		CreatedAt:  time.Now(),
	}
	if err := h.fileRepo.Create(c.Request().Context(), meta); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]interface{}{
		"url":       url,
		"mime_type": mimeType,
		"size":      fileHeader.Size,
	})
}
