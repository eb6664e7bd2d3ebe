// Package handler exposes the submission, status, and file-management HTTP
// boundaries. Handlers never run pipeline work themselves; downstream
// failures surface only through the status endpoint's failure payload.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"examai/internal/job"
	"examai/internal/logger"
	"examai/internal/mongodb"
	"examai/internal/storage"
)

type Handler struct {
	jobs       *job.Service
	blobs      storage.Gateway
	db         mongodb.Store
	collection string
	log        zerolog.Logger
}

func New(jobs *job.Service, blobs storage.Gateway, db mongodb.Store, collection string) *Handler {
	return &Handler{
		jobs:       jobs,
		blobs:      blobs,
		db:         db,
		collection: collection,
		log:        logger.WithComponent("http"),
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(router *gin.Engine) {
	router.GET("/", h.Root)
	router.POST("/upload", h.Upload)
	router.GET("/jobs/:id", h.JobStatus)
	router.GET("/files", h.ListFiles)
	router.GET("/files/exists/*path", h.FileExists)
	router.DELETE("/files/*path", h.DeleteFile)
	router.GET("/gen", h.LatestExamPaper)
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Exam paper ingestion API with Cloud Storage, OCR, and AI generation",
	})
}

// Upload accepts a multipart document, schedules the ingestion job, and
// returns immediately with the job ID and a status locator.
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not open uploaded file"})
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.log.Warn().Err(closeErr).Msg("Failed to close uploaded file")
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}

	jobID, err := h.jobs.Submit(data, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), c.Query("folder"))
	if err != nil {
		if errors.Is(err, job.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error().Err(err).Msg("Failed to submit job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":     jobID,
		"status":     job.StatusPending,
		"status_url": "/jobs/" + jobID,
	})
}

// JobStatus returns the polling snapshot for a job.
func (h *Handler) JobStatus(c *gin.Context) {
	status, err := h.jobs.Status(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListFiles lists stored objects, optionally under a prefix.
func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.blobs.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"count": len(files),
	})
}

// FileExists reports whether an object is present in the bucket.
func (h *Handler) FileExists(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")

	exists, err := h.blobs.Exists(c.Request.Context(), path)
	if err != nil {
		h.log.Error().Err(err).Str("path", path).Msg("Failed to check file existence")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file_path": path,
		"exists":    exists,
	})
}

// DeleteFile removes an object from the bucket.
func (h *Handler) DeleteFile(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")

	if err := h.blobs.Delete(c.Request.Context(), path); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		h.log.Error().Err(err).Str("path", path).Msg("Failed to delete file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "file deleted",
		"file":    path,
	})
}

// LatestExamPaper returns the most recently persisted exam paper.
func (h *Handler) LatestExamPaper(c *gin.Context) {
	document, err := h.db.FindOne(c.Request.Context(), h.collection, bson.D{}, bson.D{{Key: "_id", Value: -1}})
	if err != nil {
		if errors.Is(err, mongodb.ErrNoResult) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no exam papers found"})
			return
		}
		h.log.Error().Err(err).Msg("Failed to fetch latest exam paper")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch latest exam paper"})
		return
	}
	c.JSON(http.StatusOK, document)
}
