package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/id-verify/internal/auth"
	"github.com/example/id-verify/internal/engine"
	"github.com/example/id-verify/internal/faceengine"
	"github.com/example/id-verify/internal/facematch"
	"github.com/example/id-verify/internal/usecase"
)

// MaxUploadSize caps each uploaded image.
const MaxUploadSize = 8 << 20 // 8 MiB

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.VerificationUseCase, authMiddleware gin.HandlerFunc, logger *zap.Logger) {
	logger = logger.Named("handlers")
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/", authMiddleware)

	protected.POST("/verify", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		documentBytes, errStatus, errMsg := readImageFile(c, "document")
		if errMsg != "" {
			c.JSON(errStatus, gin.H{"error": errMsg})
			return
		}
		selfieBytes, errStatus, errMsg := readImageFile(c, "selfie")
		if errMsg != "" {
			c.JSON(errStatus, gin.H{"error": errMsg})
			return
		}

		requestID, report, err := uc.VerifyIdentity(c.Request.Context(), userID, documentBytes, selfieBytes)
		if err != nil {
			status := statusForError(err)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": requestID,
			"report":     report,
		})
	})

	protected.GET("/result/:id", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		log, err := uc.GetResult(c.Request.Context(), userID, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		var documentErrors []string
		if log.DocumentErrors != "" {
			if err := json.Unmarshal([]byte(log.DocumentErrors), &documentErrors); err != nil {
				logger.Warn("failed to decode persisted document errors",
					zap.String("request_id", log.RequestID), zap.Error(err))
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":      log.RequestID,
			"user_id":         log.UserID,
			"status":          log.Status,
			"overall_success": log.OverallSuccess,
			"similarity":      log.Similarity,
			"face_match":      log.FaceMatch,
			"face_error":      log.FaceError,
			"document_valid":  log.DocumentValid,
			"document_errors": documentErrors,
			"document_type":   log.DocumentType,
			"created_at":      log.CreatedAt,
		})
	})

	protected.GET("/result/:id/duplicates", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		report, err := uc.GetDuplicateReport(c.Request.Context(), userID, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		c.JSON(http.StatusOK, report)
	})

	protected.GET("/metrics", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}

		c.JSON(http.StatusOK, summary)
	})
}

// readImageFile pulls one multipart image out of the request, enforcing the
// size cap and an image/* content type. The returned message is empty on
// success.
func readImageFile(c *gin.Context, field string) ([]byte, int, string) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, http.StatusBadRequest, field + " file is required"
	}

	if file.Size > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, field + " file exceeds upload limit"
	}

	if !isImageContentType(file) {
		return nil, http.StatusUnsupportedMediaType, field + " must be an image"
	}

	src, err := file.Open()
	if err != nil {
		return nil, http.StatusBadRequest, "unable to open " + field
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		return nil, http.StatusInternalServerError, "failed to read " + field
	}
	if len(data) > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, field + " file exceeds upload limit"
	}

	return data, 0, ""
}

func isImageContentType(file *multipart.FileHeader) bool {
	contentType := file.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "image/")
}

// statusForError maps the verification error taxonomy to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, usecase.ErrMissingDocumentImage),
		errors.Is(err, usecase.ErrMissingSelfieImage),
		errors.Is(err, facematch.ErrEmptyImage):
		return http.StatusBadRequest
	case errors.Is(err, faceengine.ErrNoComparableFaces):
		return http.StatusUnprocessableEntity
	default:
		var unavailable *engine.UnavailableError
		if errors.As(err, &unavailable) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
