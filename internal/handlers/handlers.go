package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/assetmeta/internal/auth"
	"github.com/example/assetmeta/internal/classifier"
	"github.com/example/assetmeta/internal/logging"
	"github.com/example/assetmeta/internal/worker"
)

// MaxJobBodySize bounds the JSON job description accepted by /v1/process.
const MaxJobBodySize = 1 << 20

// JobService is the part of the worker the HTTP surface depends on.
type JobService interface {
	Process(ctx context.Context, job worker.Job) (*worker.Result, error)
	GetJob(ctx context.Context, jobID string) (*worker.JobRecord, error)
	GetMetricsSummary(ctx context.Context) (*worker.MetricsSummary, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc JobService, logger *zap.Logger, authMiddleware gin.HandlerFunc, roots Roots) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	if authMiddleware != nil {
		v1.Use(authMiddleware)
	}

	v1.POST("/process", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxJobBodySize)

		var job worker.Job
		if err := c.ShouldBindJSON(&job); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "job description too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job description"})
			return
		}
		if job.Asset.Path == "" && job.Asset.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "asset.path or asset.url is required"})
			return
		}
		if job.OutputPath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "output is required"})
			return
		}
		if job.Asset.Path != "" {
			assetPath, err := confine(roots.Assets, job.Asset.Path)
			if err != nil {
				c.JSON(http.StatusForbidden, gin.H{"error": "asset.path: " + err.Error()})
				return
			}
			job.Asset.Path = assetPath
		}
		outputPath, err := confine(roots.Output, job.OutputPath)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "output: " + err.Error()})
			return
		}
		job.OutputPath = outputPath
		if job.ID == "" {
			job.ID = uuid.NewString()
		}

		submitter, _ := auth.Submitter(c.Request.Context())
		logger.Info("job accepted", zap.String("job_id", job.ID), zap.String("submitter", submitter))

		result, err := svc.Process(c.Request.Context(), job)
		if err != nil {
			c.JSON(statusForFailure(err), gin.H{
				"job_id":         job.ID,
				"status":         worker.StatusFailed,
				"category":       worker.FailureCategory(err),
				"classifier_id":  classifier.ClassifierIDOf(err),
				"correlation_id": classifier.CorrelationID(err),
				"message":        err.Error(),
			})
			return
		}

		skipped := result.Skipped
		if skipped == nil {
			skipped = []string{}
		}
		c.JSON(http.StatusOK, gin.H{
			"job_id":        result.JobID,
			"status":        worker.StatusSucceeded,
			"kind":          result.Kind,
			"feature_count": result.FeatureCount,
			"output":        result.OutputPath,
			"skipped":       skipped,
		})
	})

	v1.GET("/jobs/:id", func(c *gin.Context) {
		jobID := c.Param("id")
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		rec, err := svc.GetJob(c.Request.Context(), jobID)
		if err != nil {
			if errors.Is(err, worker.ErrJobNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			logging.WithOperation(logger, "handlers.get_job", jobID).Error("job lookup failed", logging.ErrorFields(err)...)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "job lookup failed"})
			return
		}

		c.JSON(http.StatusOK, rec)
	})

	v1.GET("/metrics", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			if errors.Is(err, worker.ErrMetricsUnavailable) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			logger.Error("metrics aggregation failed", logging.ErrorFields(err)...)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func statusForFailure(err error) int {
	switch worker.FailureCategory(err) {
	case worker.CategorySourceCorrupt:
		return http.StatusUnprocessableEntity
	case worker.CategoryConfiguration:
		return http.StatusBadRequest
	case worker.CategoryClassifier:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
