package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
	"github.com/darshild078/ytvideo-chatbot/internal/queue"
	"github.com/darshild078/ytvideo-chatbot/models"
	"github.com/darshild078/ytvideo-chatbot/utils"
)

// videoStore is the persistence surface the video routes need.
type videoStore interface {
	FindVideo(ctx context.Context, videoID string) (*models.Video, error)
	CreatePlaceholder(ctx context.Context, videoID string) error
	FindTranscript(ctx context.Context, videoID string) (*models.Transcript, error)
}

// taskEnqueuer and taskInspector are the slices of the asynq client and
// inspector the handlers use.
type taskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

type progressReader interface {
	LatestProgress(ctx context.Context, videoID string) (int, bool)
}

// SetupVideoRoutes wires the ingestion endpoints: submit a video for
// analysis, poll its status, and fetch the raw transcript.
func SetupVideoRoutes(
	router *gin.Engine,
	repo videoStore,
	asynqClient taskEnqueuer,
	inspector taskInspector,
	publisher progressReader,
	ingestTimeout time.Duration,
) {
	videos := router.Group("/api/videos")

	videos.POST("/analyze", func(c *gin.Context) {
		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		videoID, err := utils.ExtractVideoID(req.URL)
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid YouTube URL", gin.H{"error": err.Error()})
			return
		}

		video, err := repo.FindVideo(c.Request.Context(), videoID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			utils.RespondWithInternalError(c, "Failed to look up video", nil)
			return
		}
		if video != nil && video.Indexed {
			c.JSON(http.StatusOK, gin.H{
				"videoId":    videoID,
				"status":     "already_indexed",
				"chunkCount": video.ChunkCount,
			})
			return
		}

		if info, err := inspector.GetTaskInfo(queue.QueueCritical, "ingest:"+videoID); err == nil {
			switch info.State {
			case asynq.TaskStateActive, asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
				c.JSON(http.StatusOK, gin.H{
					"videoId": videoID,
					"status":  "processing",
				})
				return
			case asynq.TaskStateArchived:
				// An archived task holds its task ID until it expires,
				// which would make every resubmission collide. Clear it
				// so a failed video can be analyzed again.
				if err := inspector.DeleteTask(queue.QueueCritical, "ingest:"+videoID); err != nil {
					logger.Warn("Failed to clear archived ingestion task", "videoId", videoID, "error", err)
				}
			}
		}

		if err := repo.CreatePlaceholder(c.Request.Context(), videoID); err != nil {
			utils.RespondWithInternalError(c, "Failed to register video", nil)
			return
		}

		task, opts, err := queue.NewIngestTask(videoID, req.URL, ingestTimeout)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build ingestion job", nil)
			return
		}
		if _, err := asynqClient.Enqueue(task, opts...); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				c.JSON(http.StatusOK, gin.H{
					"videoId": videoID,
					"status":  "processing",
				})
				return
			}
			logger.Error("Failed to enqueue ingestion", "videoId", videoID, "error", err)
			utils.RespondWithInternalError(c, "Failed to queue video for analysis", nil)
			return
		}

		logger.Info("Video queued for analysis", "videoId", videoID)
		c.JSON(http.StatusAccepted, gin.H{
			"videoId": videoID,
			"status":  "queued",
			"jobId":   "ingest:" + videoID,
		})
	})

	videos.GET("/:videoId/status", func(c *gin.Context) {
		videoID := c.Param("videoId")

		video, err := repo.FindVideo(c.Request.Context(), videoID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			utils.RespondWithInternalError(c, "Failed to look up video", nil)
			return
		}

		if video != nil && video.Indexed {
			c.JSON(http.StatusOK, gin.H{
				"videoId":    videoID,
				"status":     "completed",
				"progress":   100,
				"chunkCount": video.ChunkCount,
				"title":      video.Title,
			})
			return
		}

		if info, err := inspector.GetTaskInfo(queue.QueueCritical, "ingest:"+videoID); err == nil {
			switch info.State {
			case asynq.TaskStateActive, asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
				pct, _ := publisher.LatestProgress(c.Request.Context(), videoID)
				c.JSON(http.StatusOK, gin.H{
					"videoId":  videoID,
					"status":   "processing",
					"progress": pct,
				})
				return
			case asynq.TaskStateArchived:
				c.JSON(http.StatusOK, gin.H{
					"videoId": videoID,
					"status":  "failed",
					"error":   info.LastErr,
				})
				return
			}
		}

		if video != nil {
			// Placeholder exists but no live job: ingestion died.
			c.JSON(http.StatusOK, gin.H{
				"videoId": videoID,
				"status":  "failed",
			})
			return
		}
		utils.RespondWithNotFound(c, "Video has not been submitted for analysis")
	})

	videos.GET("/:videoId/transcript", func(c *gin.Context) {
		videoID := c.Param("videoId")

		transcript, err := repo.FindTranscript(c.Request.Context(), videoID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				utils.RespondWithNotFound(c, "No transcript available for this video")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load transcript", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"videoId":  transcript.VideoID,
			"language": transcript.Language,
			"segments": transcript.Segments,
		})
	})
}
