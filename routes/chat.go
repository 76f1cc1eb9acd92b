package routes

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/darshild078/ytvideo-chatbot/internal/logger"
	"github.com/darshild078/ytvideo-chatbot/internal/rag"
	"github.com/darshild078/ytvideo-chatbot/models"
	"github.com/darshild078/ytvideo-chatbot/services"
	"github.com/darshild078/ytvideo-chatbot/utils"
)

// SetupChatRoutes wires the query, history, and export endpoints.
func SetupChatRoutes(
	router *gin.Engine,
	repo *models.Repository,
	orchestrator *rag.Orchestrator,
	exporter *services.ExportService,
) {
	chat := router.Group("/api/chat")

	chat.POST("/query", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		video, err := repo.FindVideo(c.Request.Context(), req.VideoID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				utils.RespondWithNotFound(c, "Video has not been analyzed")
				return
			}
			utils.RespondWithInternalError(c, "Failed to look up video", nil)
			return
		}
		if !video.Indexed {
			utils.RespondWithBadRequest(c, "Video is not ready for questions yet", gin.H{
				"videoId": req.VideoID,
				"status":  "processing",
			})
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		result := orchestrator.Answer(c.Request.Context(), req.VideoID, req.Question, video.ContextText())

		now := time.Now().UTC()
		messages := []models.ChatMessage{
			{
				Role:      "user",
				Content:   req.Question,
				CreatedAt: now,
			},
			{
				Role:          "assistant",
				Content:       result.Answer.Answer,
				Timestamp:     result.PrimaryTimestamp,
				FormattedTime: result.FormattedTime,
				Confidence:    result.Confidence,
				CreatedAt:     now,
			},
		}
		if err := repo.AppendChat(c.Request.Context(), req.VideoID, sessionID, messages); err != nil {
			// The answer still goes out; history is best effort.
			logger.Warn("Failed to persist chat history", "videoId", req.VideoID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"sessionId":           sessionID,
			"answer":              result.Answer.Answer,
			"primaryTimestamp":    result.PrimaryTimestamp,
			"formattedTime":       result.FormattedTime,
			"confidence":          result.Confidence,
			"context":             result.Context,
			"secondaryTimestamps": result.SecondaryTimestamps,
			"metrics":             result.Metrics,
		})
	})

	chat.GET("/history/:videoId/:sessionId", func(c *gin.Context) {
		videoID := c.Param("videoId")
		sessionID := c.Param("sessionId")

		history, err := repo.FindChat(c.Request.Context(), videoID, sessionID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load chat history", nil)
			return
		}

		c.JSON(http.StatusOK, history)
	})

	chat.POST("/export", func(c *gin.Context) {
		var req models.ExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		result, err := exporter.ExportChats(c.Request.Context(), &req)
		if err != nil {
			utils.RespondWithBadRequest(c, "Export failed", gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
		c.Header("X-Record-Count", fmt.Sprintf("%d", result.RecordCount))
		c.Data(http.StatusOK, result.ContentType, result.Data)
	})
}
