package delivery

import (
	"log"
	"net/http"

	"mailboard-backend/internal/email/dto"
	"mailboard-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

// SummaryHandler queues AI summaries for kanban cards. Cached summaries come
// back in the response; the rest arrive over SSE as summary_update events.
type SummaryHandler struct {
	emailUsecase  usecase.EmailService
	summaryWorker *usecase.SummaryWorker
}

func NewSummaryHandler(emailUsecase usecase.EmailService, summaryWorker *usecase.SummaryWorker) *SummaryHandler {
	return &SummaryHandler{emailUsecase: emailUsecase, summaryWorker: summaryWorker}
}

// QueueSummaries handles POST /api/kanban/summarize
func (h *SummaryHandler) QueueSummaries(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.QueueSummariesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email_ids is required"})
		return
	}
	if len(req.EmailIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{"summaries": map[string]string{}, "queued": 0})
		return
	}

	cached, err := h.summaryWorker.CachedSummaries(user.ID, req.EmailIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	queued := 0
	for _, id := range req.EmailIDs {
		if _, ok := cached[id]; ok {
			continue
		}
		email, err := h.emailUsecase.EmailByID(c.Request.Context(), user.ID, id)
		if err != nil {
			log.Printf("[SummaryHandler] Skipping %s: %v", id, err)
			continue
		}
		if h.summaryWorker.QueueJob(usecase.SummaryJob{
			UserID:  user.ID,
			EmailID: email.ID,
			Subject: email.Subject,
			Body:    email.Body,
		}) {
			queued++
		}
	}

	c.JSON(http.StatusOK, gin.H{"summaries": cached, "queued": queued})
}
