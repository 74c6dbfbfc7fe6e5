package delivery

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"

	authdomain "mailboard-backend/internal/auth/domain"
	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/internal/email/dto"
	"mailboard-backend/internal/email/usecase"
	"mailboard-backend/pkg/mailerr"

	"github.com/gin-gonic/gin"
)

// EmailHandler exposes the mail engine over HTTP.
type EmailHandler struct {
	emailUsecase usecase.EmailService
}

func NewEmailHandler(emailUsecase usecase.EmailService) *EmailHandler {
	return &EmailHandler{emailUsecase: emailUsecase}
}

func currentUser(c *gin.Context) (*authdomain.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	user, ok := v.(*authdomain.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return user, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func respondError(c *gin.Context, err error) {
	switch mailerr.KindOf(err) {
	case mailerr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case mailerr.KindUnauthenticated, mailerr.KindDecryption:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case mailerr.KindInsufficientScope:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case mailerr.KindInvalid:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetMailboxes handles GET /api/emails/mailboxes
func (h *EmailHandler) GetMailboxes(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	mailboxes, err := h.emailUsecase.Mailboxes(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MailboxesResponse{Mailboxes: mailboxes})
}

// GetEmails handles GET /api/emails?mailbox=INBOX&limit=20&offset=0&q=...
func (h *EmailHandler) GetEmails(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	mailboxID := c.DefaultQuery("mailbox", "INBOX")
	limit, offset := pagination(c)
	query := c.Query("q")

	emails, total, err := h.emailUsecase.EmailsByMailbox(c.Request.Context(), user.ID, mailboxID, limit, offset, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EmailsResponse{Emails: emails, Limit: limit, Offset: offset, Total: total})
}

// GetEmailsByStatus handles GET /api/emails/status/:status?kanban=true
func (h *EmailHandler) GetEmailsByStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	slug := c.Param("status")
	limit, offset := pagination(c)
	kanban := c.Query("kanban") == "true"

	emails, total, err := h.emailUsecase.EmailsInColumn(c.Request.Context(), user.ID, slug, limit, offset, kanban)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EmailsResponse{Emails: emails, Limit: limit, Offset: offset, Total: total})
}

// GetEmailByID handles GET /api/emails/:id
func (h *EmailHandler) GetEmailByID(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	email, err := h.emailUsecase.EmailByID(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

// GetAttachment handles GET /api/emails/:id/attachments/:attachmentId
func (h *EmailHandler) GetAttachment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	data, mimeType, err := h.emailUsecase.GetAttachment(c.Request.Context(), user.ID, c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Data(http.StatusOK, mimeType, data)
}

// MarkAsRead handles PATCH /api/emails/:id/read
func (h *EmailHandler) MarkAsRead(c *gin.Context) {
	h.simpleAction(c, h.emailUsecase.MarkRead)
}

// MarkAsUnread handles PATCH /api/emails/:id/unread
func (h *EmailHandler) MarkAsUnread(c *gin.Context) {
	h.simpleAction(c, h.emailUsecase.MarkUnread)
}

// ToggleStar handles PATCH /api/emails/:id/star
func (h *EmailHandler) ToggleStar(c *gin.Context) {
	h.simpleAction(c, h.emailUsecase.ToggleStar)
}

// TrashEmail handles POST /api/emails/:id/trash
func (h *EmailHandler) TrashEmail(c *gin.Context) {
	h.simpleAction(c, h.emailUsecase.TrashEmail)
}

// ArchiveEmail handles POST /api/emails/:id/archive
func (h *EmailHandler) ArchiveEmail(c *gin.Context) {
	h.simpleAction(c, h.emailUsecase.ArchiveEmail)
}

// DeleteEmail handles DELETE /api/emails/:id
func (h *EmailHandler) DeleteEmail(c *gin.Context) {
	h.simpleAction(c, h.emailUsecase.PermanentDeleteEmail)
}

func (h *EmailHandler) simpleAction(c *gin.Context, fn func(ctx context.Context, userID, emailID string) error) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// MoveEmail handles POST /api/emails/:id/move
func (h *EmailHandler) MoveEmail(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.MoveEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "column is required"})
		return
	}

	if err := h.emailUsecase.MoveEmail(c.Request.Context(), user.ID, c.Param("id"), req.Column, req.SourceColumn); err != nil {
		// The board state is already updated; report the provider failure
		// but let the client treat the move as applied.
		log.Printf("[EmailHandler] Move %s -> %s provider error: %v", c.Param("id"), req.Column, err)
		c.JSON(http.StatusAccepted, gin.H{"message": "moved locally, mailbox sync failed", "column": req.Column})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email moved", "column": req.Column})
}

// SnoozeEmail handles POST /api/emails/:id/snooze
func (h *EmailHandler) SnoozeEmail(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.SnoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snooze_until is required"})
		return
	}

	if err := h.emailUsecase.SnoozeEmail(user.ID, c.Param("id"), req.SnoozeUntil); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email snoozed", "snooze_until": req.SnoozeUntil})
}

// UnsnoozeEmail handles POST /api/emails/:id/unsnooze
func (h *EmailHandler) UnsnoozeEmail(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	column, err := h.emailUsecase.UnsnoozeEmail(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email unsnoozed", "column": column})
}

// SendEmail handles POST /api/emails/send (multipart form)
func (h *EmailHandler) SendEmail(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	msg := &emaildomain.OutgoingMessage{
		To:      form.Value["to"],
		Cc:      form.Value["cc"],
		IsHTML:  firstValue(form.Value, "is_html") == "true",
		Subject: firstValue(form.Value, "subject"),
		Body:    firstValue(form.Value, "body"),
	}
	if len(msg.To) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one recipient required"})
		return
	}

	for _, fh := range form.File["attachments"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read attachment " + fh.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read attachment " + fh.Filename})
			return
		}
		msg.Attachments = append(msg.Attachments, emaildomain.OutgoingAttachment{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  content,
		})
	}

	if err := h.emailUsecase.SendEmail(c.Request.Context(), user.ID, msg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email sent"})
}

func firstValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// WatchInbox handles POST /api/emails/watch
func (h *EmailHandler) WatchInbox(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	historyID, err := h.emailUsecase.WatchInbox(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "watch registered", "history_id": historyID})
}

// SearchEmails handles GET /api/search?q=...
func (h *EmailHandler) SearchEmails(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	query := c.Query("q")
	limit, offset := pagination(c)

	emails, total, err := h.emailUsecase.FuzzySearch(c.Request.Context(), user.ID, query, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EmailsResponse{Emails: emails, Limit: limit, Offset: offset, Total: total})
}

// SemanticSearch handles POST /api/search/semantic
func (h *EmailHandler) SemanticSearch(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.SemanticSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	emails, total, err := h.emailUsecase.SemanticSearch(c.Request.Context(), user.ID, req.Query, req.Limit, req.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EmailsResponse{Emails: emails, Limit: req.Limit, Offset: req.Offset, Total: total})
}

// GetSearchSuggestions handles GET /api/search/suggestions?q=...
func (h *EmailHandler) GetSearchSuggestions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	suggestions, err := h.emailUsecase.GetSearchSuggestions(user.ID, c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuggestionsResponse{Suggestions: suggestions})
}

// GetColumns handles GET /api/kanban/columns
func (h *EmailHandler) GetColumns(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	columns, err := h.emailUsecase.Columns(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": columns})
}

// CreateColumn handles POST /api/kanban/columns
func (h *EmailHandler) CreateColumn(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.ColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	column := &emaildomain.Column{
		Name:           req.Name,
		Slug:           req.Slug,
		Order:          req.Order,
		LabelID:        req.LabelID,
		RemoveLabelIDs: req.RemoveLabelIDs,
	}
	if err := h.emailUsecase.CreateColumn(user.ID, column); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"column": column})
}

// UpdateColumn handles PUT /api/kanban/columns/:slug
func (h *EmailHandler) UpdateColumn(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.ColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	changes := &emaildomain.Column{
		Name:           req.Name,
		Order:          req.Order,
		LabelID:        req.LabelID,
		RemoveLabelIDs: req.RemoveLabelIDs,
	}
	if err := h.emailUsecase.UpdateColumn(user.ID, c.Param("slug"), changes); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "column updated"})
}

// DeleteColumn handles DELETE /api/kanban/columns/:slug
func (h *EmailHandler) DeleteColumn(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.emailUsecase.DeleteColumn(user.ID, c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "column deleted"})
}

// ReorderColumns handles PUT /api/kanban/columns/orders
func (h *EmailHandler) ReorderColumns(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.ColumnOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orders map is required"})
		return
	}

	if err := h.emailUsecase.ReorderColumns(user.ID, req.Orders); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "columns reordered"})
}
