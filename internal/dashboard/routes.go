package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blackfroglabs/shopdesk/internal/archive"
	"github.com/blackfroglabs/shopdesk/internal/chat"
)

// registerRoutes sets up all console routes on the Gin router.
func registerRoutes(router *gin.Engine, desk *chat.Desk, store *archive.Store) {
	api := router.Group("/api")

	api.GET("/state", handleState(desk))
	api.GET("/conversations", handleConversations(desk))
	api.GET("/conversations/:id/messages", handleMessages(desk))
	api.POST("/conversations/:id/select", handleSelect(desk))
	api.POST("/messages", handleSend(desk))
	api.POST("/typing", handleTyping(desk))
	api.POST("/retry", handleRetry(desk))
	api.POST("/sound/unlock", handleSoundUnlock(desk))
	api.POST("/notifications", handleNotifications(desk))

	if store != nil {
		api.GET("/archive/search", handleArchiveSearch(store))
		api.GET("/archive/conversations/:id/messages", handleArchiveHistory(store))
	}

	api.GET("/events", handleSSE(desk))
}

// stateView is the response for GET /api/state.
type stateView struct {
	Connection  chat.ConnState `json:"connection"`
	Reason      string         `json:"reason,omitempty"`
	ManualRetry bool           `json:"manualRetry"`
	ActiveID    string         `json:"activeConversationId,omitempty"`
	UnreadTotal int            `json:"unreadTotal"`
}

func handleState(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, stateView{
			Connection:  desk.ConnectionState(),
			Reason:      desk.ConnectionReason(),
			ManualRetry: desk.ManualRetryAvailable(),
			ActiveID:    desk.ActiveConversation(),
			UnreadTotal: desk.UnreadTotal(),
		})
	}
}

func handleConversations(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		views := desk.Conversations()
		if views == nil {
			views = []chat.ConversationView{}
		}
		c.JSON(http.StatusOK, gin.H{"conversations": views})
	}
}

func handleMessages(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs := desk.Messages(c.Param("id"))
		if msgs == nil {
			msgs = []chat.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

func handleSelect(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		desk.Select(c.Request.Context(), id)
		c.JSON(http.StatusOK, gin.H{"activeConversationId": id})
	}
}

// sendRequest is the request body for POST /api/messages.
type sendRequest struct {
	Text string `json:"text"`
}

func handleSend(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		msg, err := desk.Send(c.Request.Context(), req.Text)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}

func handleTyping(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		desk.InputActivity()
		c.Status(http.StatusNoContent)
	}
}

func handleRetry(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		desk.RetryNow()
		c.JSON(http.StatusOK, gin.H{"connection": desk.ConnectionState()})
	}
}

func handleSoundUnlock(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		desk.UnlockSound()
		c.Status(http.StatusNoContent)
	}
}

// notificationsRequest is the request body for POST /api/notifications.
type notificationsRequest struct {
	Granted bool `json:"granted"`
}

func handleNotifications(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notificationsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		desk.SetNotificationsGranted(req.Granted)
		c.Status(http.StatusNoContent)
	}
}

func handleArchiveSearch(store *archive.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		limit, _ := strconv.Atoi(c.Query("limit"))
		msgs, err := store.Search(query, limit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if msgs == nil {
			msgs = []chat.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

func handleArchiveHistory(store *archive.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		msgs, err := store.History(c.Param("id"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if msgs == nil {
			msgs = []chat.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}
