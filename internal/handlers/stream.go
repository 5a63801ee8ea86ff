package handlers

import (
	"net/http"
	"time"

	"hashfund/internal/models"
	dbconfig "hashfund/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	logrus "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API already sits behind CORS middleware; the ws handshake
	// check would otherwise reject browser clients on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	streamPollInterval = 3 * time.Second
	streamPingInterval = 30 * time.Second
	streamWriteWait    = 10 * time.Second
)

// StreamNotifications pushes a user's new notifications over a
// websocket. The client receives every notification created after the
// connection opened, as JSON, in creation order.
func StreamNotifications(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Warnf("Websocket upgrade failed for user %s: %v", userID, err)
		return
	}
	defer conn.Close()

	// Discard inbound frames so close/pong control messages are
	// processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastID uint
	dbconfig.DB.Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(id), 0)").Scan(&lastID)

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			var fresh []models.Notification
			if err := dbconfig.DB.Where("user_id = ? AND id > ?", userID, lastID).
				Order("id asc").Find(&fresh).Error; err != nil {
				logrus.Warnf("Notification poll failed for user %s: %v", userID, err)
				continue
			}
			for _, n := range fresh {
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteJSON(n); err != nil {
					return
				}
				lastID = n.ID
			}
		}
	}
}
