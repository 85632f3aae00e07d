package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"lotto-service/internal/broadcast"
	"lotto-service/internal/service/game"
	appErr "lotto-service/pkg/errors"
	"lotto-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	broker  broadcast.Broker
	gameSvc *game.Service
}

func NewHandler(broker broadcast.Broker, gameSvc *game.Service) *Handler {
	return &Handler{broker: broker, gameSvc: gameSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// HandleGameWS streams updates for one game. The first message is a
// snapshot of the current game view.
func (h *Handler) HandleGameWS(c *gin.Context) {
	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}

	view, err := h.gameSvc.GetGame(c.Request.Context(), gameID)
	if err != nil {
		if errors.Is(err, appErr.ErrGameNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	outbound, unsubscribe, err := h.broker.Subscribe(ctx, gameID)
	if err != nil {
		cancel()
		logger.Log.Error("Failed to subscribe to game updates", zap.Int64("gameID", gameID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		unsubscribe()
		cancel()
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection", zap.Int64("gameID", gameID))

	cl := newClient(conn, gameID, outbound, func() {
		unsubscribe()
		cancel()
	})
	if err := conn.WriteJSON(broadcast.Update{
		Type:   "snapshot",
		GameID: gameID,
		Data:   view,
		SentAt: time.Now().UTC(),
	}); err != nil {
		cl.close()
		conn.Close()
		return
	}
	cl.run()
}

type client struct {
	conn      *websocket.Conn
	gameID    int64
	outbound  <-chan []byte
	release   func()
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, gameID int64, outbound <-chan []byte, release func()) *client {
	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		gameID:    gameID,
		outbound:  outbound,
		release:   release,
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) close() {
	c.release()
}

// readPump only drains control frames; the feed is one-way.
func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.close()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.Int64("gameID", c.gameID))
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.Int64("gameID", c.gameID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
