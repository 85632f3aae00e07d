package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"lotto-service/internal/lotto"
	"lotto-service/internal/metrics"
	"lotto-service/internal/middleware"
	"lotto-service/internal/service"
	"lotto-service/internal/service/game"
	"lotto-service/internal/service/session"
	"lotto-service/internal/service/stats"
	"lotto-service/internal/service/transcription"
	"lotto-service/internal/ws"
	appErr "lotto-service/pkg/errors"
	"lotto-service/pkg/logger"
	"lotto-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	registerValidators()

	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Broker, services.Game)

	r.Use(middleware.RequestID(), middleware.AccessLog(), metrics.Middleware())

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})
	r.GET("/metrics", metrics.Handler())

	games := r.Group("/games")
	{
		games.POST("", handler.StartGame)
		games.GET("", handler.ListGames)
		games.GET("/:id", handler.GetGame)
		games.POST("/:id/events/line", handler.AddLineEvent)
		games.POST("/:id/events/card", handler.AddCardEvent)
		games.POST("/:id/finish", handler.FinishGame)
		games.GET("/:id/settlement", handler.GetSettlement)
	}

	sessions := r.Group("/sessions")
	{
		sessions.POST("", handler.CreateSession)
		sessions.GET("/:id", handler.GetSession)
		sessions.POST("/:id/line", handler.SessionLine)
		sessions.POST("/:id/card", handler.SessionCard)
		sessions.POST("/:id/finish", handler.SessionFinish)
		sessions.POST("/:id/new-game", handler.SessionNewGame)
	}

	statsGroup := r.Group("/stats")
	{
		statsGroup.GET("", handler.StatsSummary)
		statsGroup.GET("/balance", handler.StatsBalance)
		statsGroup.GET("/player/:name", handler.PlayerStats)
	}

	speechGroup := r.Group("/speech")
	{
		speechGroup.POST("/interpret", handler.Interpret)
		speechGroup.POST("/transcribe", handler.Transcribe)
	}

	r.GET("/ws/games/:id", wsHandler.HandleGameWS)
}

// registerValidators adds the "player" tag: a name that is not blank once
// trimmed.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	registerValidation(v, "player", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func registerValidation(v *validator.Validate, tag string, fn validator.Func) bool {
	if err := v.RegisterValidation(tag, fn); err != nil {
		logger.Log.Error("Failed to register validator", zap.String("tag", tag), zap.Error(err))
		return false
	}
	return true
}

const (
	codeInvalidGame      = "invalid_game"
	codeInvalidEvent     = "invalid_event"
	codeInvalidGameState = "invalid_game_state"
	codeInvalidSession   = "invalid_session"
	codeInvalidQuery     = "invalid_query"
	codeNotFound         = "not_found"
	codeGameBusy         = "game_busy"
	codeInternal         = "internal_error"
	codeUnsupportedAudio = "unsupported_audio_type"
	codeEmptyAudio       = "empty_audio_payload"
	codeProviderError    = "transcription_provider_error"
)

type startGameBody struct {
	Players   []string `json:"players" binding:"required,min=2,dive,player"`
	CardPrice int64    `json:"card_price" binding:"required,min=1,max=1000000000000"`
	LineBonus int64    `json:"line_bonus" binding:"required,min=1,max=1000000000000"`
}

type eventBody struct {
	Players []string `json:"players" binding:"required,min=1,dive,player"`
}

type interpretBody struct {
	Text    string   `json:"text"`
	Players []string `json:"players"`
}

func (h *Handler) StartGame(c *gin.Context) {
	var body startGameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidGame, err.Error())
		return
	}

	view, err := h.services.Game.StartGame(c.Request.Context(), game.StartParams{
		Players:   body.Players,
		CardPrice: body.CardPrice,
		LineBonus: body.LineBonus,
	})
	if err != nil {
		handleError(c, codeInvalidGame, err)
		return
	}
	response.Created(c, view)
}

func (h *Handler) ListGames(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))

	result, err := h.services.Game.ListGames(c.Request.Context(), page, size, status)
	if err != nil {
		handleError(c, codeInvalidQuery, err)
		return
	}

	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) GetGame(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}
	view, err := h.services.Game.GetGame(c.Request.Context(), gameID)
	if err != nil {
		handleError(c, codeInvalidGame, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) AddLineEvent(c *gin.Context) {
	h.addEvent(c, lotto.LineClosed)
}

func (h *Handler) AddCardEvent(c *gin.Context) {
	h.addEvent(c, lotto.CardClosed)
}

func (h *Handler) addEvent(c *gin.Context, eventType lotto.EventType) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}
	var body eventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidEvent, err.Error())
		return
	}

	view, err := h.services.Game.AddEvent(c.Request.Context(), gameID, eventType, body.Players)
	if err != nil {
		handleError(c, codeInvalidEvent, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) FinishGame(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}
	result, err := h.services.Game.FinishGame(c.Request.Context(), gameID)
	if err != nil {
		handleError(c, codeInvalidGameState, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) GetSettlement(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}
	result, err := h.services.Game.GetSettlement(c.Request.Context(), gameID)
	if err != nil {
		handleError(c, codeInvalidGameState, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) CreateSession(c *gin.Context) {
	var body startGameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidSession, err.Error())
		return
	}

	view, err := h.services.Session.Create(c.Request.Context(), session.CreateParams{
		Players:   body.Players,
		CardPrice: body.CardPrice,
		LineBonus: body.LineBonus,
	})
	if err != nil {
		handleError(c, codeInvalidSession, err)
		return
	}
	response.Created(c, view)
}

func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.services.Session.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, codeInvalidSession, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) SessionLine(c *gin.Context) {
	h.sessionEvent(c, h.services.Session.RecordLine)
}

func (h *Handler) SessionCard(c *gin.Context) {
	h.sessionEvent(c, h.services.Session.RecordCard)
}

func (h *Handler) sessionEvent(c *gin.Context, record func(ctx context.Context, id string, players []string) (*game.GameView, error)) {
	var body eventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidEvent, err.Error())
		return
	}
	view, err := record(c.Request.Context(), c.Param("id"), body.Players)
	if err != nil {
		handleError(c, codeInvalidEvent, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) SessionFinish(c *gin.Context) {
	entry, err := h.services.Session.FinishActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, codeInvalidGameState, err)
		return
	}
	response.Success(c, entry)
}

func (h *Handler) SessionNewGame(c *gin.Context) {
	view, err := h.services.Session.NewGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, codeInvalidGameState, err)
		return
	}
	response.Created(c, view)
}

func (h *Handler) StatsSummary(c *gin.Context) {
	ctx := c.Request.Context()
	balance, err := h.services.Stats.GlobalBalance(ctx, stats.Filter{})
	if err != nil {
		handleError(c, codeInvalidQuery, err)
		return
	}
	finished, err := h.services.Stats.GamesFinished(ctx)
	if err != nil {
		handleError(c, codeInvalidQuery, err)
		return
	}
	response.Success(c, gin.H{
		"games_finished": finished,
		"total_net":      balance.TotalNet,
	})
}

func (h *Handler) StatsBalance(c *gin.Context) {
	period, err := parsePositiveIntQuery(c, "period_days", 0)
	if err != nil {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	report, err := h.services.Stats.Overview(c.Request.Context(), stats.Filter{
		PeriodDays: period,
		Player:     strings.TrimSpace(c.Query("player")),
	})
	if err != nil {
		handleError(c, codeInvalidQuery, err)
		return
	}
	response.Success(c, report)
}

func (h *Handler) PlayerStats(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidQuery, "player name required")
		return
	}
	out, err := h.services.Stats.PlayerStats(c.Request.Context(), name)
	if err != nil {
		handleError(c, codeInvalidQuery, err)
		return
	}
	response.Success(c, out)
}

func (h *Handler) Interpret(c *gin.Context) {
	var body interpretBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	response.Success(c, h.services.Speech.Interpret(body.Text, body.Players))
}

func (h *Handler) Transcribe(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "file is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "recording.webm"
	}
	res, err := h.services.Transcription.Transcribe(c.Request.Context(), transcription.Audio{
		Filename:    filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		var providerErr *transcription.ProviderError
		switch {
		case errors.Is(err, appErr.ErrUnsupportedAudio):
			response.ErrorWithCode(c, http.StatusBadRequest, codeUnsupportedAudio, err.Error())
		case errors.Is(err, appErr.ErrEmptyAudio):
			response.ErrorWithCode(c, http.StatusBadRequest, codeEmptyAudio, "Empty audio payload")
		case errors.As(err, &providerErr):
			response.ErrorWithCode(c, providerErr.StatusCode, codeProviderError, providerErr.Message)
		default:
			response.ErrorWithCode(c, http.StatusInternalServerError, codeInternal, err.Error())
		}
		return
	}
	response.Success(c, res)
}

// handleError maps service errors onto statuses. fallbackCode labels the
// 400 and 409 responses of the calling route.
func handleError(c *gin.Context, fallbackCode string, err error) {
	switch {
	case errors.Is(err, appErr.ErrValidation):
		response.ErrorWithCode(c, http.StatusBadRequest, fallbackCode, err.Error())
	case errors.Is(err, appErr.ErrGameNotFound), errors.Is(err, appErr.ErrSessionNotFound):
		response.ErrorWithCode(c, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, appErr.ErrGameFinished),
		errors.Is(err, appErr.ErrGameNotFinished),
		errors.Is(err, appErr.ErrNoCardWinners):
		response.ErrorWithCode(c, http.StatusConflict, codeInvalidGameState, err.Error())
	case errors.Is(err, appErr.ErrLockBusy):
		response.ErrorWithCode(c, http.StatusTooManyRequests, codeGameBusy, err.Error())
	default:
		response.ErrorWithCode(c, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func parseGameID(c *gin.Context) (int64, bool) {
	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		response.ErrorWithCode(c, http.StatusBadRequest, codeInvalidGame, "invalid game id")
		return 0, false
	}
	return gameID, true
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}
