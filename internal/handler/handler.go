package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chronicle-server/internal/models"
	"chronicle-server/internal/service"
)

// ChronicleHandler exposes the chronicle API over HTTP.
type ChronicleHandler struct {
	chronicles service.ChronicleService
	logger     *zap.Logger
}

func NewChronicleHandler(chronicles service.ChronicleService, logger *zap.Logger) *ChronicleHandler {
	return &ChronicleHandler{chronicles: chronicles, logger: logger.Named("http")}
}

// NewRouter builds the gin engine with middleware and all routes mounted.
func NewRouter(h *ChronicleHandler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ZapLogging(logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/chronicles", h.StartChronicle)
		api.GET("/chronicles", h.ListChronicles)
		api.GET("/chronicles/:sceneID", h.GetChronicle)
		api.POST("/chronicles/:sceneID/turn", h.SubmitTurn)
		api.POST("/chronicles/:sceneID/turn/voice", h.SubmitVoiceTurn)
		api.GET("/chronicles/:sceneID/export", h.ExportChronicle)
		api.POST("/actions/assess", h.AssessAction)
	}

	return router
}

// StartChronicle opens a new scene and returns its opening beat.
func (h *ChronicleHandler) StartChronicle(c *gin.Context) {
	var req service.StartChronicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	result, err := h.chronicles.StartChronicle(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type submitTurnRequest struct {
	PlayerActions   []string `json:"player_actions"`
	OpponentActions []string `json:"opponent_actions"`
}

// SubmitTurn resolves one turn for the scene.
func (h *ChronicleHandler) SubmitTurn(c *gin.Context) {
	sceneID, ok := h.sceneID(c)
	if !ok {
		return
	}

	var req submitTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	result, err := h.chronicles.SubmitTurn(c.Request.Context(), sceneID, req.PlayerActions, req.OpponentActions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SubmitVoiceTurn accepts a multipart audio recording as the player action.
func (h *ChronicleHandler) SubmitVoiceTurn(c *gin.Context) {
	sceneID, ok := h.sceneID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		respondError(c, fmt.Errorf("%w: multipart field 'audio' is required", models.ErrInvalidInput))
		return
	}
	defer file.Close()

	result, err := h.chronicles.SubmitVoiceTurn(c.Request.Context(), sceneID, file, header.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetChronicle returns the full scene state.
func (h *ChronicleHandler) GetChronicle(c *gin.Context) {
	sceneID, ok := h.sceneID(c)
	if !ok {
		return
	}

	scene, err := h.chronicles.GetChronicle(c.Request.Context(), sceneID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scene)
}

// ListChronicles returns session summaries for the load screen.
func (h *ChronicleHandler) ListChronicles(c *gin.Context) {
	summaries, err := h.chronicles.ListChronicles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chronicles": summaries})
}

// ExportChronicle serves the scene's history as a downloadable HTML page.
func (h *ChronicleHandler) ExportChronicle(c *gin.Context) {
	sceneID, ok := h.sceneID(c)
	if !ok {
		return
	}

	page, err := h.chronicles.ExportChronicle(c.Request.Context(), sceneID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=chronicle-%s.html", sceneID))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

type assessRequest struct {
	Action string `json:"action"`
}

type assessResponse struct {
	Cost int `json:"cost"`
}

// AssessAction previews the action-point cost of an action.
func (h *ChronicleHandler) AssessAction(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	cost, err := h.chronicles.AssessAction(c.Request.Context(), req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessResponse{Cost: cost})
}

func (h *ChronicleHandler) sceneID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("sceneID"))
	if err != nil {
		respondError(c, fmt.Errorf("%w: invalid scene id %q", models.ErrInvalidInput, c.Param("sceneID")))
		return uuid.Nil, false
	}
	return id, true
}
