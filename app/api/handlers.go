package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/eth-comb/app/database"
	"github.com/lysyi3m/eth-comb/app/feed"
	"github.com/lysyi3m/eth-comb/app/source"
	"github.com/lysyi3m/eth-comb/app/tasks"
)

const (
	defaultCardLimit = 50
	maxCardLimit     = 200
)

func NewHandler(configCache *source.ConfigCache, sourceRepo SourceReader, cardRepo CardReader,
	rawItemRepo RawItemStatter, generator GeneratorInterface, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sourceRepo:  sourceRepo,
		cardRepo:    cardRepo,
		rawItemRepo: rawItemRepo,
		generator:   generator,
		configCache: configCache,
		scheduler:   scheduler,
	}
}

// GetFeed renders the newest published cards as RSS, optionally for a
// single category.
func (h *Handler) GetFeed(c *gin.Context) {
	filter := database.CardFilter{Limit: defaultCardLimit}
	channel := feed.Channel{
		Title:       "Eth Comb",
		Description: "Ethereum ecosystem news cards",
		SelfPath:    "/feeds",
	}

	if value := c.Param("category"); value != "" {
		category, err := database.ParseCategory(value)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		filter.Category = category
		channel.Title = "Eth Comb: " + string(category)
		channel.Description = "Ethereum ecosystem news cards in " + string(category)
		channel.SelfPath = "/feeds/" + strings.ToLower(string(category))
	}

	cards, err := h.cardRepo.ListCards(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_cards", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(channel, cards)
	if err != nil {
		slog.Error("RSS generation error", "category", filter.Category, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(cards)))
	c.String(http.StatusOK, rss)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(c.Request.Context()); err == nil {
		health["sources"] = sourceCount
	} else {
		slog.Error("Database error", "operation", "get_source_count", "error", err)
		health["status"] = "degraded"
	}

	if h.configCache != nil {
		health["loaded_configurations"] = h.configCache.GetConfigCount()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	byCategory, err := h.cardRepo.GetCardStats(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_card_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rawStats, err := h.rawItemRepo.GetRawItemStats(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_raw_item_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	sourceCount, err := h.sourceRepo.GetSourceCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_source_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total := 0
	categories := make(map[string]int, len(database.Categories))
	for _, category := range database.Categories {
		categories[string(category)] = byCategory[category]
		total += byCategory[category]
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sourceCount,
		"cards": gin.H{
			"total":       total,
			"by_category": categories,
		},
		"raw_items": gin.H{
			"total":       rawStats.Total,
			"unprocessed": rawStats.Unprocessed,
		},
	})
}

func (h *Handler) APIListCards(c *gin.Context) {
	filter := database.CardFilter{Limit: defaultCardLimit}

	if value := c.Query("category"); value != "" {
		category, err := database.ParseCategory(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Category = category
	}

	if value := c.Query("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = min(limit, maxCardLimit)
	}

	filter.IncludeSuspended = c.Query("include_suspended") == "true"

	cards, err := h.cardRepo.ListCards(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_cards", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]CardResponse, 0, len(cards))
	for _, card := range cards {
		response = append(response, newCardResponse(card))
	}

	c.JSON(http.StatusOK, gin.H{
		"cards": response,
		"total": len(response),
	})
}

func (h *Handler) APIGetCard(c *gin.Context) {
	id := c.Param("id")

	card, err := h.cardRepo.GetCard(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_card", "card", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Card not found"})
		return
	}

	c.JSON(http.StatusOK, newCardResponse(*card))
}

func (h *Handler) APIFlagCard(c *gin.Context) {
	id := c.Param("id")

	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	flag, err := h.cardRepo.FlagCard(c.Request.Context(), id, req.Reason)
	if errors.Is(err, database.ErrCardNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Card not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "flag_card", "card", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Card flagged", "card", id, "flag", flag.ID)

	c.JSON(http.StatusCreated, gin.H{
		"id":         flag.ID,
		"card_id":    flag.CardID,
		"reason":     flag.Reason,
		"created_at": flag.CreatedAt,
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.sourceRepo.ListSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	now := time.Now().UTC()
	response := make([]SourceResponse, 0, len(sources))
	for _, src := range sources {
		response = append(response, SourceResponse{
			ID:              src.ID,
			Name:            src.Name,
			BaseURL:         src.BaseURL,
			AdapterType:     src.AdapterType,
			PollInterval:    (time.Duration(src.PollInterval) * time.Second).String(),
			DefaultCategory: src.DefaultCategory,
			IsActive:        src.IsActive,
			IsDue:           src.IsActive && src.IsDue(now),
			LastPolledAt:    src.LastPolledAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": response,
		"total":   len(response),
	})
}

func (h *Handler) APIPollSource(c *gin.Context) {
	id := c.Param("id")

	src, err := h.sourceRepo.GetSource(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}
	if !src.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Source is inactive"})
		return
	}

	if err := h.scheduler.EnqueuePoll(id); err != nil {
		slog.Error("Error enqueueing poll task", "source", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue poll task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Poll and pipeline run enqueued",
		"source": gin.H{
			"id":      src.ID,
			"name":    src.Name,
			"adapter": src.AdapterType,
		},
	})
}
