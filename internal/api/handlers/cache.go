package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kobimpw/Economic-terminal/internal/services"
)

// CacheAnalyticsInterface defines the interface for cache analytics operations
type CacheAnalyticsInterface interface {
	GetStats(category string) services.CacheStats
	GetMetrics(ctx context.Context) (*services.CacheMetrics, error)
	ResetStats()
}

// CacheHandler handles cache monitoring and analytics endpoints
type CacheHandler struct {
	cacheAnalytics CacheAnalyticsInterface
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheAnalytics CacheAnalyticsInterface) *CacheHandler {
	return &CacheHandler{
		cacheAnalytics: cacheAnalytics,
	}
}

// GetCacheStats returns hit/miss statistics and the mirror size.
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	metrics, err := h.cacheAnalytics.GetMetrics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    metrics,
	})
}

// GetCacheStatsByCategory returns cache statistics for a specific category
func (h *CacheHandler) GetCacheStatsByCategory(c *gin.Context) {
	category := c.Param("category")
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"category": category,
		"data":     h.cacheAnalytics.GetStats(category),
	})
}

// ResetCacheStats clears all counters.
func (h *CacheHandler) ResetCacheStats(c *gin.Context) {
	h.cacheAnalytics.ResetStats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "cache statistics reset",
	})
}
