// =============================================================================
// communes.go - 地名リストエンドポイント
// =============================================================================
package api

import (
	"github.com/gin-gonic/gin"
)

// AllCommunes returns every known place name across all department groups.
func (h *Handler) AllCommunes(c *gin.Context) {
	communes, err := h.Gaz.AllCommunes(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"message": err.Error()})
		return
	}
	c.JSON(200, gin.H{
		"count":    len(communes),
		"communes": communes,
	})
}

// DeptCommunes returns the place names of one department.
func (h *Handler) DeptCommunes(c *gin.Context) {
	dept := c.Param("dept")
	communes, err := h.Gaz.Communes(c.Request.Context(), dept)
	if err != nil {
		c.JSON(404, gin.H{"message": err.Error()})
		return
	}
	c.JSON(200, gin.H{
		"departement": dept,
		"count":       len(communes),
		"communes":    communes,
	})
}

// PopulateCommunes force-refreshes every commune cache from the geo API.
// Slow (one API call per department); meant for the daily cron and manual
// maintenance.
func (h *Handler) PopulateCommunes(c *gin.Context) {
	stats := h.Gaz.PopulateAll(c.Request.Context())
	status := 200
	if len(stats.Errors) > 0 {
		status = 207
	}
	c.JSON(status, stats)
}
