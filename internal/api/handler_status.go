package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GetStatus handles GET /api/status: the live view of the monitored branch.
// A snapshot and an error can coexist; the last good snapshot stays visible
// while a newer poll is failing.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.State())
}

// GetZones handles GET /api/branches/{branch_id}/zones: the latest archived
// per-zone occupancy.
func (h *Handler) GetZones(c *gin.Context) {
	branchID, err := strconv.ParseInt(c.Param("branch_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid branch ID"})
		return
	}

	zones, err := h.store.CurrentZones(c.Request.Context(), branchID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve zone occupancy"})
		return
	}
	c.JSON(http.StatusOK, zones)
}

const maxHistoryRecords = 1000

// GetHistory handles GET /api/branches/{branch_id}/history. Optional from/to
// query bounds use RFC3339.
func (h *Handler) GetHistory(c *gin.Context) {
	branchID, err := strconv.ParseInt(c.Param("branch_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid branch ID"})
		return
	}

	var from, to time.Time
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' timestamp format. Use RFC3339."})
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' timestamp format. Use RFC3339."})
			return
		}
	}

	records, err := h.store.History(c.Request.Context(), branchID, from, to, maxHistoryRecords)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}
	c.JSON(http.StatusOK, records)
}
