package centers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ store *Store }

func RegisterRoutes(r gin.IRoutes, store *Store) {
	h := &Handler{store: store}
	r.GET("/centers", h.List)
	r.GET("/centers/:id", h.Get)
}

func (h *Handler) List(c *gin.Context) {
	items, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list centers"})
		return
	}
	out := make([]CenterResponse, 0, len(items))
	for i := range items {
		out = append(out, items[i].toDTO())
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid center id"})
		return
	}

	center, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load center"})
		return
	}
	if center == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "center not found"})
		return
	}
	c.JSON(http.StatusOK, center.toDTO())
}
