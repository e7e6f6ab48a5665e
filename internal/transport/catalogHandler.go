package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookstack-dev/library-reservations/internal/service"
)

type CatalogHandler struct {
	catalog      service.CatalogService
	reservations service.ReservationService
}

func NewCatalogHandler(catalog service.CatalogService, reservations service.ReservationService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, reservations: reservations}
}

func (h *CatalogHandler) AddResource(c *gin.Context) {
	var req service.AddResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resource, err := h.catalog.AddResource(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resource)
}

func (h *CatalogHandler) GetResource(c *gin.Context) {
	resource, err := h.catalog.GetResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resource)
}

func (h *CatalogHandler) GetResources(c *gin.Context) {
	if title := c.Query("title"); title != "" {
		resources, err := h.catalog.SearchResources(c.Request.Context(), title)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resources)
		return
	}

	resources, err := h.catalog.ListResources(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resources)
}

func (h *CatalogHandler) RemoveResource(c *gin.Context) {
	if err := h.catalog.RemoveResource(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "resource removed"})
}

func (h *CatalogHandler) GetQueueLength(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"resource_id":  c.Param("id"),
		"queue_length": h.reservations.QueueLength(c.Param("id")),
	})
}
