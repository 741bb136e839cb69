package api

import (
	"net/http"

	"github.com/labstack/echo/v5"
)

// ModelList is the /v1/models response body.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelCard `json:"data"`
}

func (s *Server) handleListModels(c *echo.Context) error {
	return c.JSON(http.StatusOK, ModelList{
		Object: "list",
		Data:   s.models.List(),
	})
}

func (s *Server) handleGetModel(c *echo.Context) error {
	id := c.Param("id")
	card, ok := s.models.Get(id)
	if !ok {
		return writeNotFound(c, "model "+id+" does not exist")
	}
	return c.JSON(http.StatusOK, card)
}

func (s *Server) handleDeleteModel(c *echo.Context) error {
	id := c.Param("id")
	if !s.models.Delete(id) {
		return writeNotFound(c, "model "+id+" does not exist")
	}
	s.log.Info("model unregistered", "model", id)
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"object":  "model",
		"deleted": true,
	})
}
