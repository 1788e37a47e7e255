package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/linewalk/internal/inspection"
)

func (c *Controller) initCatalogRoutes() {
	c.Group.GET("/catalog", c.GetCatalog)
	c.Group.GET("/catalog/styles", c.SuggestStyles)
}

// GetCatalog returns the categories, styles, defect vocabulary and lines
func (c *Controller) GetCatalog(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Session.Catalog())
}

// SuggestStyles returns styles whose code contains ?q=, for the style autocomplete
func (c *Controller) SuggestStyles(ctx echo.Context) error {
	styles := c.Session.Catalog().SuggestStyles(ctx.QueryParam("q"))
	if styles == nil {
		styles = []inspection.Style{}
	}
	return ctx.JSON(http.StatusOK, styles)
}
