package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/linewalk/internal/notification"
)

func (c *Controller) initNotificationRoutes() {
	c.Group.GET("/notifications", c.GetNotifications)
	c.Group.DELETE("/notifications/:id", c.DismissNotification)
}

// GetNotifications lists unexpired toasts, oldest first
func (c *Controller) GetNotifications(ctx echo.Context) error {
	toasts := []*notification.Toast{}
	if c.Toasts != nil {
		toasts = append(toasts, c.Toasts.List()...)
	}
	return ctx.JSON(http.StatusOK, toasts)
}

// DismissNotification removes a toast before it expires
func (c *Controller) DismissNotification(ctx echo.Context) error {
	if c.Toasts == nil || !c.Toasts.Dismiss(ctx.Param("id")) {
		return c.HandleError(ctx, nil, "Notification not found", http.StatusNotFound)
	}
	return ctx.NoContent(http.StatusNoContent)
}
