package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/linewalk/internal/session"
)

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

func (c *Controller) initConfirmationRoutes() {
	c.Group.GET("/confirmation", c.GetConfirmation)
	c.Group.POST("/confirmation/:ticket", c.ResolveConfirmation)
}

// GetConfirmation returns the pending confirmation, or 204 when there is none
func (c *Controller) GetConfirmation(ctx echo.Context) error {
	p, ok := c.Session.Pending()
	if !ok {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, p)
}

// ResolveConfirmation answers the pending confirmation with {"confirm": bool}
func (c *Controller) ResolveConfirmation(ctx echo.Context) error {
	ticket, err := strconv.ParseUint(ctx.Param("ticket"), 10, 64)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid confirmation ticket", http.StatusBadRequest)
	}
	var body confirmRequest
	if err := ctx.Bind(&body); err != nil {
		return c.bindError(ctx, err)
	}

	res, err := c.dispatch(ctx, session.Command{Kind: session.CmdResolve, Ticket: ticket, Confirmed: body.Confirm})
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to resolve confirmation")
	}
	return ctx.JSON(http.StatusOK, res)
}
