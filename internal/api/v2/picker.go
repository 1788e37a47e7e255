package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/linewalk/internal/session"
)

// pickerTagsRequest either replaces the pending selection with Tags, or
// checks or unchecks a single Tag when Tags is absent.
type pickerTagsRequest struct {
	Tags    []string `json:"tags"`
	Tag     string   `json:"tag"`
	Checked bool     `json:"checked"`
}

func (c *Controller) initPickerRoutes() {
	c.Group.GET("/form/rows/:id/picker", c.GetPicker)
	c.Group.POST("/form/rows/:id/picker/toggle", c.TogglePicker)
	c.Group.PUT("/form/rows/:id/picker/tags", c.SetPickerTags)
	c.Group.POST("/form/pickers/close", c.CloseAllPickers)
}

// GetPicker returns a row's picker with the vocabulary filtered by ?q=
func (c *Controller) GetPicker(ctx echo.Context) error {
	view, err := c.Session.Picker(ctx.Param("id"), ctx.QueryParam("q"))
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to load defect picker")
	}
	return ctx.JSON(http.StatusOK, view)
}

// TogglePicker opens or closes a row's picker. Opening returns the commit confirmation.
func (c *Controller) TogglePicker(ctx echo.Context) error {
	res, err := c.dispatch(ctx, session.Command{Kind: session.CmdTogglePicker, RowID: ctx.Param("id")})
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to toggle defect picker")
	}
	return ctx.JSON(http.StatusOK, res)
}

// SetPickerTags edits the pending selection of an open picker
func (c *Controller) SetPickerTags(ctx echo.Context) error {
	var body pickerTagsRequest
	if err := ctx.Bind(&body); err != nil {
		return c.bindError(ctx, err)
	}

	cmd := session.Command{Kind: session.CmdSetPickerTags, RowID: ctx.Param("id"), Tags: body.Tags}
	if body.Tags == nil && body.Tag != "" {
		cmd = session.Command{Kind: session.CmdCheckTag, RowID: ctx.Param("id"), Tag: body.Tag, On: body.Checked}
	}

	res, err := c.dispatch(ctx, cmd)
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to update defect selection")
	}
	return ctx.JSON(http.StatusOK, res.Picker)
}

// CloseAllPickers closes every open picker, dropping uncommitted selections
func (c *Controller) CloseAllPickers(ctx echo.Context) error {
	res, err := c.dispatch(ctx, session.Command{Kind: session.CmdCloseAllPickers})
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to close defect pickers")
	}
	closed := res.Closed
	if closed == nil {
		closed = []string{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{"closed": closed})
}
