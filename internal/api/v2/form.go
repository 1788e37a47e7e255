package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/session"
)

// maxPhotoBytes bounds a single row photo
const maxPhotoBytes = 8 << 20

// headerFieldOrder applies style before model so an explicit model wins
var headerFieldOrder = []string{"category", "style", "model", "line", "auditor", "date", "time"}

// InputValue accepts a JSON string or number and keeps the raw text, so score
// input reaches the parser exactly as typed.
type InputValue string

// UnmarshalJSON implements json.Unmarshaler
func (v *InputValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = InputValue(s)
		return nil
	}
	*v = InputValue(data)
	return nil
}

type (
	styleRequest struct {
		Style string `json:"style"`
	}
	statusRequest struct {
		Status string `json:"status"`
	}
	scoreRequest struct {
		Field string     `json:"field"` // "max" or "actual"
		Value InputValue `json:"value"`
	}
	textRequest struct {
		Value string `json:"value"`
	}
)

func (c *Controller) initFormRoutes() {
	c.Group.GET("/form", c.GetForm)
	c.Group.GET("/form/summary", c.GetSummary)
	c.Group.GET("/form/header", c.GetHeader)
	c.Group.PUT("/form/header", c.UpdateHeader)
	c.Group.POST("/form/header/style", c.SelectStyle)

	c.Group.POST("/form/rows", c.AddRow)
	c.Group.DELETE("/form/rows/:id", c.DeleteRow)
	c.Group.POST("/form/rows/:id/reset", c.ResetRow)
	c.Group.PUT("/form/rows/:id/status", c.SetStatus)
	c.Group.PUT("/form/rows/:id/score", c.SetScore)
	c.Group.PUT("/form/rows/:id/note", c.SetNote)
	c.Group.PUT("/form/rows/:id/description", c.SetDescription)
	c.Group.POST("/form/rows/:id/photo", c.UploadPhoto)
	c.Group.DELETE("/form/rows/:id/photo", c.DeletePhoto)

	c.Group.POST("/form/save", c.SaveForm)
}

// GetForm returns a snapshot of the whole session
func (c *Controller) GetForm(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Session.Snapshot())
}

// GetSummary returns totals recomputed from the current rows
func (c *Controller) GetSummary(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Session.Summary())
}

// GetHeader returns the form header
func (c *Controller) GetHeader(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Session.Form().Header)
}

// UpdateHeader sets every field present in the body, e.g. {"line":"101"}
func (c *Controller) UpdateHeader(ctx echo.Context) error {
	var body map[string]string
	if err := ctx.Bind(&body); err != nil {
		return c.bindError(ctx, err)
	}
	if len(body) == 0 {
		return c.HandleError(ctx, nil, "No header fields given", http.StatusBadRequest)
	}

	values := make(map[string]string, len(body))
	fields := make([]string, 0, len(body))
	for name, value := range body {
		name = strings.ToLower(strings.TrimSpace(name))
		values[name] = value
		fields = append(fields, name)
	}
	slices.SortFunc(fields, func(a, b string) int {
		return slices.Index(headerFieldOrder, a) - slices.Index(headerFieldOrder, b)
	})

	var res session.Result
	for _, field := range fields {
		var err error
		res, err = c.dispatch(ctx, session.Command{Kind: session.CmdSetHeader, Field: field, Value: values[field]})
		if err != nil {
			return c.handleDomainError(ctx, err, "Failed to update header")
		}
	}
	return ctx.JSON(http.StatusOK, res.Header)
}

// SelectStyle sets the style from a suggestion and fills in its model
func (c *Controller) SelectStyle(ctx echo.Context) error {
	var body styleRequest
	if err := ctx.Bind(&body); err != nil {
		return c.bindError(ctx, err)
	}
	res, err := c.dispatch(ctx, session.Command{Kind: session.CmdSelectStyle, Value: body.Style})
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to select style")
	}
	return ctx.JSON(http.StatusOK, res.Header)
}

// AddRow appends a row with default scores
func (c *Controller) AddRow(ctx echo.Context) error {
	res, err := c.dispatch(ctx, session.Command{Kind: session.CmdAddRow})
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to add row")
	}
	return ctx.JSON(http.StatusCreated, res.Row)
}

// DeleteRow asks for confirmation before removing a row
func (c *Controller) DeleteRow(ctx echo.Context) error {
	return c.askFor(ctx, session.Command{Kind: session.CmdRequestDeleteRow, RowID: ctx.Param("id")}, "Failed to delete row")
}

// ResetRow asks for confirmation before clearing a row
func (c *Controller) ResetRow(ctx echo.Context) error {
	return c.askFor(ctx, session.Command{Kind: session.CmdRequestResetRow, RowID: ctx.Param("id")}, "Failed to reset row")
}

// askFor dispatches a command that answers with a pending confirmation
func (c *Controller) askFor(ctx echo.Context, cmd session.Command, message string) error {
	res, err := c.dispatch(ctx, cmd)
	if err != nil {
		return c.handleDomainError(ctx, err, message)
	}
	return ctx.JSON(http.StatusAccepted, res.Confirmation)
}

// SetStatus sets a row to "", "OK" or "NG"
func (c *Controller) SetStatus(ctx echo.Context) error {
	var body statusRequest
	if err := ctx.Bind(&body); err != nil {
		return c.bindError(ctx, err)
	}
	status, ok := inspection.ParseStatus(body.Status)
	if !ok {
		err := errors.ValidationError("status must be empty, OK or NG")
		return c.handleDomainError(ctx, err, "Invalid status")
	}
	return c.rowCommand(ctx, session.Command{Kind: session.CmdSetStatus, RowID: ctx.Param("id"), Status: status}, "Failed to set status")
}

// SetScore edits the max or actual score. Unparseable input counts as 0.
func (c *Controller) SetScore(ctx echo.Context) error {
	var body scoreRequest
	if err := ctx.Bind(&body); err != nil {
		return c.bindError(ctx, err)
	}
	field := inspection.ScoreField(strings.ToLower(body.Field))
	if field != inspection.ScoreMax && field != inspection.ScoreActual {
		err := errors.ValidationError("field must be max or actual")
		return c.handleDomainError(ctx, err, "Invalid score field")
	}
	res, err := c.dispatch(ctx, session.Command{
		Kind:  session.CmdSetScore,
		RowID: ctx.Param("id"),
		Field: string(field),
		Value: string(body.Value),
	})
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to set score")
	}
	return ctx.JSON(http.StatusOK, res)
}

// SetNote sets the row remark
func (c *Controller) SetNote(ctx echo.Context) error {
	var body textRequest
	if err := ctx.Bind(&body); err != nil {
		return c.bindError(ctx, err)
	}
	return c.rowCommand(ctx, session.Command{Kind: session.CmdSetNote, RowID: ctx.Param("id"), Value: body.Value}, "Failed to set note")
}

// SetDescription sets the row description
func (c *Controller) SetDescription(ctx echo.Context) error {
	var body textRequest
	if err := ctx.Bind(&body); err != nil {
		return c.bindError(ctx, err)
	}
	return c.rowCommand(ctx, session.Command{Kind: session.CmdSetDescription, RowID: ctx.Param("id"), Value: body.Value}, "Failed to set description")
}

// UploadPhoto attaches the multipart file "photo" to a row
func (c *Controller) UploadPhoto(ctx echo.Context) error {
	fh, err := ctx.FormFile("photo")
	if err != nil {
		return c.HandleError(ctx, err, "Missing photo file", http.StatusBadRequest)
	}
	if fh.Size > maxPhotoBytes {
		return c.HandleError(ctx, nil, "Photo is too large", http.StatusRequestEntityTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read photo", http.StatusBadRequest)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read photo", http.StatusBadRequest)
	}
	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" || contentType == echo.MIMEOctetStream {
		contentType = http.DetectContentType(data)
	}

	return c.rowCommand(ctx, session.Command{
		Kind:  session.CmdSetPhoto,
		RowID: ctx.Param("id"),
		Attachment: &inspection.Attachment{
			Name:        fh.Filename,
			ContentType: contentType,
			Data:        data,
		},
	}, "Failed to attach photo")
}

// DeletePhoto removes a row's photo
func (c *Controller) DeletePhoto(ctx echo.Context) error {
	return c.rowCommand(ctx, session.Command{Kind: session.CmdClearPhoto, RowID: ctx.Param("id")}, "Failed to remove photo")
}

// rowCommand dispatches a row edit and answers with the updated row
func (c *Controller) rowCommand(ctx echo.Context, cmd session.Command, message string) error {
	res, err := c.dispatch(ctx, cmd)
	if err != nil {
		return c.handleDomainError(ctx, err, message)
	}
	return ctx.JSON(http.StatusOK, res.Row)
}

// SaveForm saves the form, or asks first when fewer rows than expected were inspected
func (c *Controller) SaveForm(ctx echo.Context) error {
	res, err := c.dispatch(ctx, session.Command{Kind: session.CmdSave})
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to save form")
	}
	if res.Confirmation != nil {
		return ctx.JSON(http.StatusAccepted, res)
	}
	return ctx.JSON(http.StatusCreated, res)
}
