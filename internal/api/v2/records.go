package api

import (
	"mime"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/export/targets"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/notification"
	"github.com/tphakala/linewalk/internal/session"
)

// RecordSummary is a saved record without its rows
type RecordSummary struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Header  inspection.Header  `json:"header"`
	Summary inspection.Summary `json:"summary"`
	SavedAt time.Time          `json:"savedAt"`
}

func (c *Controller) initRecordRoutes() {
	c.Group.GET("/records", c.ListRecords)
	c.Group.GET("/records/:id", c.GetRecord)
	c.Group.GET("/records/:id/download", c.DownloadRecord)
	c.Group.DELETE("/records/:id", c.DeleteRecord)
}

// ListRecords returns every saved record in save order
func (c *Controller) ListRecords(ctx echo.Context) error {
	records, err := c.Records.List(ctx.Request().Context())
	if err != nil {
		return c.handleDomainError(ctx, err, "Failed to list records")
	}
	out := make([]RecordSummary, 0, len(records))
	for i := range records {
		out = append(out, RecordSummary{
			ID:      records[i].ID,
			Name:    records[i].Name,
			Header:  records[i].Header,
			Summary: records[i].Summary(),
			SavedAt: records[i].SavedAt,
		})
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetRecord returns one record with its rows
func (c *Controller) GetRecord(ctx echo.Context) error {
	rec, err := c.Records.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.handleDomainError(ctx, err, "Record not found")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// DownloadRecord encodes a record as a workbook, or csv when that fails,
// and sends it as an attachment. Configured targets get a copy in the background.
func (c *Controller) DownloadRecord(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	rec, err := c.Records.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		c.toast(notification.TypeError, "Export failed: record not found")
		return c.handleDomainError(ctx, err, "Record not found")
	}

	sink := targets.NewMemoryTarget()
	res, err := c.Exporter.Export(reqCtx, rec, sink)
	if err != nil {
		c.toast(notification.TypeError, "Export of "+rec.Name+" failed")
		return c.handleDomainError(ctx, err, "Failed to export record")
	}
	if res.Fallback {
		c.toast(notification.TypeWarning, "Workbook export failed, downloaded "+res.FileName+" as CSV")
	}

	c.Exporter.Publish(rec)

	_, data := sink.File()
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName}))
	return ctx.Blob(http.StatusOK, res.ContentType, data)
}

// DeleteRecord asks for confirmation before deleting a record
func (c *Controller) DeleteRecord(ctx echo.Context) error {
	return c.askFor(ctx, session.Command{Kind: session.CmdRequestDeleteRecord, RecordID: ctx.Param("id")}, "Failed to delete record")
}

func (c *Controller) toast(t notification.Type, message string) {
	if c.Toasts != nil {
		c.Toasts.Notify(t, "export", message)
	}
}

var _ RecordReader = (*datastore.Store)(nil)
