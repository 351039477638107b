package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Exporter writes the full record dump in a given format
type Exporter interface {
	WriteCSV(ctx context.Context, w io.Writer) error
	WriteXLSX(ctx context.Context, w io.Writer) error
}

// ExportHandler serves the record export downloads
type ExportHandler struct {
	exporter Exporter
	logger   *logrus.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exporter Exporter, logger *logrus.Logger) *ExportHandler {
	return &ExportHandler{exporter: exporter, logger: logger}
}

// ExportCSV handles GET /export
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	h.serve(c, h.exporter.WriteCSV, "text/csv", "checkout_history.csv")
}

// ExportXLSX handles GET /export.xlsx
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	h.serve(c, h.exporter.WriteXLSX,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "checkout_history.xlsx")
}

// serve buffers the export so a store failure can still return a JSON error
func (h *ExportHandler) serve(c *gin.Context, write func(context.Context, io.Writer) error, contentType, filename string) {
	var buf bytes.Buffer
	if err := write(c.Request.Context(), &buf); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", "attachment;filename="+filename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
