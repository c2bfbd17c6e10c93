package drive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Screenshot captures the page as a PNG and returns it as MCP image
// content. full switches from the viewport to a full-page capture.
func (svc *Service) Screenshot(ctx context.Context, id string, full bool) (*mcp.ImageContent, error) {
	sess, err := svc.get(id)
	if err != nil {
		return nil, err
	}
	data, err := sess.drv.Screenshot(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("drive: screenshot: %w", err)
	}
	return &mcp.ImageContent{Data: data, MIMEType: "image/png"}, nil
}

// ExportPDF prints the page to PDF and returns it as an embedded
// resource. The capture is run through pdfcpu validation and
// optimisation first; a capture pdfcpu cannot rewrite goes out as-is.
func (svc *Service) ExportPDF(ctx context.Context, id string) (*mcp.EmbeddedResource, error) {
	sess, err := svc.get(id)
	if err != nil {
		return nil, err
	}
	raw, err := sess.drv.PDF(ctx)
	if err != nil {
		return nil, fmt.Errorf("drive: pdf: %w", err)
	}
	out, pages, err := optimizePDF(raw)
	if err != nil {
		svc.log.Warn("drive: pdf optimization failed, returning capture unchanged", "session", id, "error", err)
		out = raw
	} else {
		svc.log.Debug("drive: pdf exported", "session", id, "pages", pages, "bytes", len(out))
	}
	return &mcp.EmbeddedResource{
		Resource: &mcp.ResourceContents{
			URI:      "pilote://" + id + "/page.pdf",
			MIMEType: "application/pdf",
			Blob:     out,
		},
	}, nil
}

// optimizePDF validates a PDF capture and writes the optimised document
// back out. Returns the rewritten bytes and the page count.
func optimizePDF(raw []byte) ([]byte, int, error) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(raw), conf)
	if err != nil {
		return nil, 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	var buf bytes.Buffer
	if err := api.WriteContext(pctx, &buf); err != nil {
		return nil, 0, fmt.Errorf("pdfcpu write: %w", err)
	}
	return buf.Bytes(), pctx.PageCount, nil
}
