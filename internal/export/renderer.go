package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ebookGen/internal/config"
	"ebookGen/internal/database"
)

// Renderer 根据配置选择 PDF 引擎并生成导出文件字节。
type Renderer struct {
	pdfEngine string
	timeout   time.Duration
	logger    *slog.Logger
	// chromium is replaceable in tests.
	chromium func(ctx context.Context, html string) ([]byte, error)
}

// NewRenderer builds a renderer from the export configuration.
func NewRenderer(cfg config.ExportConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	engine := cfg.PDFEngine
	if engine == "" {
		engine = config.PDFEngineNative
	}
	return &Renderer{
		pdfEngine: engine,
		timeout:   cfg.RenderTimeout,
		logger:    logger,
		chromium:  RenderPDFChromium,
	}
}

// Render produces the artifact for book in the requested format.
// A book whose content is malformed still renders: the PDF gets a bare title
// page and the EPUB gets no chapters.
func (r *Renderer) Render(ctx context.Context, format Format, book database.Book, photos []PhotoAsset) ([]byte, error) {
	switch format {
	case FormatEPUB:
		return RenderEPUB(ToEPUBDocument(book, r.logger))
	case FormatPDF:
		doc, ok := ParseContent(book, r.logger)
		if !ok {
			doc.Title, doc.Author, doc.Category = book.Title, book.Author, book.Category
		}
		if r.pdfEngine != config.PDFEngineChromium {
			return RenderPDF(doc, photos)
		}
		html, err := RenderHTML(doc, photos)
		if err != nil {
			return nil, err
		}
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return r.chromium(ctx, html)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
