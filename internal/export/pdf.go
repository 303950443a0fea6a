package export

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/webp"

	"ebookGen/internal/ebook"
)

// 版面参数（毫米）
const (
	pageMargin   = 20.0
	lineHeight   = 7.0
	bodyFontSize = 12.0
	fontFamily   = "Helvetica"

	titleFontSize    = 24.0
	h1FontSize       = 18.0
	h2FontSize       = 14.0
	maxPhotoHeightMM = 180.0
)

// PhotoAsset pairs a photo with its image bytes for embedding.
type PhotoAsset struct {
	Photo ebook.Photo
	Data  []byte
}

// RenderPDF lays the document out on A4 pages with word wrapping and manual
// page breaks, followed by one page per photo that has image bytes.
func RenderPDF(doc ebook.Document, photos []PhotoAsset) ([]byte, error) {
	pdf, err := layoutPDF(doc, photos)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf          *gofpdf.Fpdf
	tr           func(string) string
	y            float64
	contentWidth float64
	bottom       float64
}

func layoutPDF(doc ebook.Document, photos []PhotoAsset) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Author, true)

	pageW, pageH := pdf.GetPageSize()
	w := &pdfWriter{
		pdf:          pdf,
		tr:           pdf.UnicodeTranslatorFromDescriptor(""),
		contentWidth: pageW - 2*pageMargin,
		bottom:       pageH - pageMargin,
	}

	w.titlePage(doc)
	for _, ch := range doc.Chapters {
		w.newPage()
		w.heading(ch.Title, h1FontSize)
		w.body(ch.Content)
	}
	for i, p := range photos {
		w.photoPage(i, p)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	return pdf, nil
}

func (w *pdfWriter) newPage() {
	w.pdf.AddPage()
	w.y = pageMargin
}

// ensureSpace 下一行超出可打印高度时换页。
func (w *pdfWriter) ensureSpace(h float64) {
	if w.y+h > w.bottom {
		w.newPage()
	}
}

func (w *pdfWriter) titlePage(doc ebook.Document) {
	w.newPage()
	_, pageH := w.pdf.GetPageSize()
	w.y = pageH / 3

	w.pdf.SetFont(fontFamily, "B", titleFontSize)
	for _, line := range w.pdf.SplitLines([]byte(w.tr(doc.Title)), w.contentWidth) {
		w.centered(string(line), titleFontSize*0.5)
	}
	w.y += lineHeight

	w.pdf.SetFont(fontFamily, "", h2FontSize)
	w.centered(w.tr("By "+doc.Author), lineHeight)

	if doc.Category != "" {
		w.y += lineHeight
		w.pdf.SetFont(fontFamily, "I", bodyFontSize)
		w.centered(w.tr(doc.Category), lineHeight)
	}
}

func (w *pdfWriter) centered(text string, h float64) {
	w.pdf.SetXY(pageMargin, w.y)
	w.pdf.CellFormat(w.contentWidth, h, text, "", 0, "C", false, 0, "")
	w.y += h
}

func (w *pdfWriter) heading(text string, size float64) {
	w.pdf.SetFont(fontFamily, "B", size)
	h := headingLineHeight(size)
	w.write(text, h)
	w.y += lineHeight / 2
}

// body renders markdown-ish content line by line:
// "# " and "## " headings, whole-line **bold**, blank line = one line of space.
func (w *pdfWriter) body(content string) {
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		switch {
		case strings.TrimSpace(line) == "":
			w.y += lineHeight
		case strings.HasPrefix(line, "## "):
			w.heading(strings.TrimPrefix(line, "## "), h2FontSize)
		case strings.HasPrefix(line, "# "):
			w.heading(strings.TrimPrefix(line, "# "), h1FontSize)
		case isBoldLine(line):
			w.pdf.SetFont(fontFamily, "B", bodyFontSize)
			w.write(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(line), "**"), "**"), lineHeight)
		default:
			w.pdf.SetFont(fontFamily, "", bodyFontSize)
			w.write(line, lineHeight)
		}
	}
}

// write wraps text to the content width using the current font.
func (w *pdfWriter) write(text string, h float64) {
	for _, line := range w.pdf.SplitLines([]byte(w.tr(text)), w.contentWidth) {
		w.ensureSpace(h)
		w.pdf.SetXY(pageMargin, w.y)
		w.pdf.CellFormat(w.contentWidth, h, string(line), "", 0, "L", false, 0, "")
		w.y += h
	}
}

// photoPage 图片以序号注册；order 与文件名都可能重复，gofpdf 按名称缓存图片。
func (w *pdfWriter) photoPage(index int, p PhotoAsset) {
	data, imageType := pdfImage(p.Data)
	if imageType == "" {
		return
	}
	name := photoImageName(index)
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	info := w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if w.pdf.Err() || info == nil {
		// 单张损坏的图片不影响整本书
		w.pdf.ClearError()
		return
	}

	width, height := fitImage(info.Width(), info.Height(), w.contentWidth, maxPhotoHeightMM)
	w.newPage()
	x := pageMargin + (w.contentWidth-width)/2
	w.pdf.ImageOptions(name, x, w.y, width, height, false, opts, 0, "")
	w.y += height + lineHeight

	if p.Photo.Caption != "" {
		w.pdf.SetFont(fontFamily, "I", bodyFontSize)
		for _, line := range w.pdf.SplitLines([]byte(w.tr(p.Photo.Caption)), w.contentWidth) {
			w.ensureSpace(lineHeight)
			w.centered(string(line), lineHeight)
		}
	}
	if p.Photo.Description != "" {
		w.y += lineHeight / 2
		w.pdf.SetFont(fontFamily, "", bodyFontSize)
		w.write(p.Photo.Description, lineHeight)
	}
}

func photoImageName(index int) string {
	return fmt.Sprintf("photo-%d", index)
}

func headingLineHeight(size float64) float64 {
	if h := size * 0.5; h > lineHeight {
		return h
	}
	return lineHeight
}

func isBoldLine(line string) bool {
	t := strings.TrimSpace(line)
	return len(t) > 4 && strings.HasPrefix(t, "**") && strings.HasSuffix(t, "**")
}

// pdfImage returns bytes gofpdf can embed together with their gofpdf image type.
// WebP has no gofpdf decoder and is re-encoded as PNG. Unsupported or undecodable
// data yields an empty type.
func pdfImage(data []byte) ([]byte, string) {
	if len(data) == 0 {
		return nil, ""
	}
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return data, "JPG"
	case "image/png":
		return data, "PNG"
	case "image/gif":
		return data, "GIF"
	case "image/webp":
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, ""
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, ""
		}
		return buf.Bytes(), "PNG"
	default:
		return nil, ""
	}
}

// browserImageType returns the MIME type for photos Chromium can display inline, or "".
func browserImageType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return ct
	default:
		return ""
	}
}

func fitImage(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxW
	}
	scale := maxW / w
	if h*scale > maxH {
		scale = maxH / h
	}
	return w * scale, h * scale
}
