// Package export 将存储的书籍转换为 PDF / EPUB。
//
// ToPDFDocument and ToEPUBDocument produce the format-neutral page list and
// chapter-file list; RenderPDF, RenderEPUB and RenderPDFChromium produce bytes.
package export

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
)

// Format is an export target.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatEPUB Format = "epub"
)

// ParseFormat accepts "pdf" or "epub", case-insensitively.
func ParseFormat(raw string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatPDF:
		return FormatPDF, true
	case FormatEPUB:
		return FormatEPUB, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatEPUB {
		return "application/epub+zip"
	}
	return "application/pdf"
}

// Page 是 PDF 的一页纯文本内容。
type Page struct {
	Content string `json:"content"`
}

// PDFDocument is the page-list representation of a book.
type PDFDocument struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Pages  []Page `json:"pages"`
}

// EPUBChapter 是一个章节文件单元。
type EPUBChapter struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// EPUBDocument is the chapter-file representation of a book.
type EPUBDocument struct {
	Title    string        `json:"title"`
	Author   string        `json:"author"`
	Chapters []EPUBChapter `json:"chapters"`
}

// ToPDFDocument builds a title page followed by one page per chapter.
// Malformed content is logged and yields an empty page list.
func ToPDFDocument(book database.Book, logger *slog.Logger) PDFDocument {
	out := PDFDocument{Title: book.Title, Author: book.Author, Pages: []Page{}}
	doc, ok := parseForExport(book, logger, "pdf")
	if !ok {
		return out
	}
	out.Title, out.Author = titleAndAuthor(book, doc)

	out.Pages = make([]Page, 0, len(doc.Chapters)+1)
	out.Pages = append(out.Pages, Page{Content: fmt.Sprintf("%s\n\nby %s", out.Title, out.Author)})
	for _, ch := range doc.Chapters {
		out.Pages = append(out.Pages, Page{Content: fmt.Sprintf("%s\n\n%s", ch.Title, ch.Content)})
	}
	return out
}

// ToEPUBDocument builds one escaped XHTML fragment per chapter.
// Malformed content is logged and yields an empty chapter list.
func ToEPUBDocument(book database.Book, logger *slog.Logger) EPUBDocument {
	out := EPUBDocument{Title: book.Title, Author: book.Author, Chapters: []EPUBChapter{}}
	doc, ok := parseForExport(book, logger, "epub")
	if !ok {
		return out
	}
	out.Title, out.Author = titleAndAuthor(book, doc)

	out.Chapters = make([]EPUBChapter, 0, len(doc.Chapters))
	for i, ch := range doc.Chapters {
		out.Chapters = append(out.Chapters, EPUBChapter{
			Title:    ch.Title,
			Content:  chapterXHTML(ch),
			Filename: fmt.Sprintf("chapter-%d.xhtml", i+1),
		})
	}
	return out
}

// ParseContent returns the stored document, or false after logging when the
// content is malformed.
func ParseContent(book database.Book, logger *slog.Logger) (ebook.Document, bool) {
	doc, ok := parseForExport(book, logger, "render")
	if !ok {
		return ebook.Document{}, false
	}
	doc.Title, doc.Author = titleAndAuthor(book, doc)
	if doc.Category == "" {
		doc.Category = book.Category
	}
	return doc, true
}

func parseForExport(book database.Book, logger *slog.Logger, target string) (ebook.Document, bool) {
	doc, err := ebook.ParseDocument(book.Content)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("book content malformed, exporting empty document",
			slog.Uint64("book_id", uint64(book.ID)),
			slog.String("target", target),
			slog.Any("error", err),
		)
		return ebook.Document{}, false
	}
	return doc, true
}

func titleAndAuthor(book database.Book, doc ebook.Document) (string, string) {
	title, author := doc.Title, doc.Author
	if strings.TrimSpace(title) == "" {
		title = book.Title
	}
	if strings.TrimSpace(author) == "" {
		author = book.Author
	}
	return title, author
}

// chapterXHTML renders <h1>title</h1> and one <p> per blank-line separated paragraph.
func chapterXHTML(ch ebook.Chapter) string {
	var b strings.Builder
	b.WriteString("<h1>")
	b.WriteString(html.EscapeString(ch.Title))
	b.WriteString("</h1>")
	for _, para := range strings.Split(ch.Content, "\n\n") {
		if strings.TrimSpace(para) == "" && ch.Content != "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br/>"))
		b.WriteString("</p>")
	}
	return b.String()
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// DownloadFilename derives an attachment name from the book title.
func DownloadFilename(title string, format Format) string {
	base := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(title), "_")
	if base == "" {
		base = "book"
	}
	return base + "." + string(format)
}
