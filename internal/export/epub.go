package export

import (
	"bytes"
	"fmt"

	epub "github.com/go-shiori/go-epub"
	"github.com/microcosm-cc/bluemonday"
)

// chapterPolicy 只保留章节正文需要的标签，用户编辑过的内容也会经过它。
var chapterPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("h1", "h2", "p", "br", "em", "strong")
	return p
}()

// RenderEPUB packages the chapter files into an EPUB archive.
func RenderEPUB(doc EPUBDocument) ([]byte, error) {
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	book, err := epub.NewEpub(title)
	if err != nil {
		return nil, fmt.Errorf("new epub: %w", err)
	}
	book.SetAuthor(doc.Author)
	book.SetLang("en")

	for _, ch := range doc.Chapters {
		body := chapterPolicy.Sanitize(ch.Content)
		if _, err := book.AddSection(body, ch.Title, ch.Filename, ""); err != nil {
			return nil, fmt.Errorf("add section %s: %w", ch.Filename, err)
		}
	}

	var buf bytes.Buffer
	if _, err := book.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write epub: %w", err)
	}
	return buf.Bytes(), nil
}
