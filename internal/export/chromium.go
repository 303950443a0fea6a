package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/vincent-petithory/dataurl"

	"ebookGen/internal/ebook"
)

var bookHTML = template.Must(template.New("book").Funcs(template.FuncMap{
	"paragraphs": func(s string) []string { return strings.Split(s, "\n\n") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Doc.Title}}</title>
<style>
@page { size: A4; margin: 20mm; }
body { font-family: Helvetica, Arial, sans-serif; font-size: 12pt; line-height: 1.6; }
.title-page { height: 250mm; display: flex; flex-direction: column; justify-content: center; text-align: center; page-break-after: always; }
.title-page h1 { font-size: 24pt; margin: 0 0 8mm; }
.chapter { page-break-before: always; }
.chapter h1 { font-size: 18pt; }
figure { page-break-before: always; text-align: center; margin: 0; }
figure img { max-width: 100%; max-height: 180mm; }
</style>
</head>
<body>
<section class="title-page">
<h1>{{.Doc.Title}}</h1>
<p>By {{.Doc.Author}}</p>
{{if .Doc.Category}}<p><em>{{.Doc.Category}}</em></p>{{end}}
</section>
{{range .Doc.Chapters}}<section class="chapter">
<h1>{{.Title}}</h1>
{{range paragraphs .Content}}<p>{{.}}</p>
{{end}}</section>
{{end}}{{range .Photos}}<figure>
<img src="{{.Src}}" alt="{{.Caption}}">
{{if .Caption}}<figcaption>{{.Caption}}</figcaption>{{end}}
</figure>
{{end}}</body>
</html>
`))

type htmlPhoto struct {
	Src     template.URL
	Caption string
}

// RenderHTML renders the document as a printable HTML page for the Chromium engine.
// Photo bytes are inlined as data URLs.
func RenderHTML(doc ebook.Document, photos []PhotoAsset) (string, error) {
	data := struct {
		Doc    ebook.Document
		Photos []htmlPhoto
	}{Doc: doc}
	for _, p := range photos {
		mediaType := browserImageType(p.Data)
		if mediaType == "" {
			continue
		}
		src := dataurl.New(p.Data, mediaType).String()
		data.Photos = append(data.Photos, htmlPhoto{Src: template.URL(src), Caption: p.Photo.Caption})
	}

	var buf bytes.Buffer
	if err := bookHTML.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// RenderPDFChromium 使用 go-rod 在无头浏览器中渲染 HTML 并返回 PDF 字节。
func RenderPDFChromium(ctx context.Context, htmlContent string) ([]byte, error) {
	launch := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().Context(ctx).ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	if err := page.SetDocumentContent(htmlContent); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}
