// Package generator assembles book content from fixed prose templates.
//
// Output is a pure function of the input: no I/O, no clock, no randomness.
package generator

import (
	"strings"

	"ebookGen/internal/ebook"
)

// Input 汇总一次生成所需的全部字段。
type Input struct {
	Category ebook.Category
	Title    string
	Author   string
	FormData map[string]string
	Chapters []ChapterPrompt
	Images   []ImageInput
}

// ChapterPrompt 是自定义书籍中单个章节的提示。
type ChapterPrompt struct {
	Title              string `json:"title"`
	Prompt             string `json:"prompt"`
	SpecificInclusions string `json:"specific_inclusions"`
}

// ImageInput 是相册书籍中的一张图片。
type ImageInput struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Caption     string `json:"caption"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type templateFunc func(in Input, f fields) []ebook.Chapter

var templates = map[ebook.Category]templateFunc{
	ebook.CategoryChildrensStory: childrensStory,
	ebook.CategoryCookbook:       cookbook,
	ebook.CategoryAdventure:      adventure,
	ebook.CategoryFunnyQuotes:    funnyQuotes,
	ebook.CategoryPhotoBook:      photoBook,
	ebook.CategoryCustomBook:     customBook,
}

// Generate 根据类型分派到对应模板，缺失字段使用默认文案，从不返回错误。
// Required-field validation happens before this is called.
func Generate(in Input) ebook.Document {
	f := fields(in.FormData)

	tmpl, ok := templates[in.Category]
	if !ok {
		tmpl = general
	}

	doc := ebook.Document{
		Title:    in.Title,
		Author:   in.Author,
		Category: string(in.Category),
		Chapters: tmpl(in, f),
	}
	if len(in.Images) > 0 {
		doc.Photos = make([]ebook.Photo, 0, len(in.Images))
		for _, img := range in.Images {
			doc.Photos = append(doc.Photos, ebook.Photo{
				Filename:    img.Filename,
				URL:         img.URL,
				Caption:     img.Caption,
				Description: img.Description,
				Order:       img.Order,
			})
		}
	}
	return doc
}

// fields 提供带别名和默认值的表单取值。
type fields map[string]string

// get returns the first non-blank value among keys.
func (f fields) get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(f[k]); v != "" {
			return v
		}
	}
	return ""
}

func (f fields) or(fallback string, keys ...string) string {
	if v := f.get(keys...); v != "" {
		return v
	}
	return fallback
}

func (f fields) prompt() string {
	return f.get(PromptKey)
}

// PromptKey is the form-data key under which the book's top-level prompt is passed.
const PromptKey = "prompt"

// joinParagraphs drops blank parts and separates the rest with a blank line.
func joinParagraphs(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
