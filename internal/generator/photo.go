package generator

import (
	"fmt"
	"strings"

	"ebookGen/internal/ebook"
)

const (
	// storiesThreshold is the number of described images needed for the
	// "Stories Behind the Moments" chapter.
	storiesThreshold  = 10
	storiesMaxEntries = 5
	storyMaxRunes     = 200
)

func photoBook(in Input, f fields) []ebook.Chapter {
	intro := fmt.Sprintf("Welcome to %s! %s", in.Title,
		f.or("This photo book captures beautiful memories and moments.", "description", "Book Description"))
	var theme string
	if t := f.get("theme", "Book Theme"); t != "" {
		theme = fmt.Sprintf("Theme: %s.", t)
	}
	var about string
	if p := f.prompt(); p != "" {
		about = p
	}

	chapters := []ebook.Chapter{
		{Title: "Introduction", Content: joinParagraphs(intro, theme, about)},
		{Title: "Photo Gallery", Content: PhotoNarrative(in.Images)},
	}

	described := describedImages(in.Images)
	if len(described) >= storiesThreshold {
		chapters = append(chapters, ebook.Chapter{
			Title:   "Stories Behind the Moments",
			Content: storiesBehindTheMoments(described),
		})
	}
	return chapters
}

// describedImages 返回去除首尾空白后描述非空的描述列表，保持输入顺序。
func describedImages(images []ImageInput) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if d := strings.TrimSpace(img.Description); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// PhotoNarrative strings image descriptions together in list order.
// Callers own the ordering; nothing here sorts.
func PhotoNarrative(images []ImageInput) string {
	d := describedImages(images)
	switch len(d) {
	case 0:
		return fmt.Sprintf("A collection of %d photographs capturing special moments.", len(images))
	case 1:
		return fmt.Sprintf("Featuring: %s.", d[0])
	case 2:
		return fmt.Sprintf("From %s, to %s.", d[0], d[1])
	default:
		middle := strings.Join(d[1:len(d)-1], ", ")
		return fmt.Sprintf("From %s, through %s, and finally to %s.", d[0], middle, d[len(d)-1])
	}
}

func storiesBehindTheMoments(described []string) string {
	n := len(described)
	if n > storiesMaxEntries {
		n = storiesMaxEntries
	}
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, truncate(described[i], storyMaxRunes)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
