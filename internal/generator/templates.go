package generator

import (
	"fmt"
	"strings"

	"ebookGen/internal/ebook"
)

func childrensStory(in Input, f fields) []ebook.Chapter {
	character := f.or("Alex", "mainCharacter", "Main Character Name")
	setting := f.get("setting", "Setting/Place")
	if setting == "" || strings.EqualFold(setting, "Custom Setting") {
		setting = f.or("a magical forest", "customSetting")
	}
	lesson := strings.ToLower(f.or("kindness", "lesson", "Lesson or Moral"))
	challenge := f.get("adventure", "Adventure/Challenge")

	opening := fmt.Sprintf("Once upon a time, there was a brave little character named %s who lived in %s.", character, setting)
	if age := f.get("characterAge", "Character Age"); age != "" {
		opening += fmt.Sprintf(" %s was only %s years old, but full of curiosity.", character, age)
	}

	var about string
	if p := f.prompt(); p != "" && p != challenge {
		about = fmt.Sprintf("This is a story about %s.", p)
	}

	return []ebook.Chapter{
		{
			Title:   "Chapter 1: The Beginning",
			Content: joinParagraphs(opening, challenge, about, f.get("additionalDetails")),
		},
		{
			Title:   "Chapter 2: The Journey",
			Content: fmt.Sprintf("%s embarked on an incredible journey, learning about %s along the way.", character, lesson),
		},
		{
			Title:   "Chapter 3: The End",
			Content: fmt.Sprintf("And they all lived happily ever after, having learned valuable lessons about %s and courage.", lesson),
		},
	}
}

func cookbook(in Input, f fields) []ebook.Chapter {
	intro := fmt.Sprintf("Welcome to %s! %s", in.Title,
		f.or("This cookbook contains cherished family recipes passed down through generations.", "familyStories", "Family Stories"))

	var family string
	if name := f.get("familyName"); name != "" {
		family = fmt.Sprintf("These recipes come from the kitchen of %s.", name)
	}
	var theme string
	if p := f.prompt(); p != "" {
		theme = fmt.Sprintf("This collection celebrates %s.", p)
	}

	recipeTypes := f.or("Family Favorite", "recipeTypes", "Recipe Types", "cuisineType")
	body := "Here are some wonderful recipes that have been family favorites for years."
	var occasions, ingredients string
	if v := f.get("specialOccasions"); v != "" {
		occasions = fmt.Sprintf("Perfect for %s.", v)
	}
	if v := f.get("specialIngredients"); v != "" {
		ingredients = fmt.Sprintf("Kitchen secrets: %s", v)
	}

	return []ebook.Chapter{
		{Title: "Introduction", Content: joinParagraphs(intro, family, theme)},
		{Title: fmt.Sprintf("%s Recipes", recipeTypes), Content: joinParagraphs(body, occasions, ingredients)},
	}
}

func adventure(in Input, f fields) []ebook.Chapter {
	destination := f.or("unknown lands", "destination", "Adventure Location")
	details := f.get("adventureDetails", "Adventure Details")
	p := f.prompt()

	opening := fmt.Sprintf("My incredible adventure to %s was unforgettable.", destination)
	if d := f.get("duration"); d != "" {
		opening += fmt.Sprintf(" It lasted %s.", strings.ToLower(d))
	}
	var about string
	if p != "" && p != details {
		about = fmt.Sprintf("It all started with %s.", p)
	}

	moments := f.or("The journey was filled with amazing experiences and unexpected discoveries.", "highlights", "Best Memories")
	var challenges, people, lessons string
	if v := f.get("challenges"); v != "" {
		challenges = "Not everything went according to plan: " + v
	}
	if v := f.get("peopleMet", "peopleMetShe"); v != "" {
		people = "Along the way I met " + v
	}
	if v := f.get("lessonsLearned"); v != "" {
		lessons = "What I learned: " + v
	}

	return []ebook.Chapter{
		{Title: "The Adventure Begins", Content: joinParagraphs(opening, details, about)},
		{Title: "Memorable Moments", Content: joinParagraphs(moments, challenges, people, lessons)},
	}
}

func funnyQuotes(in Input, f fields) []ebook.Chapter {
	source := f.or("My Favorite Person", "quoteSource", "Quote Source", "subjectPerson")
	topic := f.or(f.or("everyday life", PromptKey), "theme", "Theme/Topic")

	intro := fmt.Sprintf("%s - a collection of hilarious moments and sayings about %s.", source, topic)
	var relation string
	if r := f.get("relationshipToSubject"); r != "" {
		relation = fmt.Sprintf("Collected lovingly by their %s.", r)
	}
	var about string
	if p := f.prompt(); p != "" && p != topic {
		about = fmt.Sprintf("This book is about %s.", p)
	}

	return []ebook.Chapter{
		{Title: "Introduction", Content: joinParagraphs(intro, relation, about)},
		{Title: "The Funny Moments", Content: f.or("Here are some of the funniest things that have been said...", "sampleQuotes", "Sample Quotes")},
	}
}

var genreOpenings = map[ebook.Category]string{
	ebook.CategoryScienceFiction: "In the year 2150, %s. Technology has advanced beyond our wildest dreams, but humanity faces new challenges. Our protagonists must navigate this brave new world.",
	ebook.CategoryRomance:        "Love blooms when %s. Two hearts find each other against all odds. Their journey teaches us about the power of true love and dedication.",
	ebook.CategoryMystery:        "The mystery unfolds when %s. Detective work reveals hidden clues and surprising twists. Nothing is quite what it seems in this thrilling tale.",
	ebook.CategoryBiography:      "The inspiring life story of %s. From humble beginnings to great achievements, this biography showcases the power of perseverance and determination.",
	ebook.CategorySelfHelp:       "Transform your life with insights about %s. This guide provides practical steps and wisdom to help you achieve your goals and find fulfillment.",
	ebook.CategoryEducational:    "Learn all about %s in this comprehensive educational guide. Clear explanations and examples make complex topics easy to understand.",
	ebook.CategoryFantasy:        "In a realm of magic and wonder, %s. Mythical creatures and ancient powers shape this extraordinary tale of good versus evil.",
}

const defaultOpening = "This is a story about %s. Every great book begins with a single idea, and this one started with yours."

func general(in Input, f fields) []ebook.Chapter {
	subject := f.or("an untold story", PromptKey, "Detailed Prompt", "Main Theme/Topic")
	opening, ok := genreOpenings[in.Category]
	if !ok {
		opening = defaultOpening
	}
	title := in.Title
	if strings.TrimSpace(title) == "" {
		title = "this book"
	}

	return []ebook.Chapter{
		{Title: "Chapter 1", Content: fmt.Sprintf(opening, subject)},
		{Title: "Conclusion", Content: fmt.Sprintf("Thank you for reading %s. Your imagination has brought this story to life.", title)},
	}
}

const chapterWrapper = "This chapter explores the themes and ideas outlined in the prompt."

// ChapterContent builds the body for one custom chapter prompt.
func ChapterContent(c ChapterPrompt) string {
	var b strings.Builder
	b.WriteString(c.Prompt)
	b.WriteString("\n\n")
	b.WriteString(chapterWrapper)
	if s := strings.TrimSpace(c.SpecificInclusions); s != "" {
		b.WriteString("\n\nSpecific elements to include: ")
		b.WriteString(s)
	}
	b.WriteString("\n\nGenerated content based on your specifications would appear here, incorporating the specific elements you requested.")
	return b.String()
}

func customBook(in Input, _ fields) []ebook.Chapter {
	chapters := make([]ebook.Chapter, 0, len(in.Chapters))
	for i, c := range in.Chapters {
		title := strings.TrimSpace(c.Title)
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		chapters = append(chapters, ebook.Chapter{Title: title, Content: ChapterContent(c)})
	}
	return chapters
}
