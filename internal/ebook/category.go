package ebook

import "strings"

// Category 是书籍类型，存储值为展示名称。
type Category string

const (
	CategoryChildrensStory Category = "Children's Stories"
	CategoryCookbook       Category = "Cookbooks"
	CategoryAdventure      Category = "Adventure Books"
	CategoryFunnyQuotes    Category = "Funny Quotes"
	CategoryPhotoBook      Category = "Photo Book"
	CategoryCustomBook     Category = "Custom Book"

	CategoryScienceFiction Category = "Science Fiction"
	CategoryRomance        Category = "Romance"
	CategoryMystery        Category = "Mystery"
	CategoryBiography      Category = "Biography"
	CategorySelfHelp       Category = "Self-Help"
	CategoryEducational    Category = "Educational"
	CategoryFantasy        Category = "Fantasy"
)

// CategoryInfo 描述一个可选类型。
type CategoryInfo struct {
	ID          string   `json:"id"`
	Name        Category `json:"name"`
	Description string   `json:"description"`
}

var categoryCatalog = []CategoryInfo{
	{ID: "childrens-stories", Name: CategoryChildrensStory, Description: "Magical tales with custom characters and themes"},
	{ID: "family-cookbooks", Name: CategoryCookbook, Description: "Family recipes with stories"},
	{ID: "adventure-books", Name: CategoryAdventure, Description: "Travels and exciting experiences"},
	{ID: "funny-quotes", Name: CategoryFunnyQuotes, Description: "Hilarious moments and memorable sayings"},
	{ID: "photo-book", Name: CategoryPhotoBook, Description: "Photos woven into a narrative"},
	{ID: "custom-book", Name: CategoryCustomBook, Description: "Chapter-by-chapter prompts"},
	{ID: "science-fiction", Name: CategoryScienceFiction, Description: "Stories of the future"},
	{ID: "romance", Name: CategoryRomance, Description: "Love stories"},
	{ID: "mystery", Name: CategoryMystery, Description: "Clues and twists"},
	{ID: "biography", Name: CategoryBiography, Description: "Life stories"},
	{ID: "self-help", Name: CategorySelfHelp, Description: "Practical guidance"},
	{ID: "educational", Name: CategoryEducational, Description: "Learning guides"},
	{ID: "fantasy", Name: CategoryFantasy, Description: "Magic and wonder"},
}

// legacy enum codes used by older clients
var categoryCodes = map[string]Category{
	"childrens_story": CategoryChildrensStory,
	"recipe_cookbook": CategoryCookbook,
	"adventure":       CategoryAdventure,
	"funny_quotes":    CategoryFunnyQuotes,
	"photo_book":      CategoryPhotoBook,
	"custom_book":     CategoryCustomBook,
}

var categoryIndex = buildCategoryIndex()

func buildCategoryIndex() map[string]Category {
	index := make(map[string]Category, len(categoryCatalog)*2+len(categoryCodes))
	for _, info := range categoryCatalog {
		index[strings.ToLower(string(info.Name))] = info.Name
		index[info.ID] = info.Name
	}
	for code, c := range categoryCodes {
		index[code] = c
	}
	return index
}

// ParseCategory accepts the display name, the slug id or the legacy enum code,
// case-insensitively.
func ParseCategory(raw string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	c, ok := categoryIndex[key]
	return c, ok
}

// Categories 返回全部类型，顺序固定。
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryCatalog))
	copy(out, categoryCatalog)
	return out
}

// CategoryNames returns the display names in catalog order.
func CategoryNames() []string {
	names := make([]string, 0, len(categoryCatalog))
	for _, info := range categoryCatalog {
		names = append(names, string(info.Name))
	}
	return names
}
