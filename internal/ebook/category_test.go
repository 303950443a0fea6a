package ebook

import "testing"

func TestParseCategory(t *testing.T) {
	cases := []struct {
		raw  string
		want Category
		ok   bool
	}{
		{"Children's Stories", CategoryChildrensStory, true},
		{"  children's STORIES ", CategoryChildrensStory, true},
		{"self-help", CategorySelfHelp, true},
		{"SCIENCE FICTION", CategoryScienceFiction, true},
		{"childrens-stories", CategoryChildrensStory, true},
		{"family-cookbooks", CategoryCookbook, true},
		{"Photo-Book", CategoryPhotoBook, true},
		{"childrens_story", CategoryChildrensStory, true},
		{"recipe_cookbook", CategoryCookbook, true},
		{"adventure", CategoryAdventure, true},
		{"FUNNY_QUOTES", CategoryFunnyQuotes, true},
		{"photo_book", CategoryPhotoBook, true},
		{"custom_book", CategoryCustomBook, true},
		{"", "", false},
		{"   ", "", false},
		{"Poetry", "", false},
		{"childrens story", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseCategory(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseCategory(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCatalogRoundTrips(t *testing.T) {
	infos := Categories()
	if len(infos) != 13 {
		t.Fatalf("expected 13 categories, got %d", len(infos))
	}
	for _, info := range infos {
		if c, ok := ParseCategory(info.ID); !ok || c != info.Name {
			t.Errorf("id %q parsed to (%q, %v)", info.ID, c, ok)
		}
		if c, ok := ParseCategory(string(info.Name)); !ok || c != info.Name {
			t.Errorf("name %q parsed to (%q, %v)", info.Name, c, ok)
		}
	}

	infos[0].Name = "mutated"
	if Categories()[0].Name != CategoryChildrensStory {
		t.Fatal("Categories must return a copy")
	}
	if names := CategoryNames(); names[0] != string(CategoryChildrensStory) || len(names) != len(infos) {
		t.Fatalf("unexpected names %v", names)
	}
}
