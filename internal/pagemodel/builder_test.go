package pagemodel

import (
	"testing"

	"github.com/noorkids/storyplayer/internal/timeline"
	"github.com/noorkids/storyplayer/pkg/types"
)

func testStory() *types.Story {
	return &types.Story{
		ID:                    "story_001",
		Title:                 "The Honest Shepherd",
		BodyText:              "ignored here",
		MoralLesson:           "Honesty is rewarded.",
		ScriptureReference:    "Surah Al-Baqarah 2:42",
		ScriptureOriginalText: "وَلَا تَلْبِسُوا الْحَقَّ بِالْبَاطِلِ",
		ScriptureTranslation:  "And do not mix the truth with falsehood.",
		ParentNotes:           "Discuss why the shepherd told the truth.",
		CoverImageRef:         "stories/story_001/cover.png",
	}
}

func TestBuild_PageSequence(t *testing.T) {
	model, err := Build(testStory(), []string{"page one text", "page two text"}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	pages := model.Pages()
	expectedKinds := []types.PageKind{
		types.PageCover, types.PageStory, types.PageStory,
		types.PageMoral, types.PageScripture, types.PageParentNotes, types.PageEnd,
	}

	if len(pages) != len(expectedKinds) {
		t.Fatalf("Expected %d pages, got %d", len(expectedKinds), len(pages))
	}
	for i, kind := range expectedKinds {
		if pages[i].Kind != kind {
			t.Errorf("Page %d: expected kind %s, got %s", i, kind, pages[i].Kind)
		}
		if pages[i].Index != i {
			t.Errorf("Page %d: expected contiguous index, got %d", i, pages[i].Index)
		}
	}

	if pages[0].Title != "The Honest Shepherd" {
		t.Errorf("Cover should carry the story title, got %q", pages[0].Title)
	}
	if pages[0].IllustrationRef != "stories/story_001/cover.png" {
		t.Errorf("Cover should carry the cover image ref, got %q", pages[0].IllustrationRef)
	}
	if model.StoryPageCount() != 2 {
		t.Errorf("Expected 2 story pages, got %d", model.StoryPageCount())
	}
}

func TestBuild_EmptyParentNotesOmitted(t *testing.T) {
	story := testStory()
	story.ParentNotes = "   "

	model, err := Build(story, []string{"only page"}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, p := range model.Pages() {
		if p.Kind == types.PageParentNotes {
			t.Fatal("Empty parent notes must not produce a page")
		}
	}

	last := model.Pages()[model.PageCount()-1]
	if last.Kind != types.PageEnd {
		t.Errorf("Last page must be the end page, got %s", last.Kind)
	}
}

func TestBuild_AttachesExistingIllustrations(t *testing.T) {
	story := testStory()
	story.SceneIllustrationRefs = []string{"scene0.png"}

	model, err := Build(story, []string{"one", "two", "three"}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	p1, _ := model.Page(1)
	if p1.IllustrationRef != "scene0.png" {
		t.Errorf("Story page 1 should carry scene0.png, got %q", p1.IllustrationRef)
	}
	p2, _ := model.Page(2)
	if p2.IllustrationRef != "" {
		t.Errorf("Story page 2 should have no illustration yet, got %q", p2.IllustrationRef)
	}
}

func TestBuild_RequiresStoryPages(t *testing.T) {
	if _, err := Build(testStory(), nil, nil); err == nil {
		t.Error("Expected error when building with zero story pages")
	}
}

func TestAttachIllustration_Idempotent(t *testing.T) {
	model, err := Build(testStory(), []string{"one", "two", "three"}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Out-of-order arrival across pages
	if !model.AttachIllustration(3-1, "scene1.png") {
		t.Error("First attach to page 2 should succeed")
	}
	if !model.AttachIllustration(1, "scene0.png") {
		t.Error("First attach to page 1 should succeed")
	}

	// Second attach never replaces
	if model.AttachIllustration(1, "scene0-v2.png") {
		t.Error("Attach to an already-illustrated page must be a no-op")
	}
	p, _ := model.Page(1)
	if p.IllustrationRef != "scene0.png" {
		t.Errorf("Illustration was replaced: %q", p.IllustrationRef)
	}
}

func TestAttachIllustration_RejectsNonStoryPages(t *testing.T) {
	model, err := Build(testStory(), []string{"one"}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if model.AttachIllustration(0, "late-cover.png") {
		t.Error("Cover page must not accept scene illustration attachment")
	}
	if model.AttachIllustration(99, "nowhere.png") {
		t.Error("Out-of-range attach must be a no-op")
	}
	if model.AttachIllustration(1, "") {
		t.Error("Empty ref must be a no-op")
	}
}

func TestAttachIllustrationByScene(t *testing.T) {
	model, err := Build(testStory(), []string{"one", "two"}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	pageIndex, ok := model.AttachIllustrationByScene(1, "scene1.png")
	if !ok || pageIndex != 2 {
		t.Errorf("Scene 1 should resolve to page 2, got %d (ok=%v)", pageIndex, ok)
	}

	if _, ok := model.AttachIllustrationByScene(-1, "bad.png"); ok {
		t.Error("Negative scene index must be rejected")
	}
}

func TestAttachWindows(t *testing.T) {
	model, err := Build(testStory(), []string{"one", "two"}, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	windows, err := timeline.Allocate(100, model.PageCount(), timeline.DefaultCoverWeight)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if err := model.AttachWindows(windows); err != nil {
		t.Fatalf("AttachWindows failed: %v", err)
	}

	pages := model.Pages()
	if pages[0].Window == nil || pages[0].Window.Start != 0 {
		t.Error("Cover window should start at 0")
	}
	if pages[len(pages)-1].Window.End != 100 {
		t.Error("End page window should end at the total duration")
	}

	if err := model.AttachWindows(windows[:2]); err == nil {
		t.Error("Expected error on window/page count mismatch")
	}
}

func TestBuild_WithWindows(t *testing.T) {
	windows, _ := timeline.Allocate(60, 7, 1.5)
	model, err := Build(testStory(), []string{"a", "b"}, windows)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, p := range model.Pages() {
		if p.Window == nil {
			t.Fatalf("Page %d missing window", p.Index)
		}
	}
}
