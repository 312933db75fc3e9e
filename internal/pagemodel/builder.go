package pagemodel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/noorkids/storyplayer/pkg/types"
)

// Model is the ordered, typed page sequence for one story. The sequence is
// fixed at build time; the only post-construction mutations are the
// set-once illustration attachment and the window attachment that happens
// when audio duration becomes known. Both are safe to call from notification
// callbacks while readers take snapshots.
type Model struct {
	mu    sync.RWMutex
	pages []*types.Page
}

// Build assembles the page sequence for a story: cover, one story page per
// paginated text chunk, moral, scripture, parent notes (omitted when empty)
// and end. Scene illustrations already present on the story are attached to
// their pages by order; windows may be nil when audio duration is not yet
// known.
func Build(story *types.Story, storyPages []string, windows []types.TimeWindow) (*Model, error) {
	if story == nil {
		return nil, fmt.Errorf("story is required")
	}
	if len(storyPages) == 0 {
		return nil, fmt.Errorf("at least one story page is required")
	}

	pages := make([]*types.Page, 0, len(storyPages)+5)

	pages = append(pages, &types.Page{
		Kind:            types.PageCover,
		Title:           story.Title,
		IllustrationRef: story.CoverImageRef,
	})

	for i, text := range storyPages {
		page := &types.Page{
			Kind: types.PageStory,
			Text: text,
		}
		if i < len(story.SceneIllustrationRefs) {
			page.IllustrationRef = story.SceneIllustrationRefs[i]
		}
		pages = append(pages, page)
	}

	pages = append(pages, &types.Page{
		Kind: types.PageMoral,
		Text: story.MoralLesson,
	})

	pages = append(pages, &types.Page{
		Kind:                  types.PageScripture,
		ScriptureReference:    story.ScriptureReference,
		ScriptureOriginalText: story.ScriptureOriginalText,
		ScriptureTranslation:  story.ScriptureTranslation,
	})

	// Empty optional sections are dropped entirely, never emitted blank
	if strings.TrimSpace(story.ParentNotes) != "" {
		pages = append(pages, &types.Page{
			Kind: types.PageParentNotes,
			Text: story.ParentNotes,
		})
	}

	pages = append(pages, &types.Page{
		Kind:  types.PageEnd,
		Title: "The End",
	})

	for i := range pages {
		pages[i].Index = i
	}

	m := &Model{pages: pages}

	if windows != nil {
		if err := m.AttachWindows(windows); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// PageCount returns the number of pages in the sequence
func (m *Model) PageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages)
}

// StoryPageCount returns the number of story pages (excluding cover and
// trailing sections)
func (m *Model) StoryPageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, p := range m.pages {
		if p.Kind == types.PageStory {
			count++
		}
	}
	return count
}

// Page returns a copy of the page at index
func (m *Model) Page(index int) (types.Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index < 0 || index >= len(m.pages) {
		return types.Page{}, false
	}
	return *m.pages[index], true
}

// Pages returns a snapshot copy of the full page sequence
func (m *Model) Pages() []types.Page {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make([]types.Page, len(m.pages))
	for i, p := range m.pages {
		snapshot[i] = *p
	}
	return snapshot
}

// AttachIllustration sets the illustration ref of the story page at
// pageIndex if it has none yet. The operation is idempotent: a page that
// already carries an illustration is never overwritten, so out-of-order
// arrival cannot cause a visible swap mid-read. Returns true when the ref
// was newly set.
func (m *Model) AttachIllustration(pageIndex int, ref string) bool {
	if ref == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if pageIndex < 0 || pageIndex >= len(m.pages) {
		return false
	}
	page := m.pages[pageIndex]
	if page.Kind != types.PageStory || page.IllustrationRef != "" {
		return false
	}

	page.IllustrationRef = ref
	return true
}

// AttachIllustrationByScene attaches an illustration by its scene order
// (0-based story-page order) and returns the resolved page index.
func (m *Model) AttachIllustrationByScene(sceneIndex int, ref string) (int, bool) {
	if sceneIndex < 0 {
		return -1, false
	}
	// Story pages start right after the cover
	pageIndex := 1 + sceneIndex
	if pageIndex >= m.PageCount() {
		return -1, false
	}
	return pageIndex, m.AttachIllustration(pageIndex, ref)
}

// AttachWindows attaches one time window per page, replacing any previous
// set. Called when audio duration becomes known, and again if the duration
// changes on a resource reload.
func (m *Model) AttachWindows(windows []types.TimeWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(windows) != len(m.pages) {
		return fmt.Errorf("window count %d does not match page count %d", len(windows), len(m.pages))
	}
	for i := range m.pages {
		w := windows[i]
		m.pages[i].Window = &w
	}
	return nil
}
