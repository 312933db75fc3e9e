package story

import (
	"bytes"
	"context"
	"testing"

	"github.com/noorkids/storyplayer/internal/storage"
	"github.com/noorkids/storyplayer/pkg/types"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()

	adapter, err := storage.NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage adapter: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })

	return NewRepository(adapter)
}

func testStory() *types.Story {
	return &types.Story{
		Title:                 "The Honest Merchant",
		BodyText:              "Once upon a time there lived an honest merchant in the old city.",
		MoralLesson:           "Honesty brings blessing even when it costs us.",
		ScriptureReference:    "Quran 2:42",
		ScriptureOriginalText: "ولا تلبسوا الحق بالباطل",
		ScriptureTranslation:  "And do not mix the truth with falsehood.",
	}
}

func TestCreateAndGetStory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := testStory()
	if err := repo.CreateStory(ctx, s); err != nil {
		t.Fatalf("failed to create story: %v", err)
	}

	if s.ID == "" {
		t.Fatal("expected generated story ID")
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	got, err := repo.GetStory(ctx, s.ID)
	if err != nil {
		t.Fatalf("failed to get story: %v", err)
	}

	if got.Title != s.Title {
		t.Errorf("title mismatch: got %q, want %q", got.Title, s.Title)
	}
	if got.BodyText != s.BodyText {
		t.Errorf("body text mismatch")
	}
	if got.ScriptureReference != s.ScriptureReference {
		t.Errorf("scripture reference mismatch: got %q", got.ScriptureReference)
	}
}

func TestGetMissingStory(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.GetStory(context.Background(), "no-such-story"); err == nil {
		t.Error("expected error for missing story")
	}
}

func TestListStories(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s := testStory()
		if err := repo.CreateStory(ctx, s); err != nil {
			t.Fatalf("failed to create story: %v", err)
		}
	}

	stories, err := repo.ListStories(ctx)
	if err != nil {
		t.Fatalf("failed to list stories: %v", err)
	}

	if len(stories) != 3 {
		t.Errorf("expected 3 stories, got %d", len(stories))
	}
}

func TestAttachIllustrationSetOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := testStory()
	if err := repo.CreateStory(ctx, s); err != nil {
		t.Fatalf("failed to create story: %v", err)
	}

	first := []byte("first png")
	ref, err := repo.AttachIllustration(ctx, s.ID, 2, first, ".png")
	if err != nil {
		t.Fatalf("failed to attach illustration: %v", err)
	}
	if ref == "" {
		t.Fatal("expected non-empty illustration ref")
	}

	// A second attach for the same scene must not replace the first
	again, err := repo.AttachIllustration(ctx, s.ID, 2, []byte("second png"), ".png")
	if err != nil {
		t.Fatalf("failed on repeat attach: %v", err)
	}
	if again != ref {
		t.Errorf("repeat attach changed ref: got %q, want %q", again, ref)
	}

	data, err := repo.GetAsset(ctx, ref)
	if err != nil {
		t.Fatalf("failed to get asset: %v", err)
	}
	if !bytes.Equal(data, first) {
		t.Errorf("stored bytes replaced by repeat attach")
	}

	got, err := repo.GetStory(ctx, s.ID)
	if err != nil {
		t.Fatalf("failed to get story: %v", err)
	}
	if len(got.SceneIllustrationRefs) != 3 {
		t.Fatalf("expected refs slice grown to 3, got %d", len(got.SceneIllustrationRefs))
	}
	if got.SceneIllustrationRefs[2] != ref {
		t.Errorf("ref not persisted: got %q", got.SceneIllustrationRefs[2])
	}
	if got.SceneIllustrationRefs[0] != "" || got.SceneIllustrationRefs[1] != "" {
		t.Error("earlier scenes should remain empty")
	}
}

func TestAttachIllustrationInvalidScene(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := testStory()
	if err := repo.CreateStory(ctx, s); err != nil {
		t.Fatalf("failed to create story: %v", err)
	}

	if _, err := repo.AttachIllustration(ctx, s.ID, -1, []byte("x"), ".png"); err == nil {
		t.Error("expected error for negative scene index")
	}
}

func TestAttachAudio(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := testStory()
	if err := repo.CreateStory(ctx, s); err != nil {
		t.Fatalf("failed to create story: %v", err)
	}

	ref, err := repo.AttachAudio(ctx, s.ID, []byte("mp3 bytes"), ".mp3")
	if err != nil {
		t.Fatalf("failed to attach audio: %v", err)
	}

	got, err := repo.GetStory(ctx, s.ID)
	if err != nil {
		t.Fatalf("failed to get story: %v", err)
	}
	if got.NarrationAudioRef != ref {
		t.Errorf("audio ref not persisted: got %q, want %q", got.NarrationAudioRef, ref)
	}
}

func TestAttachCoverImageSetOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := testStory()
	if err := repo.CreateStory(ctx, s); err != nil {
		t.Fatalf("failed to create story: %v", err)
	}

	ref, err := repo.AttachCoverImage(ctx, s.ID, []byte("cover"), ".png")
	if err != nil {
		t.Fatalf("failed to attach cover: %v", err)
	}

	again, err := repo.AttachCoverImage(ctx, s.ID, []byte("other cover"), ".jpg")
	if err != nil {
		t.Fatalf("failed on repeat attach: %v", err)
	}
	if again != ref {
		t.Errorf("repeat attach changed cover ref: got %q, want %q", again, ref)
	}
}

func TestDeleteStory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := testStory()
	if err := repo.CreateStory(ctx, s); err != nil {
		t.Fatalf("failed to create story: %v", err)
	}
	if _, err := repo.AttachIllustration(ctx, s.ID, 0, []byte("png"), ".png"); err != nil {
		t.Fatalf("failed to attach illustration: %v", err)
	}

	if err := repo.DeleteStory(ctx, s.ID); err != nil {
		t.Fatalf("failed to delete story: %v", err)
	}

	if _, err := repo.GetStory(ctx, s.ID); err == nil {
		t.Error("expected error after delete")
	}
}
