package story

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/noorkids/storyplayer/internal/storage"
	"github.com/noorkids/storyplayer/internal/util"
	"github.com/noorkids/storyplayer/pkg/types"
)

// Repository handles story metadata and asset persistence
type Repository interface {
	// CreateStory stores a new story, assigning an ID if none is set
	CreateStory(ctx context.Context, story *types.Story) error

	// GetStory retrieves story metadata by ID
	GetStory(ctx context.Context, storyID string) (*types.Story, error)

	// ListStories returns all stories
	ListStories(ctx context.Context) ([]*types.Story, error)

	// DeleteStory removes a story and all of its assets
	DeleteStory(ctx context.Context, storyID string) error

	// AttachIllustration stores illustration bytes for a scene and records
	// the reference. A scene that already has an illustration is left
	// untouched and the existing reference is returned.
	AttachIllustration(ctx context.Context, storyID string, sceneIndex int, data []byte, ext string) (string, error)

	// AttachCoverImage stores cover image bytes and records the reference,
	// set-once like scene illustrations.
	AttachCoverImage(ctx context.Context, storyID string, data []byte, ext string) (string, error)

	// AttachAudio stores narration audio bytes and records the reference
	AttachAudio(ctx context.Context, storyID string, data []byte, ext string) (string, error)

	// GetAsset retrieves raw asset bytes by storage reference
	GetAsset(ctx context.Context, ref string) ([]byte, error)
}

// StorageRepository implements Repository using a storage adapter
type StorageRepository struct {
	storage storage.Adapter
}

// NewRepository creates a new story repository
func NewRepository(storageAdapter storage.Adapter) Repository {
	return &StorageRepository{
		storage: storageAdapter,
	}
}

// CreateStory stores a new story, assigning an ID if none is set
func (r *StorageRepository) CreateStory(ctx context.Context, story *types.Story) error {
	if story.ID == "" {
		story.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = now
	}
	story.UpdatedAt = now

	return r.saveStory(ctx, story)
}

// GetStory retrieves story metadata by ID
func (r *StorageRepository) GetStory(ctx context.Context, storyID string) (*types.Story, error) {
	reader, err := r.storage.Get(ctx, util.StoryMetadataPath(storyID))
	if err != nil {
		return nil, fmt.Errorf("failed to get story metadata: %w", err)
	}
	defer reader.Close()

	var story types.Story
	if err := json.NewDecoder(reader).Decode(&story); err != nil {
		return nil, fmt.Errorf("failed to decode story metadata: %w", err)
	}

	return &story, nil
}

// ListStories returns all stories
func (r *StorageRepository) ListStories(ctx context.Context) ([]*types.Story, error) {
	paths, err := r.storage.List(ctx, "stories/")
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	stories := make([]*types.Story, 0)
	for _, p := range paths {
		// Only process story.json files
		if path.Base(p) != "story.json" {
			continue
		}

		reader, err := r.storage.Get(ctx, p)
		if err != nil {
			continue // Skip stories that can't be read
		}

		var story types.Story
		if err := json.NewDecoder(reader).Decode(&story); err != nil {
			reader.Close()
			continue
		}
		reader.Close()

		stories = append(stories, &story)
	}

	return stories, nil
}

// DeleteStory removes a story and all of its assets
func (r *StorageRepository) DeleteStory(ctx context.Context, storyID string) error {
	paths, err := r.storage.List(ctx, util.StoryPrefix(storyID))
	if err != nil {
		return fmt.Errorf("failed to list story assets: %w", err)
	}

	for _, p := range paths {
		if err := r.storage.Delete(ctx, p); err != nil {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}

	return nil
}

// AttachIllustration stores illustration bytes for a scene and records the
// reference, unless the scene already has one.
func (r *StorageRepository) AttachIllustration(ctx context.Context, storyID string, sceneIndex int, data []byte, ext string) (string, error) {
	if sceneIndex < 0 {
		return "", fmt.Errorf("invalid scene index: %d", sceneIndex)
	}

	story, err := r.GetStory(ctx, storyID)
	if err != nil {
		return "", err
	}

	if sceneIndex < len(story.SceneIllustrationRefs) && story.SceneIllustrationRefs[sceneIndex] != "" {
		return story.SceneIllustrationRefs[sceneIndex], nil
	}

	ref := util.IllustrationPath(storyID, sceneIndex, ext)
	if err := r.storage.Put(ctx, ref, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store illustration: %w", err)
	}

	for len(story.SceneIllustrationRefs) <= sceneIndex {
		story.SceneIllustrationRefs = append(story.SceneIllustrationRefs, "")
	}
	story.SceneIllustrationRefs[sceneIndex] = ref
	story.UpdatedAt = time.Now().UTC()

	if err := r.saveStory(ctx, story); err != nil {
		return "", err
	}

	return ref, nil
}

// AttachCoverImage stores cover image bytes and records the reference
func (r *StorageRepository) AttachCoverImage(ctx context.Context, storyID string, data []byte, ext string) (string, error) {
	story, err := r.GetStory(ctx, storyID)
	if err != nil {
		return "", err
	}

	if story.CoverImageRef != "" {
		return story.CoverImageRef, nil
	}

	if ext == "" {
		ext = ".png"
	}
	ref := path.Join(util.StoryPrefix(storyID), "cover"+normalizeExt(ext))
	if err := r.storage.Put(ctx, ref, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store cover image: %w", err)
	}

	story.CoverImageRef = ref
	story.UpdatedAt = time.Now().UTC()

	if err := r.saveStory(ctx, story); err != nil {
		return "", err
	}

	return ref, nil
}

// AttachAudio stores narration audio bytes and records the reference
func (r *StorageRepository) AttachAudio(ctx context.Context, storyID string, data []byte, ext string) (string, error) {
	story, err := r.GetStory(ctx, storyID)
	if err != nil {
		return "", err
	}

	if ext == "" {
		ext = ".mp3"
	}
	ref := util.AudioPath(storyID, ext)
	if err := r.storage.Put(ctx, ref, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store audio: %w", err)
	}

	story.NarrationAudioRef = ref
	story.UpdatedAt = time.Now().UTC()

	if err := r.saveStory(ctx, story); err != nil {
		return "", err
	}

	return ref, nil
}

// GetAsset retrieves raw asset bytes by storage reference
func (r *StorageRepository) GetAsset(ctx context.Context, ref string) ([]byte, error) {
	reader, err := r.storage.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}

	return buf.Bytes(), nil
}

func (r *StorageRepository) saveStory(ctx context.Context, story *types.Story) error {
	data, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("failed to marshal story: %w", err)
	}

	return r.storage.Put(ctx, util.StoryMetadataPath(story.ID), bytes.NewReader(data))
}

func normalizeExt(ext string) string {
	if ext == "" || ext[0] == '.' {
		return ext
	}
	return "." + ext
}
