package util

import (
	"fmt"
	"path"
	"strings"
)

// ImageFormats lists the illustration file extensions the player accepts
var ImageFormats = []string{".png", ".jpg", ".jpeg", ".webp"}

// StoryMetadataPath returns the storage path for a story's metadata
func StoryMetadataPath(storyID string) string {
	return fmt.Sprintf("stories/%s/story.json", storyID)
}

// StoryPrefix returns the storage prefix holding all of a story's assets
func StoryPrefix(storyID string) string {
	return fmt.Sprintf("stories/%s/", storyID)
}

// IllustrationPath returns the storage path for a scene illustration
func IllustrationPath(storyID string, sceneIndex int, ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("stories/%s/illustrations/scene_%d%s", storyID, sceneIndex, ext)
}

// AudioPath returns the storage path for a story's narration audio
func AudioPath(storyID string, ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("stories/%s/narration%s", storyID, ext)
}

// ExportPath returns the storage path for a story's exported document
func ExportPath(storyID string) string {
	return fmt.Sprintf("exports/%s.zip", storyID)
}

// IsImagePath reports whether the path has a recognized illustration extension
func IsImagePath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, f := range ImageFormats {
		if ext == f {
			return true
		}
	}
	return false
}
