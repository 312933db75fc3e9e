package exporter

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/noorkids/storyplayer/internal/pagemodel"
	"github.com/noorkids/storyplayer/internal/paginator"
	"github.com/noorkids/storyplayer/internal/storage"
	"github.com/noorkids/storyplayer/internal/story"
	"github.com/noorkids/storyplayer/internal/util"
	"github.com/noorkids/storyplayer/pkg/types"
)

// Service renders stories into a static paginated document: a ZIP archive
// of fixed-size PNG pages plus a manifest. The exported page sequence is the
// same one the player shows, but the layout never depends on narration
// timing; a story with no audio at all exports identically. Text that does
// not fit one physical page overflows onto continuation pages, so a model
// page may produce several PNGs.
type Service struct {
	repo    story.Repository
	storage storage.Adapter
	cfg     types.ExportConfig
	player  types.PlayerConfig

	bodyFace  font.Face
	titleFace font.Face
}

// Manifest is the top-level description of an exported document. PageCount
// is the number of physical PNG pages, which can exceed the model page
// count listed in pages.json when sections overflow.
type Manifest struct {
	StoryID    string    `json:"story_id"`
	Title      string    `json:"title"`
	PageCount  int       `json:"page_count"`
	PageWidth  int       `json:"page_width"`
	PageHeight int       `json:"page_height"`
	CreatedAt  time.Time `json:"created_at"`
	Version    string    `json:"version"`
}

// NewService creates an export service. When no font path is configured the
// built-in bitmap face is used, which keeps exports working in environments
// without font assets.
func NewService(repo story.Repository, storageAdapter storage.Adapter, cfg types.ExportConfig, playerCfg types.PlayerConfig) (*Service, error) {
	var bodyFace, titleFace font.Face

	if cfg.FontPath != "" {
		var err error
		bodyFace, err = loadFontFace(cfg.FontPath, cfg.FontSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load body font: %w", err)
		}
		titleFace, err = loadFontFace(cfg.FontPath, cfg.TitleFontSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load title font: %w", err)
		}
	} else {
		bodyFace = basicfont.Face7x13
		titleFace = basicfont.Face7x13
	}

	return &Service{
		repo:      repo,
		storage:   storageAdapter,
		cfg:       cfg,
		player:    playerCfg,
		bodyFace:  bodyFace,
		titleFace: titleFace,
	}, nil
}

// Export renders the story into a ZIP archive and returns a reader over it
func (s *Service) Export(ctx context.Context, storyID string) (io.Reader, error) {
	st, err := s.repo.GetStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	// Windows are deliberately never attached here
	storyPages := paginator.Paginate(st.BodyText, s.player.TargetWordsPerPage)
	model, err := pagemodel.Build(st, storyPages, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build page model: %w", err)
	}
	pages := model.Pages()

	var rendered [][]byte
	for _, page := range pages {
		pngs, err := s.renderPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", page.Index, err)
		}
		rendered = append(rendered, pngs...)
	}

	buf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(buf)

	manifest := &Manifest{
		StoryID:    st.ID,
		Title:      st.Title,
		PageCount:  len(rendered),
		PageWidth:  s.cfg.PageWidth,
		PageHeight: s.cfg.PageHeight,
		CreatedAt:  time.Now().UTC(),
		Version:    "1.0",
	}
	if err := addJSONFile(zipWriter, "manifest.json", manifest); err != nil {
		return nil, fmt.Errorf("failed to add manifest: %w", err)
	}
	if err := addJSONFile(zipWriter, "pages.json", pages); err != nil {
		return nil, fmt.Errorf("failed to add page list: %w", err)
	}

	for i, png := range rendered {
		entry := fmt.Sprintf("pages/page_%03d.png", i)
		writer, err := zipWriter.Create(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to create zip entry: %w", err)
		}
		if _, err := writer.Write(png); err != nil {
			return nil, fmt.Errorf("failed to write page data: %w", err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}

// ExportToStorage renders the story and stores the archive, returning the
// storage reference.
func (s *Service) ExportToStorage(ctx context.Context, storyID string) (string, error) {
	reader, err := s.Export(ctx, storyID)
	if err != nil {
		return "", err
	}

	ref := util.ExportPath(storyID)
	if err := s.storage.Put(ctx, ref, reader); err != nil {
		return "", fmt.Errorf("failed to store export: %w", err)
	}

	return ref, nil
}

// renderPage draws one model page onto one or more fixed-size canvases
func (s *Service) renderPage(ctx context.Context, page types.Page) ([][]byte, error) {
	w := float64(s.cfg.PageWidth)
	h := float64(s.cfg.PageHeight)
	margin := float64(s.cfg.Margin)
	textWidth := w - 2*margin

	switch page.Kind {
	case types.PageCover:
		dc := s.newCanvas()
		s.drawIllustrationBand(ctx, dc, page.IllustrationRef, margin, margin, textWidth, h*0.5)
		dc.SetFontFace(s.titleFace)
		dc.SetRGB(0.1, 0.1, 0.15)
		s.drawWrappedCentered(dc, page.Title, w/2, h*0.62, textWidth)
		return s.encodeOne(dc)

	case types.PageEnd:
		dc := s.newCanvas()
		dc.SetFontFace(s.titleFace)
		dc.SetRGB(0.1, 0.1, 0.15)
		s.drawWrappedCentered(dc, page.Title, w/2, h/2, textWidth)
		return s.encodeOne(dc)

	case types.PageStory:
		header := func(dc *gg.Context) float64 {
			if page.IllustrationRef != "" {
				s.drawIllustrationBand(ctx, dc, page.IllustrationRef, margin, margin, textWidth, h*0.4)
			} else {
				// Placeholder band keeps the layout stable while the scene
				// illustration is still being generated
				dc.SetRGB(0.92, 0.92, 0.95)
				dc.DrawRectangle(margin, margin, textWidth, h*0.4)
				dc.Fill()
			}
			return margin + h*0.4 + margin
		}
		return s.renderFlow(header, []string{page.Text})

	case types.PageMoral:
		return s.renderFlow(s.headingHeader("Moral of the Story", h*0.15), []string{page.Text})

	case types.PageScripture:
		return s.renderFlow(s.headingHeader(page.ScriptureReference, h*0.2),
			[]string{page.ScriptureOriginalText, page.ScriptureTranslation})

	case types.PageParentNotes:
		return s.renderFlow(s.headingHeader("Notes for Parents", h*0.15), []string{page.Text})
	}

	return s.encodeOne(s.newCanvas())
}

// headingHeader draws a title-face heading at the top of the first canvas
// and places the body text at bodyTop below the margin.
func (s *Service) headingHeader(title string, bodyTop float64) func(*gg.Context) float64 {
	margin := float64(s.cfg.Margin)
	return func(dc *gg.Context) float64 {
		dc.SetFontFace(s.titleFace)
		dc.SetRGB(0.1, 0.1, 0.15)
		dc.DrawString(title, margin, margin+dc.FontHeight())
		return margin + bodyTop
	}
}

// renderFlow draws wrapped text blocks below the header, overflowing onto
// additional canvases whenever a line would land past the bottom margin.
// Continuation canvases carry text only, starting at the top margin.
func (s *Service) renderFlow(header func(*gg.Context) float64, blocks []string) ([][]byte, error) {
	margin := float64(s.cfg.Margin)
	textWidth := float64(s.cfg.PageWidth) - 2*margin
	bottom := float64(s.cfg.PageHeight) - margin

	dc := s.newCanvas()
	y := header(dc)
	dc.SetFontFace(s.bodyFace)
	dc.SetRGB(0.1, 0.1, 0.15)
	lineHeight := dc.FontHeight() * s.cfg.LineSpacing

	// Blocks are separated by one blank line
	var lines []string
	for i, block := range blocks {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, wrapLines(dc, block, textWidth)...)
	}

	var out [][]byte
	for _, line := range lines {
		if y > bottom {
			png, err := encodePNG(dc)
			if err != nil {
				return nil, err
			}
			out = append(out, png)

			dc = s.newCanvas()
			dc.SetFontFace(s.bodyFace)
			dc.SetRGB(0.1, 0.1, 0.15)
			y = margin + dc.FontHeight()
		}
		if line != "" {
			dc.DrawString(line, margin, y)
		}
		y += lineHeight
	}

	png, err := encodePNG(dc)
	if err != nil {
		return nil, err
	}
	return append(out, png), nil
}

// drawIllustrationBand fetches, scales and centers an illustration inside
// the given band. A missing or undecodable asset falls back to the
// placeholder fill rather than failing the export.
func (s *Service) drawIllustrationBand(ctx context.Context, dc *gg.Context, ref string, x, y, bandW, bandH float64) {
	img := s.loadIllustration(ctx, ref)
	if img == nil {
		dc.SetRGB(0.92, 0.92, 0.95)
		dc.DrawRectangle(x, y, bandW, bandH)
		dc.Fill()
		return
	}

	b := img.Bounds()
	scale := bandW / float64(b.Dx())
	if s := bandH / float64(b.Dy()); s < scale {
		scale = s
	}
	dw := int(float64(b.Dx()) * scale)
	dh := int(float64(b.Dy()) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	dc.DrawImage(dst, int(x+(bandW-float64(dw))/2), int(y+(bandH-float64(dh))/2))
}

func (s *Service) loadIllustration(ctx context.Context, ref string) image.Image {
	if ref == "" {
		return nil
	}

	data, err := s.repo.GetAsset(ctx, ref)
	if err != nil {
		return nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return img
}

// drawWrappedCentered renders wrapped text centered around cx
func (s *Service) drawWrappedCentered(dc *gg.Context, text string, cx, y, maxWidth float64) {
	lineHeight := dc.FontHeight() * s.cfg.LineSpacing
	for _, line := range wrapLines(dc, text, maxWidth) {
		lw, _ := dc.MeasureString(line)
		dc.DrawString(line, cx-lw/2, y)
		y += lineHeight
	}
}

// wrapLines splits text into lines that each fit maxWidth under the
// context's current font face. Measurement uses actual glyph advances, so
// wrapping matches what the canvas will draw.
func wrapLines(dc *gg.Context, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if lw, _ := dc.MeasureString(candidate); lw > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	lines = append(lines, current)

	return lines
}

func (s *Service) newCanvas() *gg.Context {
	dc := gg.NewContext(s.cfg.PageWidth, s.cfg.PageHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	return dc
}

func (s *Service) encodeOne(dc *gg.Context) ([][]byte, error) {
	png, err := encodePNG(dc)
	if err != nil {
		return nil, err
	}
	return [][]byte{png}, nil
}

func encodePNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func addJSONFile(zipWriter *zip.Writer, path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	writer, err := zipWriter.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}

	if _, err := writer.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	return nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
