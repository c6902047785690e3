package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"mediaflow/internal/language"
	"mediaflow/internal/services"
)

// Activity names.
const (
	ImageThumbnail    = "image-thumbnail"
	ImageDetail       = "image-detail"
	ImageDetailBasic  = "image-detail-basic"
	ImageColorPalette = "image-color-palette"
	VideoMetadata     = "video-metadata"
	VideoSprite       = "video-sprite"
	VideoTranscode    = "video-transcode"
	AudioWaveform     = "audio-waveform"
	DocumentThumbnail = "document-thumbnail"
	FontThumbnail     = "font-thumbnail"
	FontMetadata      = "font-metadata"
	FontDetail        = "font-detail"
)

// Params is the typed parameter variant of one activity. Implementations are
// pointers to structs pre-populated with defaults; Validate fills derived
// fields and rejects out-of-range values.
type Params interface {
	Validate() error
}

// Decode overlays raw onto params (which carries defaults), rejecting unknown
// keys, then validates the result. Validation failures are reported against
// params.<activity>.
func Decode(activity string, raw json.RawMessage, params Params) error {
	field := "params." + activity
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		decoder := json.NewDecoder(bytes.NewReader(trimmed))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(params); err != nil {
			return services.Invalid(field, "%v", err)
		}
	}
	if err := params.Validate(); err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			return services.Invalid(field+"."+verr.Field, "%s", verr.Reason)
		}
		return services.Invalid(field, "%v", err)
	}
	return nil
}

// Size is a [width, height] pair.
type Size [2]int

func (s Size) Width() int  { return s[0] }
func (s Size) Height() int { return s[1] }

func (s Size) validate(field string) error {
	if s[0] <= 0 || s[1] <= 0 {
		return services.Invalid(field, "width and height must be positive, got %dx%d", s[0], s[1])
	}
	return nil
}

// LanguageParams is shared by every activity that produces text.
type LanguageParams struct {
	Language string `json:"language"`

	lang language.Language
}

func (p *LanguageParams) Validate() error {
	lang, err := language.Normalize(p.Language)
	if err != nil {
		return services.Invalid("language", "%v", err)
	}
	p.lang = lang
	p.Language = lang.Name
	return nil
}

// Lang returns the normalized language. Valid after Validate.
func (p *LanguageParams) Lang() language.Language {
	if p.lang.Name == "" {
		return language.English
	}
	return p.lang
}

type ImageThumbnailParams struct {
	Size *Size `json:"size"`
}

func NewImageThumbnailParams() Params { return &ImageThumbnailParams{} }

func (p *ImageThumbnailParams) Validate() error {
	if p.Size != nil {
		return p.Size.validate("size")
	}
	return nil
}

type ImageDetailParams struct {
	LanguageParams
}

func NewImageDetailParams() Params { return &ImageDetailParams{} }

type ImageDetailBasicParams struct {
	LanguageParams
}

func NewImageDetailBasicParams() Params { return &ImageDetailBasicParams{} }

type ColorPaletteParams struct {
	Count int `json:"count"`
}

func NewColorPaletteParams() Params { return &ColorPaletteParams{Count: 10} }

func (p *ColorPaletteParams) Validate() error {
	if p.Count < 1 || p.Count > 256 {
		return services.Invalid("count", "must be between 1 and 256, got %d", p.Count)
	}
	return nil
}

type VideoMetadataParams struct{}

func NewVideoMetadataParams() Params { return &VideoMetadataParams{} }

func (*VideoMetadataParams) Validate() error { return nil }

type VideoSpriteParams struct {
	Layout [2]int `json:"layout"`
	Count  int    `json:"count"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func NewVideoSpriteParams() Params {
	return &VideoSpriteParams{Layout: [2]int{1, 1}, Count: 1, Width: -1, Height: -1}
}

func (p *VideoSpriteParams) Validate() error {
	if p.Layout[0] <= 0 || p.Layout[1] <= 0 {
		return services.Invalid("layout", "columns and rows must be positive, got %dx%d", p.Layout[0], p.Layout[1])
	}
	if p.Count <= 0 {
		return services.Invalid("count", "must be positive, got %d", p.Count)
	}
	if p.Width == 0 || p.Width < -1 {
		return services.Invalid("width", "must be positive or -1, got %d", p.Width)
	}
	if p.Height == 0 || p.Height < -1 {
		return services.Invalid("height", "must be positive or -1, got %d", p.Height)
	}
	return nil
}

// Frames returns how many frames the sprite sheets sample in total.
func (p *VideoSpriteParams) Frames() int {
	return p.Count * p.Layout[0] * p.Layout[1]
}

var (
	transcodeContainers = []string{"mp4", "mkv", "webm", "mov", "ogg", "avi"}
	codecPattern        = regexp.MustCompile(`^[a-z0-9_]+$`)
)

type VideoTranscodeParams struct {
	Container  string `json:"container"`
	VideoCodec string `json:"video-codec"`
	AudioCodec string `json:"audio-codec"`
}

func NewVideoTranscodeParams() Params {
	return &VideoTranscodeParams{Container: "mp4", VideoCodec: "h264", AudioCodec: "libopus"}
}

func (p *VideoTranscodeParams) Validate() error {
	if !slices.Contains(transcodeContainers, p.Container) {
		return services.Invalid("container", "unsupported container %q", p.Container)
	}
	if !codecPattern.MatchString(p.VideoCodec) {
		return services.Invalid("video-codec", "invalid codec name %q", p.VideoCodec)
	}
	if !codecPattern.MatchString(p.AudioCodec) {
		return services.Invalid("audio-codec", "invalid codec name %q", p.AudioCodec)
	}
	return nil
}

// ContentType is the MIME type of the transcoded output.
func (p *VideoTranscodeParams) ContentType() string {
	switch p.Container {
	case "mkv":
		return "video/x-matroska"
	case "mov":
		return "video/quicktime"
	case "avi":
		return "video/x-msvideo"
	default:
		return "video/" + p.Container
	}
}

type AudioWaveformParams struct {
	NumSamples int `json:"num_samples"`
}

func NewAudioWaveformParams() Params { return &AudioWaveformParams{NumSamples: 1000} }

func (p *AudioWaveformParams) Validate() error {
	if p.NumSamples < 1 || p.NumSamples > 100000 {
		return services.Invalid("num_samples", "must be between 1 and 100000, got %d", p.NumSamples)
	}
	return nil
}

type DocumentThumbnailParams struct {
	Pages []int `json:"pages"`
	Size  *Size `json:"size"`
}

func NewDocumentThumbnailParams() Params { return &DocumentThumbnailParams{} }

func (p *DocumentThumbnailParams) Validate() error {
	for _, page := range p.Pages {
		if page < 1 {
			return services.Invalid("pages", "page numbers start at 1, got %d", page)
		}
	}
	if p.Size != nil {
		return p.Size.validate("size")
	}
	return nil
}

type FontThumbnailParams struct {
	Size     Size    `json:"size"`
	FontSize float64 `json:"font_size"`
}

func NewFontThumbnailParams() Params {
	return &FontThumbnailParams{Size: Size{800, 600}, FontSize: 200}
}

func (p *FontThumbnailParams) Validate() error {
	if err := p.Size.validate("size"); err != nil {
		return err
	}
	if p.FontSize <= 0 {
		return services.Invalid("font_size", "must be positive, got %s", fmt.Sprint(p.FontSize))
	}
	return nil
}

type FontMetadataParams struct {
	LanguageParams
}

func NewFontMetadataParams() Params { return &FontMetadataParams{} }

type FontDetailParams struct {
	LanguageParams
}

func NewFontDetailParams() Params { return &FontDetailParams{} }
