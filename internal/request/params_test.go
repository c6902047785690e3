package request_test

import (
	"encoding/json"
	"errors"
	"testing"

	"mediaflow/internal/request"
	"mediaflow/internal/services"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	params := request.NewVideoSpriteParams()
	if err := request.Decode(request.VideoSprite, nil, params); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sprite := params.(*request.VideoSpriteParams)
	if sprite.Layout != [2]int{1, 1} || sprite.Count != 1 || sprite.Width != -1 || sprite.Height != -1 {
		t.Fatalf("unexpected defaults: %+v", sprite)
	}
	if sprite.Frames() != 1 {
		t.Fatalf("Frames() = %d", sprite.Frames())
	}
}

func TestDecodeOverridesDefaults(t *testing.T) {
	params := request.NewVideoTranscodeParams()
	raw := json.RawMessage(`{"container":"webm","video-codec":"libvpx_vp9"}`)
	if err := request.Decode(request.VideoTranscode, raw, params); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	transcode := params.(*request.VideoTranscodeParams)
	if transcode.Container != "webm" || transcode.VideoCodec != "libvpx_vp9" || transcode.AudioCodec != "libopus" {
		t.Fatalf("unexpected params: %+v", transcode)
	}
	if transcode.ContentType() != "video/webm" {
		t.Fatalf("unexpected content type %q", transcode.ContentType())
	}
}

func TestDecodeNormalizesLanguage(t *testing.T) {
	params := request.NewImageDetailParams()
	if err := request.Decode(request.ImageDetail, json.RawMessage(`{"language":"zh-Hans"}`), params); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	detail := params.(*request.ImageDetailParams)
	if detail.Lang().Name != "Simplified Chinese" || detail.Lang().IsEnglish() {
		t.Fatalf("unexpected language: %+v", detail.Lang())
	}

	defaults := request.NewFontMetadataParams()
	if err := request.Decode(request.FontMetadata, json.RawMessage(`null`), defaults); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !defaults.(*request.FontMetadataParams).Lang().IsEnglish() {
		t.Fatal("expected English default")
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name     string
		activity string
		params   request.Params
		raw      string
		field    string
	}{
		{"unknown key", request.AudioWaveform, request.NewAudioWaveformParams(), `{"samples":5}`, "params.audio-waveform"},
		{"wrong type", request.ImageColorPalette, request.NewColorPaletteParams(), `{"count":"ten"}`, "params.image-color-palette"},
		{"too many samples", request.AudioWaveform, request.NewAudioWaveformParams(), `{"num_samples":100001}`, "params.audio-waveform.num_samples"},
		{"zero palette", request.ImageColorPalette, request.NewColorPaletteParams(), `{"count":0}`, "params.image-color-palette.count"},
		{"bad size", request.ImageThumbnail, request.NewImageThumbnailParams(), `{"size":[0,10]}`, "params.image-thumbnail.size"},
		{"bad layout", request.VideoSprite, request.NewVideoSpriteParams(), `{"layout":[0,2]}`, "params.video-sprite.layout"},
		{"zero width", request.VideoSprite, request.NewVideoSpriteParams(), `{"width":0}`, "params.video-sprite.width"},
		{"container", request.VideoTranscode, request.NewVideoTranscodeParams(), `{"container":"exe"}`, "params.video-transcode.container"},
		{"codec injection", request.VideoTranscode, request.NewVideoTranscodeParams(), `{"audio-codec":"aac -y"}`, "params.video-transcode.audio-codec"},
		{"page zero", request.DocumentThumbnail, request.NewDocumentThumbnailParams(), `{"pages":[0]}`, "params.document-thumbnail.pages"},
		{"font size", request.FontThumbnail, request.NewFontThumbnailParams(), `{"font_size":-1}`, "params.font-thumbnail.font_size"},
		{"language", request.FontDetail, request.NewFontDetailParams(), `{"language":"klingonese"}`, "params.font-detail.language"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := request.Decode(tt.activity, json.RawMessage(tt.raw), tt.params)
			var verr *services.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatal("expected ErrValidation marker")
			}
		})
	}
}
