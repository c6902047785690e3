package pipelines

import (
	"context"
	"encoding/json"

	"mediaflow/internal/ai"
	"mediaflow/internal/language"
	"mediaflow/internal/media/fonts"
	"mediaflow/internal/media/imaging"
	"mediaflow/internal/request"
	"mediaflow/internal/services"
	"mediaflow/internal/workflow"
)

func (p *pipelines) renderFont(ctx context.Context, env *workflow.TaskEnv, size request.Size, fontSize float64) (string, error) {
	return workflow.Step(ctx, env, "render", func(ctx context.Context) (string, error) {
		font, err := fonts.Open(env.Input)
		if err != nil {
			return "", err
		}
		img, err := font.Render(size.Width(), size.Height(), fontSize)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "fonts", "render specimen", env.Input, err)
		}
		dst := env.Path(ctx, "specimen.png")
		if err := imaging.WritePNG(dst, img); err != nil {
			return "", err
		}
		return dst, nil
	})
}

func (p *pipelines) readFontMetadata(ctx context.Context, env *workflow.TaskEnv, lang language.Language) (fonts.Metadata, error) {
	return workflow.Step(ctx, env, "metadata", func(ctx context.Context) (fonts.Metadata, error) {
		font, err := fonts.Open(env.Input)
		if err != nil {
			return fonts.Metadata{}, err
		}
		return font.Metadata(lang), nil
	})
}

func (p *pipelines) fontThumbnail(ctx context.Context, env *workflow.TaskEnv, params *request.FontThumbnailParams) (any, error) {
	path, err := p.renderFont(ctx, env, params.Size, params.FontSize)
	if err != nil {
		return nil, err
	}
	return env.Upload(ctx, path, "image/png")
}

func (p *pipelines) fontMetadata(ctx context.Context, env *workflow.TaskEnv, params *request.FontMetadataParams) (any, error) {
	return p.readFontMetadata(ctx, env, params.Lang())
}

// fontBasicInfo is the summary handed to the model next to the specimen.
type fontBasicInfo struct {
	Name            string `json:"name"`
	Designer        string `json:"designer"`
	Description     string `json:"description"`
	SupportsKerning bool   `json:"supports_kerning"`
	SupportsChinese bool   `json:"supports_chinese"`
}

func (p *pipelines) fontDetail(ctx context.Context, env *workflow.TaskEnv, params *request.FontDetailParams) (any, error) {
	defaults := request.NewFontThumbnailParams().(*request.FontThumbnailParams)
	path, err := p.renderFont(ctx, env, defaults.Size, defaults.FontSize)
	if err != nil {
		return nil, err
	}
	url, err := env.Upload(ctx, path, "image/png")
	if err != nil {
		return nil, err
	}
	lang := params.Lang()
	meta, err := p.readFontMetadata(ctx, env, lang)
	if err != nil {
		return nil, err
	}
	info, err := json.Marshal(fontBasicInfo{
		Name:            meta.FullName,
		Designer:        meta.Designer,
		Description:     meta.Description,
		SupportsKerning: meta.Kerning,
		SupportsChinese: meta.Chinese,
	})
	if err != nil {
		return nil, err
	}
	return workflow.Step(ctx, env, "describe", func(ctx context.Context) (ai.FontDetail, error) {
		verdict, err := p.describer.FontDetail(ctx, url, string(info), lang)
		if err != nil {
			return ai.FontDetail{}, err
		}
		return verdict.Unwrap("font detail")
	})
}
