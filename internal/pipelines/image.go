package pipelines

import (
	"context"

	"mediaflow/internal/ai"
	"mediaflow/internal/media/imaging"
	"mediaflow/internal/request"
	"mediaflow/internal/workflow"
)

// describeBound is the preview size sent to the model.
var describeBound = &imaging.Size{Width: 1000, Height: 1000}

func (p *pipelines) thumbnail(ctx context.Context, env *workflow.TaskEnv, size *imaging.Size) (string, error) {
	return workflow.Step(ctx, env, "thumbnail", func(ctx context.Context) (string, error) {
		dst := env.Path(ctx, "thumbnail.png")
		if err := imaging.ThumbnailFile(ctx, p.tools.ImageMagick, env.Input, dst, size); err != nil {
			return "", err
		}
		return dst, nil
	})
}

func (p *pipelines) imageThumbnail(ctx context.Context, env *workflow.TaskEnv, params *request.ImageThumbnailParams) (any, error) {
	path, err := p.thumbnail(ctx, env, bound(params.Size))
	if err != nil {
		return nil, err
	}
	return env.Upload(ctx, path, "image/png")
}

func (p *pipelines) imageDetail(ctx context.Context, env *workflow.TaskEnv, params *request.ImageDetailParams) (any, error) {
	path, err := p.thumbnail(ctx, env, describeBound)
	if err != nil {
		return nil, err
	}
	url, err := env.Upload(ctx, path, "image/png")
	if err != nil {
		return nil, err
	}
	lang := params.Lang()
	return workflow.Step(ctx, env, "describe", func(ctx context.Context) (ai.ImageDetail, error) {
		verdict, err := p.describer.ImageDetail(ctx, url, lang)
		if err != nil {
			return ai.ImageDetail{}, err
		}
		return verdict.Unwrap("image detail")
	})
}

type basicDetail struct {
	Title               string               `json:"title"`
	Description         string               `json:"description"`
	Tags                string               `json:"tags"`
	DetailedDescription []map[string]*string `json:"detailed_description"`
}

// imageDetailBasic asks three narrower questions about a local preview
// instead of one broad one.
func (p *pipelines) imageDetailBasic(ctx context.Context, env *workflow.TaskEnv, params *request.ImageDetailBasicParams) (any, error) {
	path, err := p.thumbnail(ctx, env, describeBound)
	if err != nil {
		return nil, err
	}
	lang := params.Lang()

	basic, err := workflow.Step(ctx, env, "describe", func(ctx context.Context) (ai.Basic, error) {
		verdict, err := p.describer.Basic(ctx, path, lang)
		if err != nil {
			return ai.Basic{}, err
		}
		return verdict.Unwrap("image basic")
	})
	if err != nil {
		return nil, err
	}
	tags, err := workflow.Step(ctx, env, "tag", func(ctx context.Context) (ai.Tags, error) {
		verdict, err := p.describer.Tags(ctx, path, lang)
		if err != nil {
			return nil, err
		}
		return verdict.Unwrap("image tags")
	})
	if err != nil {
		return nil, err
	}
	details, err := workflow.Step(ctx, env, "detail", func(ctx context.Context) (ai.Details, error) {
		verdict, err := p.describer.Details(ctx, path, lang)
		if err != nil {
			return nil, err
		}
		return verdict.Unwrap("image details")
	})
	if err != nil {
		return nil, err
	}
	return basicDetail{
		Title:               basic.Title,
		Description:         basic.Description,
		Tags:                tags.Joined(),
		DetailedDescription: details.Ordered(),
	}, nil
}

func (p *pipelines) colorPalette(ctx context.Context, env *workflow.TaskEnv, params *request.ColorPaletteParams) (any, error) {
	return workflow.Step(ctx, env, "palette", func(ctx context.Context) ([]imaging.Swatch, error) {
		img, err := imaging.Load(ctx, p.tools.ImageMagick, env.Input, env.ScratchDir(ctx))
		if err != nil {
			return nil, err
		}
		swatches := imaging.Palette(img, params.Count)
		if swatches == nil {
			swatches = []imaging.Swatch{}
		}
		return swatches, nil
	})
}
