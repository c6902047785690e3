package pipelines

import (
	"context"
	"fmt"

	"mediaflow/internal/media/document"
	"mediaflow/internal/media/imaging"
	"mediaflow/internal/request"
	"mediaflow/internal/workflow"
)

func (p *pipelines) documentThumbnail(ctx context.Context, env *workflow.TaskEnv, params *request.DocumentThumbnailParams) (any, error) {
	pdf, err := workflow.Step(ctx, env, "convert", func(ctx context.Context) (string, error) {
		return document.ToPDF(ctx, p.tools.Soffice, env.Input, env.Path(ctx, "pdf"))
	})
	if err != nil {
		return nil, err
	}
	pages, err := workflow.Step(ctx, env, "render", func(ctx context.Context) ([]string, error) {
		return document.RenderPages(ctx, p.tools.Pdftoppm, pdf, env.Path(ctx, "pages"), params.Pages)
	})
	if err != nil {
		return nil, err
	}
	if size := bound(params.Size); size != nil {
		pages, err = workflow.Step(ctx, env, "thumbnail", func(ctx context.Context) ([]string, error) {
			resized := make([]string, len(pages))
			for i, page := range pages {
				resized[i] = env.Path(ctx, fmt.Sprintf("thumb-%03d.png", i+1))
				if err := imaging.ThumbnailFile(ctx, p.tools.ImageMagick, page, resized[i], size); err != nil {
					return nil, err
				}
			}
			return resized, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return env.UploadAll(ctx, pages, "image/png")
}
