package pipelines

import (
	"context"

	"mediaflow/internal/media/ffmpeg"
	"mediaflow/internal/media/ffprobe"
	"mediaflow/internal/request"
	"mediaflow/internal/workflow"
)

func (p *pipelines) probe(ctx context.Context, env *workflow.TaskEnv) (ffprobe.Metadata, error) {
	return workflow.Step(ctx, env, "probe", func(ctx context.Context) (ffprobe.Metadata, error) {
		return ffprobe.Probe(ctx, p.tools.FFprobe, env.Input)
	})
}

func (p *pipelines) videoMetadata(ctx context.Context, env *workflow.TaskEnv, _ *request.VideoMetadataParams) (any, error) {
	return p.probe(ctx, env)
}

func (p *pipelines) videoSprite(ctx context.Context, env *workflow.TaskEnv, params *request.VideoSpriteParams) (any, error) {
	meta, err := p.probe(ctx, env)
	if err != nil {
		return nil, err
	}
	opts := ffmpeg.SpriteOptions{
		Duration: meta.Duration,
		Columns:  params.Layout[0],
		Rows:     params.Layout[1],
		Count:    params.Count,
		Width:    params.Width,
		Height:   params.Height,
	}
	sheets, err := workflow.StepWithPolicy(ctx, env, "sprite", p.toolPolicy(env), func(ctx context.Context) ([]string, error) {
		return ffmpeg.Sprite(ctx, p.tools.FFmpeg, env.Input, env.Path(ctx, "sprites"), opts)
	})
	if err != nil {
		return nil, err
	}
	return env.UploadAll(ctx, sheets, "image/png")
}

func (p *pipelines) videoTranscode(ctx context.Context, env *workflow.TaskEnv, params *request.VideoTranscodeParams) (any, error) {
	output, err := workflow.StepWithPolicy(ctx, env, "transcode", p.toolPolicy(env), func(ctx context.Context) (string, error) {
		dst := env.Path(ctx, "transcoded."+params.Container)
		return dst, ffmpeg.Transcode(ctx, p.tools.FFmpeg, env.Input, dst, params.VideoCodec, params.AudioCodec)
	})
	if err != nil {
		return nil, err
	}
	return env.Upload(ctx, output, params.ContentType())
}

func (p *pipelines) audioWaveform(ctx context.Context, env *workflow.TaskEnv, params *request.AudioWaveformParams) (any, error) {
	return workflow.StepWithPolicy(ctx, env, "waveform", p.toolPolicy(env), func(ctx context.Context) ([]float64, error) {
		return ffmpeg.Waveform(ctx, p.tools.FFmpeg, env.Input, env.Path(ctx, "audio.pcm"), params.NumSamples)
	})
}
