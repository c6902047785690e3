package pipelines

import (
	"context"
	"fmt"
	"time"

	"mediaflow/internal/activity"
	"mediaflow/internal/ai"
	"mediaflow/internal/config"
	"mediaflow/internal/media/imaging"
	"mediaflow/internal/request"
	"mediaflow/internal/workflow"
)

const defaultHeartbeatWindow = time.Minute

// Deps are the collaborators pipelines need beyond their TaskEnv.
type Deps struct {
	Tools     config.Tools
	Describer *ai.Describer
	// HeartbeatWindow bounds how long an ffmpeg step may go without
	// reporting progress. Zero selects one minute.
	HeartbeatWindow time.Duration
}

// DepsFromConfig builds Deps from cfg.
func DepsFromConfig(cfg *config.Config) Deps {
	return Deps{
		Tools:     cfg.Tools,
		Describer: ai.NewDescriber(cfg.AI),
	}
}

type pipelines struct {
	tools     config.Tools
	describer *ai.Describer
	heartbeat time.Duration
}

// Registry builds the activity table.
func Registry(deps Deps) (*workflow.Registry, error) {
	p := &pipelines{
		tools:     deps.Tools,
		describer: deps.Describer,
		heartbeat: deps.HeartbeatWindow,
	}
	if p.heartbeat <= 0 {
		p.heartbeat = defaultHeartbeatWindow
	}
	if p.describer == nil {
		p.describer = ai.NewDescriber(config.AI{})
	}
	return workflow.NewRegistry(
		register(request.ImageThumbnail, request.NewImageThumbnailParams, p.imageThumbnail),
		register(request.ImageDetail, request.NewImageDetailParams, p.imageDetail),
		register(request.ImageDetailBasic, request.NewImageDetailBasicParams, p.imageDetailBasic),
		register(request.ImageColorPalette, request.NewColorPaletteParams, p.colorPalette),
		register(request.VideoMetadata, request.NewVideoMetadataParams, p.videoMetadata),
		register(request.VideoSprite, request.NewVideoSpriteParams, p.videoSprite),
		register(request.VideoTranscode, request.NewVideoTranscodeParams, p.videoTranscode),
		register(request.AudioWaveform, request.NewAudioWaveformParams, p.audioWaveform),
		register(request.DocumentThumbnail, request.NewDocumentThumbnailParams, p.documentThumbnail),
		register(request.FontThumbnail, request.NewFontThumbnailParams, p.fontThumbnail),
		register(request.FontMetadata, request.NewFontMetadataParams, p.fontMetadata),
		register(request.FontDetail, request.NewFontDetailParams, p.fontDetail),
	)
}

// register adapts a pipeline over a concrete parameter type.
func register[P request.Params](name string, newParams func() request.Params, run func(context.Context, *workflow.TaskEnv, P) (any, error)) workflow.Registration {
	return workflow.Registration{
		Name:      name,
		NewParams: newParams,
		Run: func(ctx context.Context, env *workflow.TaskEnv, params request.Params) (any, error) {
			typed, ok := params.(P)
			if !ok {
				return nil, fmt.Errorf("%s: unexpected parameter type %T", name, params)
			}
			return run(ctx, env, typed)
		},
	}
}

// toolPolicy is the policy for long ffmpeg runs. Stalls are caught by the
// heartbeat window, so an attempt may use the whole schedule-to-close budget.
func (p *pipelines) toolPolicy(env *workflow.TaskEnv) activity.Policy {
	policy := env.Policy().WithHeartbeat(p.heartbeat)
	if policy.ScheduleToClose > policy.StartToClose {
		policy.StartToClose = policy.ScheduleToClose
	}
	return policy
}

func bound(size *request.Size) *imaging.Size {
	if size == nil {
		return nil
	}
	return &imaging.Size{Width: size.Width(), Height: size.Height()}
}
