// Copyright 2025 Momentum Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/momentumhq/momentum-agent/pkg/jobs"
	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/media"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// GenerateVideoTool starts a long-running video generation and tracks it
// as a job. The tool returns immediately with the job id; the tracker
// polls the provider operation to a terminal state and stores the
// finished video.
type GenerateVideoTool struct {
	gen     media.VideoGenerator
	objects storage.ObjectStore
	fetcher *storage.Fetcher
	tracker *jobs.Tracker
}

func NewGenerateVideoTool(gen media.VideoGenerator, objects storage.ObjectStore, fetcher *storage.Fetcher, tracker *jobs.Tracker) *GenerateVideoTool {
	return &GenerateVideoTool{gen: gen, objects: objects, fetcher: fetcher, tracker: tracker}
}

func (t *GenerateVideoTool) Name() string { return "generateVideo" }

func (t *GenerateVideoTool) Description() string {
	return "Generate a video from text, animate an image, interpolate between two frames, extend an existing video, or keep a character consistent from a reference image. Returns a job id to poll for the result."
}

func (t *GenerateVideoTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "prompt", Type: "string", Description: "The video description", Required: true},
		{Name: "mode", Type: "string", Description: "Generation mode",
			Enum: []string{"text_to_video", "image_to_video", "interpolate", "extend", "character_reference"}},
		{Name: "imageUrl", Type: "string", Description: "Source image for image_to_video, the first frame for interpolate, or the character reference"},
		{Name: "lastFrameUrl", Type: "string", Description: "Last frame for interpolation"},
		{Name: "videoUrl", Type: "string", Description: "Source video for extension"},
		{Name: "durationSeconds", Type: "integer", Description: "Target duration in seconds"},
	}
}

type videoArgs struct {
	Prompt          string `mapstructure:"prompt"`
	Mode            string `mapstructure:"mode"`
	ImageURL        string `mapstructure:"imageUrl"`
	LastFrameURL    string `mapstructure:"lastFrameUrl"`
	VideoURL        string `mapstructure:"videoUrl"`
	DurationSeconds int    `mapstructure:"durationSeconds"`
}

func (t *GenerateVideoTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	var in videoArgs
	if err := mapstructure.WeakDecode(args, &in); err != nil {
		return Errorf("invalid video arguments: %v", err), nil
	}

	mode := media.VideoMode(in.Mode)
	if mode == "" {
		mode = media.VideoTextToVideo
	}

	req := media.VideoRequest{
		Prompt:       in.Prompt,
		Model:        tc.Settings.VideoModel,
		Mode:         mode,
		DurationSecs: in.DurationSeconds,
	}

	var err error
	switch mode {
	case media.VideoImageToVideo:
		req.FirstFrame, err = t.inputMedia(ctx, in.ImageURL)
	case media.VideoCharacterRef:
		req.CharacterImage, err = t.inputMedia(ctx, in.ImageURL)
	case media.VideoInterpolate:
		if req.FirstFrame, err = t.inputMedia(ctx, in.ImageURL); err == nil {
			req.LastFrame, err = t.inputMedia(ctx, in.LastFrameURL)
		}
	case media.VideoExtend:
		req.InputVideo, err = t.inputMedia(ctx, in.VideoURL)
	}
	if err != nil {
		return Errorf("failed to prepare video inputs: %v", err), nil
	}

	op, err := t.gen.Start(ctx, req)
	if err != nil {
		return Errorf("video generation failed to start: %v", err), nil
	}

	job, err := t.tracker.Create(ctx, "", jobs.KindVideoGen)
	if err != nil {
		return Errorf("failed to create video job: %v", err), nil
	}

	t.tracker.StartPolling(job.JobID, t.pollFunc(op))

	result := Success(fmt.Sprintf("Video generation started. Track it with job id %s.", job.JobID))
	result.Data = map[string]any{"jobId": job.JobID}
	return result, nil
}

func (t *GenerateVideoTool) inputMedia(ctx context.Context, url string) (*media.InputMedia, error) {
	if url == "" {
		return nil, fmt.Errorf("a media URL is required for this mode")
	}
	data, contentType, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return &media.InputMedia{URI: url, Bytes: data, MimeType: contentType}, nil
}

// pollFunc adapts the generator's Poll to the job tracker, storing the
// finished payloads on completion.
func (t *GenerateVideoTool) pollFunc(op media.OpHandle) jobs.PollFunc {
	return func(ctx context.Context) (bool, int, map[string]any, error) {
		status, err := t.gen.Poll(ctx, op)
		if err != nil {
			return false, 0, nil, err
		}
		switch status.State {
		case media.OpFailed:
			return false, 0, nil, status.Err
		case media.OpDone:
			urls, err := storePayloads(ctx, t.objects, status.Payloads, "generated/videos")
			if err != nil {
				return false, 0, nil, fmt.Errorf("failed to store generated video: %w", err)
			}
			result := map[string]any{"videoUrls": urls}
			if len(urls) > 0 {
				result["videoUrl"] = urls[0]
			}
			return true, 100, result, nil
		default:
			return false, 50, nil, nil
		}
	}
}

var _ Tool = (*GenerateVideoTool)(nil)
