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

// Package media defines the generator capability ports: image and music
// generation are synchronous, video generation is a long-running
// operation polled to a terminal state.
package media

import "context"

// Payload is a generated asset: either raw bytes or a provider URI.
type Payload struct {
	Bytes    []byte
	URI      string
	MimeType string
}

// ImageRequest asks for image generation or editing. InputImages carries
// source images for edit and compose modes.
type ImageRequest struct {
	Prompt      string
	Model       string
	AspectRatio string
	Count       int
	InputImages []InputMedia
}

// InputMedia is a source asset passed into a generator.
type InputMedia struct {
	URI      string
	Bytes    []byte
	MimeType string
}

// ImageGenerator is the synchronous image generation port.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) ([]Payload, error)
}

// VideoMode selects how a video is produced.
type VideoMode string

const (
	VideoTextToVideo  VideoMode = "text_to_video"
	VideoImageToVideo VideoMode = "image_to_video"
	VideoInterpolate  VideoMode = "interpolate"
	VideoExtend       VideoMode = "extend"
	VideoCharacterRef VideoMode = "character_reference"
)

// VideoRequest asks for video generation. FirstFrame/LastFrame apply to
// interpolation; InputVideo to extension; CharacterImage to character
// reference mode.
type VideoRequest struct {
	Prompt         string
	Model          string
	Mode           VideoMode
	DurationSecs   int
	FirstFrame     *InputMedia
	LastFrame      *InputMedia
	InputVideo     *InputMedia
	CharacterImage *InputMedia
}

// OpHandle identifies a provider-side long-running operation.
type OpHandle struct {
	Name string
}

// OpState is the polled state of a long-running operation.
type OpState string

const (
	OpPending OpState = "pending"
	OpDone    OpState = "done"
	OpFailed  OpState = "failed"
)

// OpStatus is one poll result. Payloads is set when State is OpDone;
// Err when OpFailed.
type OpStatus struct {
	State    OpState
	Payloads []Payload
	Err      error
}

// VideoGenerator is the asynchronous video generation port.
type VideoGenerator interface {
	Start(ctx context.Context, req VideoRequest) (OpHandle, error)
	Poll(ctx context.Context, op OpHandle) (OpStatus, error)
}

// MusicRequest asks for music generation.
type MusicRequest struct {
	Prompt       string
	Model        string
	DurationSecs int
	NegativeTags string
}

// MusicGenerator is the synchronous music generation port.
type MusicGenerator interface {
	Generate(ctx context.Context, req MusicRequest) ([]Payload, error)
}
