package rtc

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// ErrMediaUnavailable is returned when no local capture could be acquired in
// any configuration.
var ErrMediaUnavailable = errors.New("unable to access camera or microphone")

// MediaSource supplies the local tracks published to every peer. A single
// source is shared across all peer connections of a session.
type MediaSource interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// DeviceOpener acquires local capture for the requested kinds.
type DeviceOpener func(audio, video bool) (MediaSource, error)

// Acquire opens local media with graceful degradation: audio+video first,
// then video only. When both attempts fail it reports ErrMediaUnavailable
// wrapping the first failure.
func Acquire(open DeviceOpener) (MediaSource, error) {
	source, err := open(true, true)
	if err == nil {
		return source, nil
	}

	source, videoErr := open(false, true)
	if videoErr == nil {
		return source, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
}

// StaticSource is a MediaSource over a fixed set of local tracks.
type StaticSource struct {
	tracks []webrtc.TrackLocal
}

func NewStaticSource(tracks ...webrtc.TrackLocal) *StaticSource {
	return &StaticSource{tracks: tracks}
}

func (s *StaticSource) Tracks() []webrtc.TrackLocal {
	return s.tracks
}

func (s *StaticSource) Close() error {
	return nil
}

// SampleSource builds sample-based local tracks for the requested kinds.
// Capture pipelines write encoded frames into the returned tracks.
func SampleSource(audio, video bool) (MediaSource, error) {
	var tracks []webrtc.TrackLocal

	if video {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video",
			"campus-media",
		)
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
		tracks = append(tracks, track)
	}

	if audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio",
			"campus-media",
		)
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		tracks = append(tracks, track)
	}

	return NewStaticSource(tracks...), nil
}
