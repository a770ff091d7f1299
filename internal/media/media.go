package media

import (
	"fmt"
	"strings"
)

// Type is the kind of asset a model produces or a scene slot holds
type Type string

const (
	Image Type = "image"
	Video Type = "video"
	Audio Type = "audio"
)

// All lists the media types in pipeline order (each stage feeds the next)
var All = []Type{Image, Video, Audio}

// Parse converts a user supplied string into a media Type.
// "sound" is accepted as an alias for audio.
func Parse(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images":
		return Image, nil
	case "video", "videos":
		return Video, nil
	case "audio", "sound", "sounds":
		return Audio, nil
	}
	return "", fmt.Errorf("unknown media type %q (expected image, video or audio)", s)
}

// Valid reports whether t is one of the known media types
func (t Type) Valid() bool {
	return t == Image || t == Video || t == Audio
}

func (t Type) String() string {
	return string(t)
}

// Upstream returns the media type whose output this type consumes.
// Video is generated from an image and audio from a video.
func (t Type) Upstream() (Type, bool) {
	switch t {
	case Video:
		return Image, true
	case Audio:
		return Video, true
	}
	return "", false
}

// Downstream returns the media type that consumes this type's output
func (t Type) Downstream() (Type, bool) {
	switch t {
	case Image:
		return Video, true
	case Video:
		return Audio, true
	}
	return "", false
}
