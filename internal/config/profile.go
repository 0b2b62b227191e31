package config

import (
	"fmt"
	"strings"

	"upscaler/internal/services"
)

// Profile names a codec/container combination for the final encode.
type Profile string

const (
	ProfileDefault      Profile = "default"
	ProfileEfficient    Profile = "efficient"
	ProfileProfessional Profile = "professional"
)

// Profiles lists every supported profile in display order.
var Profiles = []Profile{ProfileDefault, ProfileEfficient, ProfileProfessional}

// CodecSettings describes the encoder arguments a profile implies.
type CodecSettings struct {
	Codec string
	// Args are encoder options placed directly after -c:v.
	Args        []string
	Bitrate     string
	PixelFormat string
	AudioCodec  string
	StagingExt  string
}

// HasBitrate reports whether the profile encodes at an explicit bitrate.
func (s CodecSettings) HasBitrate() bool {
	return s.Bitrate != ""
}

// SupportsContainer reports whether the encoded stream can be muxed into a
// file with extension ext. ProRes has no MP4 mapping in ffmpeg.
func (s CodecSettings) SupportsContainer(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp4", ".m4v":
		return s.Codec != "prores_ks"
	default:
		return true
	}
}

// ParseProfile maps a user-supplied name onto a Profile. Unknown names are
// configuration errors so codec selection stays total.
func ParseProfile(name string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return ProfileDefault, nil
	case ProfileDefault, ProfileEfficient, ProfileProfessional:
		return p, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "config", "profile",
			fmt.Sprintf("unknown codec profile %q (want default, efficient, or professional)", name), nil)
	}
}

// Settings returns the codec settings for the profile.
func (p Profile) Settings() CodecSettings {
	switch p {
	case ProfileEfficient:
		return CodecSettings{
			Codec:       "libx265",
			Args:        []string{"-tag:v", "hvc1", "-preset", "medium"},
			Bitrate:     "6M",
			PixelFormat: "yuv420p",
			AudioCodec:  "aac",
			StagingExt:  ".mp4",
		}
	case ProfileProfessional:
		return CodecSettings{
			Codec:       "prores_ks",
			Args:        []string{"-profile:v", "3"},
			PixelFormat: "yuv422p10le",
			AudioCodec:  "pcm_s16le",
			StagingExt:  ".mov",
		}
	default:
		return CodecSettings{
			Codec:       "libx264",
			Args:        []string{"-preset", "slow"},
			Bitrate:     "12M",
			PixelFormat: "yuv420p",
			AudioCodec:  "aac",
			StagingExt:  ".mp4",
		}
	}
}

func (p Profile) String() string {
	if p == "" {
		return string(ProfileDefault)
	}
	return string(p)
}
