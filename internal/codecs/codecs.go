// Package codecs resolves and classifies RFC 6381 codec strings of HLS variants.
package codecs

import (
	"strings"

	"github.com/agleyzer/renditionctl/internal/manifest"
	"github.com/agleyzer/renditionctl/internal/variant"
)

const (
	// DefaultAudio is assumed when a variant plays with an audio group
	// but does not declare an audio codec.
	DefaultAudio = "mp4a.40.2"

	// DefaultVideo is assumed when a variant declares no codecs at all.
	DefaultVideo = "avc1.4d400d"
)

// Codec family tables
var (
	audioFamilies = []string{"mp4a", "aac", "ac-3", "ec-3", "opus", "vorbis", "flac", "mp3"}
	videoFamilies = []string{"avc1", "avc3", "h264", "hvc1", "hev1", "h265", "vp09", "vp9", "vp8", "av01", "av1", "dvh1", "dvhe"}
)

// Split splits a CODECS attribute into trimmed, non-empty codec strings.
func Split(codecs string) []string {
	var out []string
	for _, c := range strings.Split(codecs, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Family returns the lowercase sample entry of a codec string ("avc1.64001f" -> "avc1").
func Family(codec string) string {
	codec = strings.ToLower(strings.TrimSpace(codec))
	if i := strings.IndexByte(codec, '.'); i >= 0 {
		codec = codec[:i]
	}
	return codec
}

// IsAudioCodec reports whether codec belongs to an audio family.
func IsAudioCodec(codec string) bool {
	return inFamilies(codec, audioFamilies)
}

// IsVideoCodec reports whether codec belongs to a video family.
func IsVideoCodec(codec string) bool {
	return inFamilies(codec, videoFamilies)
}

func inFamilies(codec string, families []string) bool {
	family := Family(codec)
	for _, f := range families {
		if family == f {
			return true
		}
	}
	return false
}

// ForVariant resolves the codec string of v.
// Resolution may depend on the rest of the manifest: a variant that
// references an audio group without declaring an audio codec is assumed
// to carry the default audio codec.
func ForVariant(m *manifest.Manifest, v *variant.Variant) string {
	var declared []string
	audioGroup := ""
	if v.Attributes != nil {
		declared = Split(v.Attributes.Codecs)
		audioGroup = v.Attributes.Audio
	}

	if len(declared) == 0 {
		if m != nil && (m.IsAudioRendition(v.ID) || IsAudioOnly(m)) {
			return DefaultAudio
		}
		return DefaultVideo + "," + DefaultAudio
	}

	hasAudio := false
	for _, c := range declared {
		if IsAudioCodec(c) {
			hasAudio = true
			break
		}
	}

	if !hasAudio && audioGroup != "" && m != nil {
		if _, ok := m.AudioGroups[audioGroup]; ok {
			declared = append(declared, DefaultAudio)
		}
	}

	return strings.Join(declared, ",")
}

// IsAudioOnly reports whether every main playlist of m is audio only.
// A manifest with no main playlists is audio only when some audio
// rendition has a playlist of its own.
func IsAudioOnly(m *manifest.Manifest) bool {
	if m == nil {
		return false
	}

	if len(m.Playlists) == 0 {
		return m.HasAudioPlaylists()
	}

	for _, p := range m.Playlists {
		if p.Attributes == nil {
			return false
		}
		declared := Split(p.Attributes.Codecs)
		if len(declared) == 0 {
			return false
		}
		for _, c := range declared {
			if !IsAudioCodec(c) {
				return false
			}
		}
	}

	return true
}
