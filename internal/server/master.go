package server

import (
	"net/http"

	"github.com/agleyzer/renditionctl/internal/manifest"
	"github.com/agleyzer/renditionctl/internal/rendition"
	"github.com/agleyzer/renditionctl/internal/variant"
	"github.com/grafov/m3u8"
)

// buildMaster encodes a master playlist with the enabled renditions only.
// Variants keep their audio group so players still find the alternatives.
// Renditions without a bandwidth, such as the audio rendition playlists
// listed for audio-only sessions, cannot form a valid EXT-X-STREAM-INF and
// are left out.
func buildMaster(m *manifest.Manifest, reps []rendition.Representation) *m3u8.MasterPlaylist {
	master := m3u8.NewMasterPlaylist()

	for _, rep := range reps {
		if !rep.Enabled() || rep.Bandwidth == nil {
			continue
		}

		params := m3u8.VariantParams{
			Bandwidth: uint32(*rep.Bandwidth),
			Codecs:    rep.Codecs,
		}
		if rep.Width != nil && rep.Height != nil {
			params.Resolution = variant.Resolution{Width: *rep.Width, Height: *rep.Height}.String()
		}
		if rep.FrameRate != nil {
			params.FrameRate = *rep.FrameRate
		}

		if attrs := rep.Playlist.Attributes; attrs != nil && attrs.Audio != "" && m != nil {
			params.Audio = attrs.Audio
			for _, r := range m.AudioGroups[attrs.Audio] {
				params.Alternatives = append(params.Alternatives, &m3u8.Alternative{
					GroupId:  r.GroupID,
					URI:      r.URI,
					Type:     "AUDIO",
					Language: r.Language,
					Name:     r.Name,
					Default:  r.Default,
				})
			}
		}

		master.Append(rep.Playlist.URI, nil, params)
	}

	return master
}

// handleMaster serves the manifest filtered down to enabled renditions
func (s *Server) handleMaster(w http.ResponseWriter, r *http.Request) {
	master := buildMaster(s.session.Manifest(), s.renditions.List())

	// Set HLS-specific headers
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	w.WriteHeader(http.StatusOK)
	w.Write(master.Encode().Bytes())
}
