// Package manifest holds a decoded multivariant HLS manifest.
package manifest

import (
	"fmt"
	"sync"

	"github.com/agleyzer/renditionctl/internal/variant"
)

// Manifest is a decoded multivariant manifest.
// It owns the variant records; everything else references them by pointer.
type Manifest struct {
	// URI is the URL the manifest was loaded from
	URI string

	// Playlists contains the main variant streams in manifest order
	Playlists []*variant.Variant

	// AudioGroups maps an audio GROUP-ID to its renditions in manifest order
	AudioGroups map[string][]*AudioRendition

	// GroupOrder lists audio GROUP-IDs in the order they first appeared
	GroupOrder []string

	mu   sync.RWMutex
	byID map[string]*variant.Variant
}

// AudioRendition is an EXT-X-MEDIA entry of TYPE=AUDIO.
type AudioRendition struct {
	GroupID  string
	Name     string
	Language string
	Default  bool

	// URI is empty when the audio is muxed into the main playlists
	URI string

	// Playlist is the rendition's own playlist, nil when URI is empty
	Playlist *variant.Variant
}

// New creates an empty manifest.
func New(uri string) *Manifest {
	return &Manifest{
		URI:         uri,
		AudioGroups: make(map[string][]*AudioRendition),
		byID:        make(map[string]*variant.Variant),
	}
}

// AddPlaylist appends a main variant stream.
func (m *Manifest) AddPlaylist(v *variant.Variant) error {
	if err := m.index(v); err != nil {
		return err
	}
	m.Playlists = append(m.Playlists, v)
	return nil
}

// AddAudioRendition appends an audio rendition to its group.
// Renditions with a URI get a playlist record indexed alongside the main playlists.
func (m *Manifest) AddAudioRendition(r *AudioRendition) error {
	if r.URI != "" && r.Playlist == nil {
		r.Playlist = variant.New(AudioPlaylistID(r.GroupID, r.Name), r.URI, nil)
	}
	if r.Playlist != nil {
		if err := m.index(r.Playlist); err != nil {
			return err
		}
	}

	if _, ok := m.AudioGroups[r.GroupID]; !ok {
		m.GroupOrder = append(m.GroupOrder, r.GroupID)
	}
	m.AudioGroups[r.GroupID] = append(m.AudioGroups[r.GroupID], r)
	return nil
}

func (m *Manifest) index(v *variant.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byID == nil {
		m.byID = make(map[string]*variant.Variant)
	}
	if _, exists := m.byID[v.ID]; exists {
		return fmt.Errorf("duplicate playlist id %q", v.ID)
	}
	m.byID[v.ID] = v
	return nil
}

// Lookup returns the variant record with the given id.
func (m *Manifest) Lookup(id string) (*variant.Variant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.byID[id]
	return v, ok
}

// IsAudioRendition reports whether id names an audio rendition playlist.
func (m *Manifest) IsAudioRendition(id string) bool {
	for _, group := range m.AudioGroups {
		for _, r := range group {
			if r.Playlist != nil && r.Playlist.ID == id {
				return true
			}
		}
	}
	return false
}

// HasAudioPlaylists reports whether any audio rendition carries its own playlist.
func (m *Manifest) HasAudioPlaylists() bool {
	for _, group := range m.AudioGroups {
		for _, r := range group {
			if r.Playlist != nil {
				return true
			}
		}
	}
	return false
}

// AudioPlaylistID builds the id of an audio rendition playlist.
func AudioPlaylistID(group, name string) string {
	return fmt.Sprintf("AUDIO-%s-%s", group, name)
}
