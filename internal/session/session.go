// Package session implements the playback session a rendition selector works against.
package session

import (
	"log/slog"
	"sync"

	"github.com/agleyzer/renditionctl/internal/codecs"
	"github.com/agleyzer/renditionctl/internal/manifest"
	"github.com/agleyzer/renditionctl/internal/variant"
)

// Controller tracks the loaded manifest, what the session can decode and
// which variant is currently playing.
type Controller struct {
	mu         sync.RWMutex
	manifest   *manifest.Manifest
	support    codecs.Support
	excluded   map[string]bool
	audioTrack string
	current    *variant.Variant
	switches   int
	onSwitch   func(*variant.Variant)
	logger     *slog.Logger
}

// New creates a session controller that can decode the given codec families.
func New(support codecs.Support, logger *slog.Logger) *Controller {
	return &Controller{
		support:  support,
		excluded: make(map[string]bool),
		logger:   logger,
	}
}

// SetManifest replaces the loaded manifest.
func (c *Controller) SetManifest(m *manifest.Manifest) {
	c.mu.Lock()
	c.manifest = m
	c.current = nil
	c.mu.Unlock()

	if m != nil {
		c.logger.Info("manifest loaded",
			"url", m.URI,
			"playlists", len(m.Playlists),
			"audioGroups", len(m.AudioGroups),
		)
	}
}

// Manifest returns the loaded manifest, nil if none.
func (c *Controller) Manifest() *manifest.Manifest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manifest
}

// IsAudioOnly reports whether m only carries audio.
func (c *Controller) IsAudioOnly(m *manifest.Manifest) bool {
	return codecs.IsAudioOnly(m)
}

// IsIncompatible reports whether v was excluded for good or carries
// codecs this session cannot decode.
func (c *Controller) IsIncompatible(v *variant.Variant) bool {
	c.mu.RLock()
	excluded := c.excluded[v.ID]
	m := c.manifest
	c.mu.RUnlock()

	if excluded {
		return true
	}
	return !c.support.Playable(codecs.ForVariant(m, v))
}

// IsEnabled reports whether v is enabled.
func (c *Controller) IsEnabled(v *variant.Variant) bool {
	return !v.Disabled()
}

// CodecsForVariant resolves the codec string of v within m.
func (c *Controller) CodecsForVariant(m *manifest.Manifest, v *variant.Variant) string {
	return codecs.ForVariant(m, v)
}

// Exclude marks the variant with the given id incompatible for the rest of the session.
func (c *Controller) Exclude(id string) {
	c.mu.Lock()
	c.excluded[id] = true
	c.mu.Unlock()

	c.logger.Info("rendition excluded", "rendition", id)
}

// SetAudioTrack selects the audio track by rendition name.
// An empty label falls back to the manifest's default track.
func (c *Controller) SetAudioTrack(label string) {
	c.mu.Lock()
	c.audioTrack = label
	c.mu.Unlock()
}

// AudioTrack returns the active audio track label.
func (c *Controller) AudioTrack() string {
	c.mu.RLock()
	label := c.audioTrack
	m := c.manifest
	c.mu.RUnlock()

	if label != "" || m == nil {
		return label
	}
	return defaultAudioTrack(m)
}

// AudioTrackPlaylists returns the playlists of the active audio track across
// all audio groups. Muxed renditions contribute the main playlists of their
// group. Without audio groups or matches it falls back to the main playlists,
// which is nil for a manifest that has none.
func (c *Controller) AudioTrackPlaylists() []*variant.Variant {
	m := c.Manifest()
	if m == nil {
		return nil
	}
	if len(m.AudioGroups) == 0 {
		return m.Playlists
	}

	label := c.AudioTrack()
	if label == "" {
		return m.Playlists
	}

	var playlists []*variant.Variant
	for _, groupID := range m.GroupOrder {
		for _, r := range m.AudioGroups[groupID] {
			if r.Name != label {
				continue
			}
			if r.Playlist != nil {
				playlists = append(playlists, r.Playlist)
				continue
			}
			for _, p := range m.Playlists {
				if p.Attributes != nil && p.Attributes.Audio == groupID {
					playlists = append(playlists, p)
				}
			}
		}
	}

	if len(playlists) == 0 {
		return m.Playlists
	}
	return playlists
}

// defaultAudioTrack picks the DEFAULT rendition of the "main" group, or of
// the first group when there is no "main" group.
func defaultAudioTrack(m *manifest.Manifest) string {
	group, ok := m.AudioGroups["main"]
	if !ok && len(m.GroupOrder) > 0 {
		group = m.AudioGroups[m.GroupOrder[0]]
	}
	for _, r := range group {
		if r.Default {
			return r.Name
		}
	}
	return ""
}

// OnSwitch registers fn to run after every quality change.
func (c *Controller) OnSwitch(fn func(*variant.Variant)) {
	c.mu.Lock()
	c.onSwitch = fn
	c.mu.Unlock()
}

// FastQualityChange makes v the current variant. Flushing buffers and
// reloading segments is left to the OnSwitch hook.
func (c *Controller) FastQualityChange(v *variant.Variant) {
	c.mu.Lock()
	previous := c.current
	c.current = v
	c.switches++
	hook := c.onSwitch
	c.mu.Unlock()

	from := ""
	if previous != nil {
		from = previous.ID
	}
	c.logger.Info("fast quality change", "from", from, "to", v.ID)

	if hook != nil {
		hook(v)
	}
}

// Current returns the variant of the last quality change, nil if none.
func (c *Controller) Current() *variant.Variant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Switches returns the number of quality changes so far.
func (c *Controller) Switches() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.switches
}

// ApplyDisabled sets the disabled flag of a variant directly, without
// quality changes or events. It reports whether the id was found.
func (c *Controller) ApplyDisabled(id string, disabled bool) bool {
	m := c.Manifest()
	if m == nil {
		return false
	}

	v, ok := m.Lookup(id)
	if !ok {
		c.logger.Warn("replicated state for unknown rendition", "rendition", id)
		return false
	}

	v.SetDisabled(disabled)
	c.logger.Debug("applied rendition state", "rendition", id, "disabled", disabled)
	return true
}

// DisabledState returns the disabled flag of every known playlist.
func (c *Controller) DisabledState() map[string]bool {
	m := c.Manifest()
	state := make(map[string]bool)
	if m == nil {
		return state
	}

	for _, p := range m.Playlists {
		state[p.ID] = p.Disabled()
	}
	for _, groupID := range m.GroupOrder {
		for _, r := range m.AudioGroups[groupID] {
			if r.Playlist != nil {
				state[r.Playlist.ID] = r.Playlist.Disabled()
			}
		}
	}
	return state
}
