// Package variant defines the variant records of a decoded HLS manifest.
package variant

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Variant represents a single selectable stream in a manifest.
// Each variant typically represents a different quality level (bitrate/resolution).
// Variants are owned by the manifest and always handled by pointer.
type Variant struct {
	// ID is stable and unique within a manifest.
	ID string

	// URI is the absolute URL of the variant's media playlist
	URI string

	// Attributes holds the EXT-X-STREAM-INF attributes.
	// Nil when the manifest declared none (e.g. audio renditions).
	Attributes *Attributes

	disabled atomic.Bool
}

// Attributes are the optional stream attributes of a variant.
// Pointer fields are nil when the attribute was not declared.
type Attributes struct {
	// Bandwidth is the peak segment bitrate in bits per second
	Bandwidth *int

	// Resolution is the optimal display resolution
	Resolution *Resolution

	// Codecs is the codec string (e.g., "avc1.4d401f,mp4a.40.2")
	// Empty string if not specified in master playlist
	Codecs string

	// FrameRate is the maximum frame rate
	FrameRate *float64

	// Audio is the GROUP-ID of the audio renditions this variant plays with
	Audio string
}

// Resolution is a video resolution in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses a RESOLUTION attribute such as "1280x720".
func ParseResolution(s string) (*Resolution, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return nil, fmt.Errorf("invalid resolution %q", s)
	}

	width, err := strconv.Atoi(w)
	if err != nil {
		return nil, fmt.Errorf("invalid resolution width %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return nil, fmt.Errorf("invalid resolution height %q: %w", s, err)
	}

	return &Resolution{Width: width, Height: height}, nil
}

// New creates a variant record.
func New(id, uri string, attrs *Attributes) *Variant {
	return &Variant{ID: id, URI: uri, Attributes: attrs}
}

// Disabled reports whether the variant has been disabled.
func (v *Variant) Disabled() bool {
	return v.disabled.Load()
}

// SetDisabled sets or clears the disabled flag.
func (v *Variant) SetDisabled(disabled bool) {
	v.disabled.Store(disabled)
}

// PlaylistID builds the id of the main playlist at the given index.
func PlaylistID(index int, uri string) string {
	return fmt.Sprintf("%d-%s", index, uri)
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}
