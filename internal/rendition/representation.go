package rendition

import (
	"github.com/agleyzer/renditionctl/internal/manifest"
	"github.com/agleyzer/renditionctl/internal/variant"
)

// Representation is a disposable view of one variant.
// Optional fields are nil when the variant does not declare them.
type Representation struct {
	// ID is the variant's own id, never its position in a listing
	ID string

	Width     *int
	Height    *int
	Bandwidth *int
	FrameRate *float64
	Codecs    string

	// Playlist is the underlying variant record
	Playlist *variant.Variant

	toggle *Toggle
}

// Enabled reports the live enabled state of the underlying variant.
func (r Representation) Enabled() bool {
	return r.toggle.Enabled()
}

// SetEnabled enables or disables the underlying variant and returns enable.
func (r Representation) SetEnabled(enable bool) bool {
	return r.toggle.SetEnabled(enable)
}

// Toggle returns the toggle bound to the underlying variant.
func (r Representation) Toggle() *Toggle {
	return r.toggle
}

// build constructs the representation of v. It does not check compatibility.
func (s *Selector) build(m *manifest.Manifest, v *variant.Variant) Representation {
	rep := Representation{
		ID:       v.ID,
		Codecs:   s.session.CodecsForVariant(m, v),
		Playlist: v,
		toggle:   s.Toggle(v.ID),
	}

	if attrs := v.Attributes; attrs != nil {
		if attrs.Resolution != nil {
			rep.Width = variant.IntPtr(attrs.Resolution.Width)
			rep.Height = variant.IntPtr(attrs.Resolution.Height)
		}
		if attrs.Bandwidth != nil {
			rep.Bandwidth = variant.IntPtr(*attrs.Bandwidth)
		}
		if attrs.FrameRate != nil {
			rep.FrameRate = variant.FloatPtr(*attrs.FrameRate)
		}
	}

	return rep
}
