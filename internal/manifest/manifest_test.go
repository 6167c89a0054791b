package manifest

import (
	"testing"

	"github.com/agleyzer/renditionctl/internal/variant"
)

func TestManifest_AddPlaylistAndLookup(t *testing.T) {
	m := New("https://example.com/master.m3u8")

	low := variant.New("0-low.m3u8", "https://example.com/low.m3u8", nil)
	high := variant.New("1-high.m3u8", "https://example.com/high.m3u8", nil)

	for _, v := range []*variant.Variant{low, high} {
		if err := m.AddPlaylist(v); err != nil {
			t.Fatalf("AddPlaylist(%s) error = %v", v.ID, err)
		}
	}

	if len(m.Playlists) != 2 {
		t.Fatalf("Expected 2 playlists, got %d", len(m.Playlists))
	}

	got, ok := m.Lookup("1-high.m3u8")
	if !ok || got != high {
		t.Errorf("Lookup returned %v, %v; want the high variant", got, ok)
	}

	if _, ok := m.Lookup("missing"); ok {
		t.Error("Lookup of unknown id should fail")
	}
}

func TestManifest_DuplicateID(t *testing.T) {
	m := New("")
	if err := m.AddPlaylist(variant.New("a", "a.m3u8", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AddPlaylist(variant.New("a", "b.m3u8", nil)); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestManifest_AddAudioRendition(t *testing.T) {
	m := New("")

	renditions := []*AudioRendition{
		{GroupID: "aac", Name: "English", Language: "en", Default: true, URI: "https://example.com/en.m3u8"},
		{GroupID: "aac", Name: "Muxed"},
		{GroupID: "ac3", Name: "English", URI: "https://example.com/en-ac3.m3u8"},
	}
	for _, r := range renditions {
		if err := m.AddAudioRendition(r); err != nil {
			t.Fatalf("AddAudioRendition error = %v", err)
		}
	}

	if len(m.GroupOrder) != 2 || m.GroupOrder[0] != "aac" || m.GroupOrder[1] != "ac3" {
		t.Errorf("unexpected group order %v", m.GroupOrder)
	}

	if renditions[1].Playlist != nil {
		t.Error("rendition without URI should have no playlist")
	}

	id := AudioPlaylistID("aac", "English")
	v, ok := m.Lookup(id)
	if !ok {
		t.Fatalf("audio playlist %q not indexed", id)
	}
	if v.Attributes != nil {
		t.Error("audio playlist should carry no attributes")
	}
	if !m.IsAudioRendition(id) {
		t.Error("IsAudioRendition should be true for audio playlist")
	}
	if !m.HasAudioPlaylists() {
		t.Error("HasAudioPlaylists should be true")
	}
}
