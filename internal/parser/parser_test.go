package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agleyzer/renditionctl/internal/manifest"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="English",LANGUAGE="en",DEFAULT=YES,AUTOSELECT=YES,URI="audio/en.m3u8"
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="French",LANGUAGE="fr",DEFAULT=NO,AUTOSELECT=YES,URI="audio/fr.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,CODECS="avc1.4d401e",AUDIO="aac"
low/playlist.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720,CODECS="avc1.4d401f",FRAME-RATE=29.970,AUDIO="aac"
mid/playlist.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000,CODECS="avc1.640028,mp4a.40.2"
https://cdn.example.com/high/playlist.m3u8
`

func TestParseManifest_MasterPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(masterPlaylist))
	}))
	defer server.Close()

	masterURL := server.URL + "/master.m3u8"
	m, err := ParseManifest(context.Background(), masterURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if m.URI != masterURL {
		t.Errorf("Expected URI %s, got %s", masterURL, m.URI)
	}

	if len(m.Playlists) != 3 {
		t.Fatalf("Expected 3 playlists, got %d", len(m.Playlists))
	}

	low := m.Playlists[0]
	if low.ID != "0-low/playlist.m3u8" {
		t.Errorf("Expected id 0-low/playlist.m3u8, got %s", low.ID)
	}
	if low.URI != server.URL+"/low/playlist.m3u8" {
		t.Errorf("Expected resolved URI, got %s", low.URI)
	}
	if low.Attributes == nil {
		t.Fatal("Expected attributes")
	}
	if *low.Attributes.Bandwidth != 800000 {
		t.Errorf("Expected bandwidth 800000, got %d", *low.Attributes.Bandwidth)
	}
	if low.Attributes.Resolution.Width != 640 || low.Attributes.Resolution.Height != 360 {
		t.Errorf("Unexpected resolution %v", low.Attributes.Resolution)
	}
	if low.Attributes.FrameRate != nil {
		t.Errorf("Expected no frame rate, got %v", *low.Attributes.FrameRate)
	}
	if low.Attributes.Audio != "aac" {
		t.Errorf("Expected audio group aac, got %q", low.Attributes.Audio)
	}

	mid := m.Playlists[1]
	if mid.Attributes.FrameRate == nil || *mid.Attributes.FrameRate != 29.97 {
		t.Errorf("Expected frame rate 29.97, got %v", mid.Attributes.FrameRate)
	}

	high := m.Playlists[2]
	if high.URI != "https://cdn.example.com/high/playlist.m3u8" {
		t.Errorf("Absolute URI should remain unchanged, got %s", high.URI)
	}
	if high.Attributes.Resolution != nil {
		t.Errorf("Expected no resolution, got %v", high.Attributes.Resolution)
	}

	group := m.AudioGroups["aac"]
	if len(group) != 2 {
		t.Fatalf("Expected 2 audio renditions, got %d", len(group))
	}
	if !group[0].Default || group[0].Language != "en" {
		t.Errorf("Unexpected first rendition %+v", group[0])
	}
	if group[1].URI != server.URL+"/audio/fr.m3u8" {
		t.Errorf("Expected resolved audio URI, got %s", group[1].URI)
	}

	if _, ok := m.Lookup(manifest.AudioPlaylistID("aac", "French")); !ok {
		t.Error("audio playlist should be indexed")
	}
}

func TestParseManifest_MediaPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playlist := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:9.9,
segment001.ts
#EXTINF:10.0,
segment002.ts
#EXT-X-ENDLIST
`
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(playlist))
	}))
	defer server.Close()

	m, err := ParseManifest(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(m.Playlists) != 1 {
		t.Fatalf("Expected 1 playlist, got %d", len(m.Playlists))
	}
	if m.Playlists[0].Attributes != nil {
		t.Error("media playlist variant should have no attributes")
	}
	if m.Playlists[0].URI != server.URL {
		t.Errorf("Expected URI %s, got %s", server.URL, m.Playlists[0].URI)
	}
}

func TestParseManifest_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := ParseManifest(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404 response, got nil")
	}
}

func TestParseManifest_Canceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterPlaylist))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ParseManifest(ctx, server.URL); err == nil {
		t.Fatal("Expected error for canceled context, got nil")
	}
}

func TestDecode_InvalidResolution(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=wide
low.m3u8
`
	if _, err := Decode(strings.NewReader(playlist), "https://example.com/master.m3u8"); err == nil {
		t.Fatal("Expected error for invalid resolution, got nil")
	}
}

func TestDecode_InvalidPlaylist(t *testing.T) {
	if _, err := Decode(strings.NewReader("not a playlist"), "https://example.com/master.m3u8"); err == nil {
		t.Fatal("Expected error for invalid content, got nil")
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		relative string
		want     string
	}{
		{
			name:     "relative path",
			baseURL:  "https://example.com/path/master.m3u8",
			relative: "low/playlist.m3u8",
			want:     "https://example.com/path/low/playlist.m3u8",
		},
		{
			name:     "absolute path",
			baseURL:  "https://example.com/path/master.m3u8",
			relative: "/other/playlist.m3u8",
			want:     "https://example.com/other/playlist.m3u8",
		},
		{
			name:     "absolute URL",
			baseURL:  "https://example.com/path/master.m3u8",
			relative: "https://cdn.example.com/playlist.m3u8",
			want:     "https://cdn.example.com/playlist.m3u8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveURL(tt.baseURL, tt.relative)
			if err != nil {
				t.Fatalf("resolveURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveURL() = %v, want %v", got, tt.want)
			}
		})
	}
}
