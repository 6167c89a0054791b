// Package parser provides HLS manifest parsing functionality.
package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agleyzer/renditionctl/internal/manifest"
	"github.com/agleyzer/renditionctl/internal/variant"
	"github.com/grafov/m3u8"
)

// ParseManifest fetches and parses an HLS manifest from a URL.
func ParseManifest(ctx context.Context, manifestURL string) (*manifest.Manifest, error) {
	body, err := fetch(ctx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer body.Close()

	return Decode(body, manifestURL)
}

// Decode parses an HLS manifest read from r. Relative URIs are resolved
// against manifestURL. A media playlist yields a manifest with a single
// variant that has no attributes.
func Decode(r io.Reader, manifestURL string) (*manifest.Manifest, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	if listType == m3u8.MASTER {
		return parseMasterPlaylist(playlist, manifestURL)
	}

	if _, ok := playlist.(*m3u8.MediaPlaylist); !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	m := manifest.New(manifestURL)
	if err := m.AddPlaylist(variant.New(variant.PlaylistID(0, manifestURL), manifestURL, nil)); err != nil {
		return nil, err
	}
	return m, nil
}

// parseMasterPlaylist maps the variants and audio renditions of a master playlist.
func parseMasterPlaylist(playlist m3u8.Playlist, masterURL string) (*manifest.Manifest, error) {
	masterPlaylist, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	m := manifest.New(masterURL)
	seen := make(map[string]bool)

	for variantIndex, v := range masterPlaylist.Variants {
		if v == nil {
			continue
		}

		// Alternatives are attached to whichever variant followed the EXT-X-MEDIA tags
		for _, alt := range v.Alternatives {
			if err := addAudioRendition(m, alt, masterURL, seen); err != nil {
				return nil, err
			}
		}

		// I-frame streams are not selectable renditions
		if v.Iframe {
			continue
		}

		variantURL, err := resolveURL(masterURL, v.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve variant URL: %w", err)
		}

		attrs, err := attributesFrom(v.VariantParams)
		if err != nil {
			return nil, fmt.Errorf("variant %d: %w", variantIndex, err)
		}

		if err := m.AddPlaylist(variant.New(variant.PlaylistID(variantIndex, v.URI), variantURL, attrs)); err != nil {
			return nil, fmt.Errorf("variant %d: %w", variantIndex, err)
		}
	}

	if len(m.Playlists) == 0 && !m.HasAudioPlaylists() {
		return nil, fmt.Errorf("master playlist contains no variants")
	}

	return m, nil
}

// attributesFrom converts EXT-X-STREAM-INF parameters, leaving undeclared ones unset.
func attributesFrom(p m3u8.VariantParams) (*variant.Attributes, error) {
	attrs := &variant.Attributes{
		Codecs: p.Codecs,
		Audio:  p.Audio,
	}

	if p.Bandwidth > 0 {
		attrs.Bandwidth = variant.IntPtr(int(p.Bandwidth))
	}

	if p.Resolution != "" {
		res, err := variant.ParseResolution(p.Resolution)
		if err != nil {
			return nil, err
		}
		attrs.Resolution = res
	}

	if p.FrameRate > 0 {
		attrs.FrameRate = variant.FloatPtr(p.FrameRate)
	}

	return attrs, nil
}

func addAudioRendition(m *manifest.Manifest, alt *m3u8.Alternative, masterURL string, seen map[string]bool) error {
	if alt == nil || alt.Type != "AUDIO" {
		return nil
	}

	key := alt.GroupId + "\x00" + alt.Name
	if seen[key] {
		return nil
	}
	seen[key] = true

	r := &manifest.AudioRendition{
		GroupID:  alt.GroupId,
		Name:     alt.Name,
		Language: alt.Language,
		Default:  alt.Default,
	}

	if alt.URI != "" {
		audioURL, err := resolveURL(masterURL, alt.URI)
		if err != nil {
			return fmt.Errorf("failed to resolve audio rendition URL: %w", err)
		}
		r.URI = audioURL
	}

	if err := m.AddAudioRendition(r); err != nil {
		return fmt.Errorf("audio rendition %s/%s: %w", alt.GroupId, alt.Name, err)
	}
	return nil
}

// resolveURL resolves a possibly relative URL against a base URL.
func resolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", fmt.Errorf("invalid relative URL: %w", err)
	}

	// Resolve the relative URL against the base
	resolved := base.ResolveReference(rel)
	return resolved.String(), nil
}

func fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return resp.Body, nil
}
