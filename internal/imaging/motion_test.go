package imaging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectEmbedded_FindsTrailingMP4(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}
	mp4Box := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftyp")...)
	mp4Box = append(mp4Box, []byte("mp42rest-of-video-bytes")...)

	raw := append(append([]byte{}, jpeg...), mp4Box...)

	mp, ok := DetectEmbedded(raw)
	require.True(t, ok)
	require.Contains(t, string(mp.VideoBytes), "ftyp")
}

func TestDetectEmbedded_NoTrailerReturnsFalse(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}
	_, ok := DetectEmbedded(jpeg)
	require.False(t, ok)
}

func TestDetectEmbedded_NoEOIMarker(t *testing.T) {
	_, ok := DetectEmbedded([]byte{0x01, 0x02, 0x03})
	require.False(t, ok)
}

func TestDetectSidecar_FindsSameBasenameVideo(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "IMG_0001.jpg")
	video := filepath.Join(dir, "IMG_0001.mov")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o644))
	require.NoError(t, os.WriteFile(video, []byte("mov"), 0o644))

	mp, ok := DetectSidecar(photo)
	require.True(t, ok)
	require.Equal(t, video, mp.SidecarPath)
}

func TestDetectSidecar_NoMatchingVideo(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "IMG_0002.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o644))

	_, ok := DetectSidecar(photo)
	require.False(t, ok)
}

func TestDetectSidecar_IgnoresUnsupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "IMG_0003.jpg")
	sidecarXMP := filepath.Join(dir, "IMG_0003.xmp")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o644))
	require.NoError(t, os.WriteFile(sidecarXMP, []byte("xmp"), 0o644))

	_, ok := DetectSidecar(photo)
	require.False(t, ok)
}

func TestHammingDistance64(t *testing.T) {
	require.Equal(t, 0, HammingDistance64(0xABCD, 0xABCD))
	require.Equal(t, 64, HammingDistance64(0, ^uint64(0)))
}
