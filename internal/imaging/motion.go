package imaging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// mp4Signature is the 'ftyp' box signature common to MP4 containers
// (including Google/Samsung motion-photo trailers), searched for in
// the tail of a JPEG file (spec §4.2 stage 5).
var mp4Signature = []byte("ftyp")

// MotionPhoto describes a detected embedded or sidecar motion-video
// companion for a photo.
type MotionPhoto struct {
	VideoBytes []byte // non-nil when extracted from an embedded trailer
	SidecarPath string // non-empty when a same-basename sidecar video exists
}

// DetectEmbedded scans the tail of raw for an embedded MP4 container
// signature (as written by Google/Samsung "motion photo" camera apps)
// and, if found, returns the trailing bytes as a standalone video.
func DetectEmbedded(raw []byte) (MotionPhoto, bool) {
	// The JPEG itself ends with 0xFFD9; search every byte after it for
	// 'ftyp', then cut from the start of that box.
	eoi := bytes.LastIndex(raw, []byte{0xFF, 0xD9})
	if eoi < 0 {
		return MotionPhoto{}, false
	}
	tail := raw[eoi+2:]
	if len(tail) < 16 {
		return MotionPhoto{}, false
	}

	idx := bytes.Index(tail, mp4Signature)
	if idx < 0 {
		return MotionPhoto{}, false
	}
	// The ftyp box is preceded by a 4-byte size field.
	boxStart := idx - 4
	if boxStart < 0 {
		boxStart = 0
	}
	return MotionPhoto{VideoBytes: tail[boxStart:]}, true
}

// supportedVideoExt lists the sidecar extensions considered a
// Live-Photo-style companion video.
var supportedVideoExt = map[string]bool{
	".mov": true, ".mp4": true,
}

// DetectSidecar looks for a same-basename video next to photoPath
// (Apple Live Photos convention).
func DetectSidecar(photoPath string) (MotionPhoto, bool) {
	dir := filepath.Dir(photoPath)
	base := strings.TrimSuffix(filepath.Base(photoPath), filepath.Ext(photoPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return MotionPhoto{}, false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !supportedVideoExt[ext] {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == base {
			return MotionPhoto{SidecarPath: filepath.Join(dir, name)}, true
		}
	}
	return MotionPhoto{}, false
}
