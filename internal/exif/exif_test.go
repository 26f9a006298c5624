package exif

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTIFF assembles a minimal little-endian TIFF/EXIF/GPS IFD chain
// by hand, the same structure a real JPEG's APP1 segment carries, so
// Extract's hand-rolled walker can be exercised without a real camera
// file (spec §4.2 stage 2: "decode metadata header only").
//
// Layout (byte offsets relative to the TIFF header start):
//
//	0..8     TIFF header ("II", 42, offset to IFD0=8)
//	8..62    IFD0: 4 entries (Make, Orientation, ExifIFD ptr, GPSIFD ptr)
//	62..104  ExifIFD: 3 entries (DateTimeOriginal, FNumber, ISO)
//	104..158 GPSIFD: 4 entries (LatRef, Lat, LonRef, Lon)
//	158..    extra data area (ASCII strings and RATIONAL triples)
//
// GPSLatRef/GPSLonRef are single-char ASCII (count=2 incl. terminator,
// total size 2 bytes) so per TIFF rules they're stored inline in the
// entry's own value field rather than via an offset.
func buildTIFF() []byte {
	const (
		ifd0Off = 8
		exifOff = 62
		gpsOff  = 104
		extra   = 158
	)

	buf := make([]byte, extra)
	le := binary.LittleEndian

	// TIFF header.
	buf[0], buf[1] = 'I', 'I'
	le.PutUint16(buf[2:4], 42)
	le.PutUint32(buf[4:8], ifd0Off)

	writeEntry := func(off int, tag, typ uint16, count, value uint32) {
		le.PutUint16(buf[off:off+2], tag)
		le.PutUint16(buf[off+2:off+4], typ)
		le.PutUint32(buf[off+4:off+8], count)
		le.PutUint32(buf[off+8:off+12], value)
	}

	// IFD0: 4 entries.
	le.PutUint16(buf[ifd0Off:ifd0Off+2], 4)
	writeEntry(ifd0Off+2, tagMake, 2, 6, extra)       // "Canon\0" at extra+0
	writeEntry(ifd0Off+14, tagOrientation, 3, 1, 6)   // inline SHORT
	writeEntry(ifd0Off+26, tagExifIFD, 4, 1, exifOff) // inline LONG
	writeEntry(ifd0Off+38, tagGPSIFD, 4, 1, gpsOff)   // inline LONG
	le.PutUint32(buf[ifd0Off+50:ifd0Off+54], 0)       // next IFD = 0

	// ExifIFD: 3 entries.
	le.PutUint16(buf[exifOff:exifOff+2], 3)
	writeEntry(exifOff+2, tagDateTimeOrig, 2, 20, extra+6) // "2024:07:01 10:00:00\0" at extra+6
	writeEntry(exifOff+14, tagFNumber, 5, 1, extra+26)     // RATIONAL at extra+26
	writeEntry(exifOff+26, tagISO, 3, 1, 200)              // inline SHORT
	le.PutUint32(buf[exifOff+38:exifOff+42], 0)

	// GPSIFD: 4 entries. LatRef/LonRef are inline ASCII ('N'/'E' + NUL
	// packed into the low two bytes of the value field, little-endian).
	le.PutUint16(buf[gpsOff:gpsOff+2], 4)
	writeEntry(gpsOff+2, gpsLatRef, 2, 2, uint32('N'))
	writeEntry(gpsOff+14, gpsLat, 5, 3, extra+34) // 3 RATIONALs at extra+34
	writeEntry(gpsOff+26, gpsLonRef, 2, 2, uint32('E'))
	writeEntry(gpsOff+38, gpsLon, 5, 3, extra+58) // 3 RATIONALs at extra+58
	le.PutUint32(buf[gpsOff+50:gpsOff+54], 0)

	// Extra data area, appended in the order referenced above.
	var extraData []byte
	extraData = append(extraData, []byte("Canon\x00")...)               // extra+0  .. +6
	extraData = append(extraData, []byte("2024:07:01 10:00:00\x00")...) // extra+6  .. +26

	rational := func(num, den uint32) []byte {
		b := make([]byte, 8)
		le.PutUint32(b[0:4], num)
		le.PutUint32(b[4:8], den)
		return b
	}
	extraData = append(extraData, rational(28, 10)...) // extra+26 .. +34: FNumber f/2.8

	// GPS latitude: 48 deg 51 min 23.76 sec (~48.8566).
	extraData = append(extraData, rational(48, 1)...)
	extraData = append(extraData, rational(51, 1)...)
	extraData = append(extraData, rational(2376, 100)...) // extra+34 .. +58

	// GPS longitude: 2 deg 21 min 7.92 sec (~2.3522).
	extraData = append(extraData, rational(2, 1)...)
	extraData = append(extraData, rational(21, 1)...)
	extraData = append(extraData, rational(792, 100)...) // extra+58 .. +82

	return append(buf, extraData...)
}

func buildJPEG(tiff []byte) []byte {
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8}) // SOI

	segment := append([]byte("Exif\x00\x00"), tiff...)
	out.Write([]byte{0xFF, 0xE1})
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(segment)+2))
	out.Write(lenBuf[:])
	out.Write(segment)

	return out.Bytes()
}

func TestExtract_FullMetadata(t *testing.T) {
	jpeg := buildJPEG(buildTIFF())

	md, err := Extract(bytes.NewReader(jpeg))
	require.NoError(t, err)

	require.Equal(t, "Canon", md.CameraMake)
	require.Equal(t, 6, md.Orientation)
	require.InDelta(t, 2.8, md.Aperture, 0.01)
	require.Equal(t, 200, md.ISO)

	require.NotNil(t, md.CaptureTime)
	require.Equal(t, 2024, md.CaptureTime.Year())
	require.Equal(t, 10, md.CaptureTime.Hour())

	require.NotNil(t, md.Latitude)
	require.NotNil(t, md.Longitude)
	require.InDelta(t, 48.8566, *md.Latitude, 1e-3)
	require.InDelta(t, 2.3522, *md.Longitude, 1e-3)
}

func TestExtract_NotAJPEG(t *testing.T) {
	_, err := Extract(bytes.NewReader([]byte("not a jpeg")))
	require.Error(t, err)
}

func TestExtract_NoEXIFSegment(t *testing.T) {
	// SOI immediately followed by start-of-scan: no APP1 present.
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xDA, 0x00, 0x02}
	_, err := Extract(bytes.NewReader(jpeg))
	require.Error(t, err)
}

func TestExtract_SouthAndWestReferencesNegate(t *testing.T) {
	tiff := buildTIFF()

	// Flip the inline LatRef/LonRef value bytes from 'N'/'E' to 'S'/'W'.
	const (
		latRefValueOff = 104 + 2 + 8
		lonRefValueOff = 104 + 26 + 8
	)
	tiff[latRefValueOff] = 'S'
	tiff[lonRefValueOff] = 'W'

	jpeg := buildJPEG(tiff)
	md, err := Extract(bytes.NewReader(jpeg))
	require.NoError(t, err)

	require.NotNil(t, md.Latitude)
	require.NotNil(t, md.Longitude)
	require.Less(t, *md.Latitude, 0.0)
	require.Less(t, *md.Longitude, 0.0)
}
