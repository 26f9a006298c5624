// Package exif extracts camera fields, capture timestamp, and GPS from
// a JPEG's EXIF header without a full pixel decode (spec §4.2 stage 2).
//
// No ecosystem EXIF library appears anywhere in the retrieved pack's
// go.mod files, so this hand-rolls a minimal TIFF/EXIF/GPS IFD walker
// over the JPEG APP1 segment, the way the teacher hand-rolls its own
// streaming metadata extractor in internal/utils/exif/extract.go.
package exif

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Metadata is everything the Exif/Location stages need.
type Metadata struct {
	CameraMake   string
	CameraModel  string
	Lens         string
	FocalLength  float64
	Aperture     float64
	ShutterSpeed string
	ISO          int
	Orientation  int
	CaptureTime  *time.Time
	Latitude     *float64
	Longitude    *float64
}

const (
	tagMake        = 0x010F
	tagModel       = 0x0110
	tagOrientation = 0x0112
	tagExifIFD     = 0x8769
	tagGPSIFD      = 0x8825
	tagDateTimeOrig = 0x9003
	tagFNumber     = 0x829D
	tagISO         = 0x8827
	tagShutter     = 0x829A
	tagFocalLength = 0x920A
	tagLensModel   = 0xA434

	gpsLat    = 0x0002
	gpsLatRef = 0x0001
	gpsLon    = 0x0004
	gpsLonRef = 0x0003
)

// Extract reads the JPEG APP1/EXIF segment from r and returns the
// decoded metadata. It stops as soon as it has consumed the EXIF
// segment — no pixel data is decoded.
func Extract(r io.Reader) (Metadata, error) {
	br := bufio.NewReader(r)

	var soi [2]byte
	if _, err := io.ReadFull(br, soi[:]); err != nil {
		return Metadata{}, fmt.Errorf("read SOI: %w", err)
	}
	if soi[0] != 0xFF || soi[1] != 0xD8 {
		return Metadata{}, fmt.Errorf("not a JPEG file")
	}

	for {
		marker, length, err := readMarker(br)
		if err != nil {
			if err == io.EOF {
				return Metadata{}, fmt.Errorf("no EXIF segment found")
			}
			return Metadata{}, err
		}

		// Start of scan: pixel data follows, no metadata beyond this point.
		if marker == 0xDA {
			return Metadata{}, fmt.Errorf("no EXIF segment found")
		}

		payload := make([]byte, length-2)
		if _, err := io.ReadFull(br, payload); err != nil {
			return Metadata{}, fmt.Errorf("read segment: %w", err)
		}

		if marker == 0xE1 && len(payload) > 6 && string(payload[:6]) == "Exif\x00\x00" {
			return parseTIFF(payload[6:])
		}
	}
}

func readMarker(br *bufio.Reader) (marker byte, length int, err error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		if b != 0xFF {
			continue
		}
		m, err := br.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		if m == 0x00 || m == 0xFF {
			continue
		}
		if m == 0xD8 || m == 0xD9 || (m >= 0xD0 && m <= 0xD7) {
			return m, 0, nil
		}
		var lenBytes [2]byte
		if _, err := io.ReadFull(br, lenBytes[:]); err != nil {
			return 0, 0, err
		}
		return m, int(binary.BigEndian.Uint16(lenBytes[:])), nil
	}
}

type tiffReader struct {
	data  []byte
	order binary.ByteOrder
}

func parseTIFF(data []byte) (Metadata, error) {
	if len(data) < 8 {
		return Metadata{}, fmt.Errorf("short TIFF header")
	}

	var order binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return Metadata{}, fmt.Errorf("bad TIFF byte order marker")
	}

	tr := tiffReader{data: data, order: order}
	ifd0Offset := order.Uint32(data[4:8])

	md := Metadata{Orientation: 1}
	entries, next := tr.readIFD(ifd0Offset)
	_ = next

	var exifOffset, gpsOffset uint32
	for _, e := range entries {
		switch e.tag {
		case tagMake:
			md.CameraMake = tr.asString(e)
		case tagModel:
			md.CameraModel = tr.asString(e)
		case tagOrientation:
			if v, ok := tr.asInt(e); ok {
				md.Orientation = v
			}
		case tagExifIFD:
			if v, ok := tr.asInt(e); ok {
				exifOffset = uint32(v)
			}
		case tagGPSIFD:
			if v, ok := tr.asInt(e); ok {
				gpsOffset = uint32(v)
			}
		}
	}

	if exifOffset > 0 {
		exifEntries, _ := tr.readIFD(exifOffset)
		for _, e := range exifEntries {
			switch e.tag {
			case tagDateTimeOrig:
				if t, err := time.Parse("2006:01:02 15:04:05", tr.asString(e)); err == nil {
					md.CaptureTime = &t
				}
			case tagFNumber:
				md.Aperture = tr.asRational(e)
			case tagISO:
				if v, ok := tr.asInt(e); ok {
					md.ISO = v
				}
			case tagShutter:
				md.ShutterSpeed = fmt.Sprintf("%.4f", tr.asRational(e))
			case tagFocalLength:
				md.FocalLength = tr.asRational(e)
			case tagLensModel:
				md.Lens = tr.asString(e)
			}
		}
	}

	if gpsOffset > 0 {
		gpsEntries, _ := tr.readIFD(gpsOffset)
		lat, latRef, lon, lonRef := 0.0, "", 0.0, ""
		for _, e := range gpsEntries {
			switch e.tag {
			case gpsLat:
				lat = tr.asDMS(e)
			case gpsLatRef:
				latRef = tr.asString(e)
			case gpsLon:
				lon = tr.asDMS(e)
			case gpsLonRef:
				lonRef = tr.asString(e)
			}
		}
		if lat != 0 || lon != 0 {
			if latRef == "S" {
				lat = -lat
			}
			if lonRef == "W" {
				lon = -lon
			}
			md.Latitude = &lat
			md.Longitude = &lon
		}
	}

	return md, nil
}

type ifdEntry struct {
	tag      uint16
	dataType uint16
	count    uint32
	valueOff uint32
	raw      []byte
}

func (tr tiffReader) readIFD(offset uint32) ([]ifdEntry, uint32) {
	if int(offset)+2 > len(tr.data) {
		return nil, 0
	}
	n := tr.order.Uint16(tr.data[offset : offset+2])
	entries := make([]ifdEntry, 0, n)

	pos := offset + 2
	for i := uint16(0); i < n; i++ {
		if int(pos)+12 > len(tr.data) {
			break
		}
		raw := tr.data[pos : pos+12]
		entries = append(entries, ifdEntry{
			tag:      tr.order.Uint16(raw[0:2]),
			dataType: tr.order.Uint16(raw[2:4]),
			count:    tr.order.Uint32(raw[4:8]),
			valueOff: tr.order.Uint32(raw[8:12]),
			raw:      raw[8:12],
		})
		pos += 12
	}

	var next uint32
	if int(pos)+4 <= len(tr.data) {
		next = tr.order.Uint32(tr.data[pos : pos+4])
	}
	return entries, next
}

func (tr tiffReader) valueBytes(e ifdEntry, size int) []byte {
	total := size * int(e.count)
	if total <= 4 {
		return e.raw[:total]
	}
	start := int(e.valueOff)
	if start+total > len(tr.data) || start < 0 {
		return nil
	}
	return tr.data[start : start+total]
}

func (tr tiffReader) asString(e ifdEntry) string {
	b := tr.valueBytes(e, 1)
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return string(b)
}

func (tr tiffReader) asInt(e ifdEntry) (int, bool) {
	switch e.dataType {
	case 3: // SHORT
		b := tr.valueBytes(e, 2)
		if len(b) < 2 {
			return 0, false
		}
		return int(tr.order.Uint16(b)), true
	case 4: // LONG
		b := tr.valueBytes(e, 4)
		if len(b) < 4 {
			return 0, false
		}
		return int(tr.order.Uint32(b)), true
	default:
		return 0, false
	}
}

func (tr tiffReader) asRational(e ifdEntry) float64 {
	b := tr.valueBytes(e, 8)
	if len(b) < 8 {
		return 0
	}
	num := tr.order.Uint32(b[0:4])
	den := tr.order.Uint32(b[4:8])
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// asDMS reads three rationals (degrees, minutes, seconds) and returns
// decimal degrees, used for GPS latitude/longitude tags.
func (tr tiffReader) asDMS(e ifdEntry) float64 {
	total := 24 * int(e.count) / 3
	_ = total
	start := int(e.valueOff)
	if start+24 > len(tr.data) {
		return 0
	}
	rat := func(off int) float64 {
		num := tr.order.Uint32(tr.data[start+off : start+off+4])
		den := tr.order.Uint32(tr.data[start+off+4 : start+off+8])
		if den == 0 {
			return 0
		}
		return float64(num) / float64(den)
	}
	deg := rat(0)
	min := rat(8)
	sec := rat(16)
	return deg + min/60 + sec/3600
}
