package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"math"

	"github.com/h2non/bimg"

	"photoindex/internal/model"
)

// ComputeHashes produces the three 64-bit fingerprints for raw image
// bytes (spec §3 PerceptualHash, §4.2 stage 6): aHash and dHash over an
// 8x8 grayscale reduction, pHash over a DCT of a 32x32 reduction.
func ComputeHashes(raw []byte) (model.PerceptualHash, error) {
	small, err := bimg.NewImage(raw).Process(bimg.Options{
		Width: 32, Height: 32, Force: true,
		Type:           bimg.PNG,
		Interpretation: bimg.InterpretationBW,
	})
	if err != nil {
		return model.PerceptualHash{}, fmt.Errorf("%w: %v", errPermanentDecode, err)
	}

	img, _, err := image.Decode(bytes.NewReader(small))
	if err != nil {
		return model.PerceptualHash{}, fmt.Errorf("%w: decode reduced copy: %v", errPermanentDecode, err)
	}

	gray := grayscaleMatrix(img, 32, 32)

	return model.PerceptualHash{
		AHash: averageHash(grayscaleMatrix(img, 8, 8)),
		DHash: differenceHash(grayscaleMatrix(img, 9, 8)),
		PHash: dctHash(gray),
	}, nil
}

// grayscaleMatrix samples img on a w x h grid of luminance values.
func grayscaleMatrix(img image.Image, w, h int) [][]float64 {
	bounds := img.Bounds()
	m := make([][]float64, h)
	for y := 0; y < h; y++ {
		m[y] = make([]float64, w)
		sy := bounds.Min.Y + y*bounds.Dy()/h
		for x := 0; x < w; x++ {
			sx := bounds.Min.X + x*bounds.Dx()/w
			r, g, b, _ := img.At(sx, sy).RGBA()
			m[y][x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		}
	}
	return m
}

// averageHash sets bit i when pixel i is above the mean luminance,
// over the top-left 8x8 of the matrix.
func averageHash(m [][]float64) uint64 {
	var sum float64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sum += m[y][x]
		}
	}
	mean := sum / 64

	var hash uint64
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if m[y][x] >= mean {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}

// differenceHash sets bit i when pixel i is brighter than its right
// neighbor, over a 9x8 region reduced to 8x8 differences.
func differenceHash(m [][]float64) uint64 {
	var hash uint64
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			right := x + 1
			if right >= len(m[y]) {
				right = x
			}
			if m[y][x] > m[y][right] {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}

// dctHash computes the classic pHash: a 2D DCT-II over the full matrix,
// keeping the top-left 8x8 low-frequency coefficients (excluding DC),
// then thresholding against their median.
func dctHash(m [][]float64) uint64 {
	n := len(m)
	dct := dct2D(m, n)

	var coeffs []float64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x == 0 && y == 0 {
				continue
			}
			coeffs = append(coeffs, dct[y][x])
		}
	}
	median := medianOf(coeffs)

	var hash uint64
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x == 0 && y == 0 {
				continue
			}
			if dct[y][x] >= median {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}

func dct2D(m [][]float64, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}

	c := func(k int) float64 {
		if k == 0 {
			return 1 / math.Sqrt2
		}
		return 1
	}

	for u := 0; u < n; u++ {
		for v := 0; v < n; v++ {
			var sum float64
			for x := 0; x < n; x++ {
				for y := 0; y < n; y++ {
					sum += m[x][y] *
						math.Cos((2*float64(x)+1)*float64(u)*math.Pi/(2*float64(n))) *
						math.Cos((2*float64(y)+1)*float64(v)*math.Pi/(2*float64(n)))
				}
			}
			out[u][v] = 0.25 * c(u) * c(v) * sum
		}
	}
	return out
}

func medianOf(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)/2]
}

// HammingDistance64 counts differing bits between two 64-bit hashes
// (spec §4.2 stage 6). The duplicate union-find uses its own
// duplicate.Hamming64.
func HammingDistance64(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}
