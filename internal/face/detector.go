// Package face implements the Face detection stage (spec §4.2 stage 7):
// a black-box detector contract plus online centroid-based person
// clustering with bounded periodic full re-clustering.
//
// Interface shape grounded on internal/service/face_service.go's
// FaceService (SaveFaceResults, CreateFaceCluster, FindSimilarFaces,
// GetUnclusteredFaces); the detector itself is declared a black-box per
// spec §1, so the only implementation here is NoopDetector, which finds
// nothing; a real detector binding (e.g. an ONNX or native face model)
// would satisfy the same Detector contract.
package face

import "context"

// Detection is one face found in a decoded image.
type Detection struct {
	BoundingBox [4]float64 // x, y, w, h, normalized 0..1
	Embedding   []float32  // 512-dim
	Crop        []byte     // encoded cropped face thumbnail
}

// Detector is the black-box face-detection contract (spec §1).
type Detector interface {
	Detect(ctx context.Context, decodedImage []byte) ([]Detection, error)
}

// NoopDetector satisfies Detector without a real model binding, so the
// process entry point can wire the Faces stage before a concrete
// detector (ONNX, native library, remote service) is plugged in. It
// finds nothing and never fails.
type NoopDetector struct{}

func (NoopDetector) Detect(ctx context.Context, decodedImage []byte) ([]Detection, error) {
	return nil, nil
}
