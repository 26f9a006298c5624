package artifact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPath_IsDeterministicAndSharded(t *testing.T) {
	s := New(t.TempDir())

	p1 := s.Path("abcd1234", KindThumbnail, "600.webp")
	p2 := s.Path("abcd1234", KindThumbnail, "600.webp")
	require.Equal(t, p1, p2)
	require.Equal(t, filepath.Join("thumbs", "ab", "abcd1234_600.webp"), p1)
}

func TestPath_ShortIdentifierFallsBackToZeroShard(t *testing.T) {
	s := New(t.TempDir())
	p := s.Path("a", KindFace, "crop.jpg")
	require.Equal(t, filepath.Join("faces", "00", "a_crop.jpg"), p)
}

func TestWrite_OverwritesByteForByte(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	rel, err := s.Write("deadbeef", KindThumbnail, "200.webp", []byte("first"))
	require.NoError(t, err)

	got, err := s.Read(rel)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))

	rel2, err := s.Write("deadbeef", KindThumbnail, "200.webp", []byte("second-version"))
	require.NoError(t, err)
	require.Equal(t, rel, rel2)

	got2, err := s.Read(rel2)
	require.NoError(t, err)
	require.Equal(t, "second-version", string(got2))
}

func TestClear_RemovesEveryKindAndAllowsRewrite(t *testing.T) {
	s := New(t.TempDir())

	thumb, err := s.Write("deadbeef", KindThumbnail, "200.webp", []byte("t"))
	require.NoError(t, err)
	crop, err := s.Write("deadbeef", KindFace, "face0.jpg", []byte("f"))
	require.NoError(t, err)

	require.NoError(t, s.Clear())

	_, err = s.Read(thumb)
	require.Error(t, err)
	_, err = s.Read(crop)
	require.Error(t, err)

	// Directories are recreated lazily on the next write.
	rel, err := s.Write("deadbeef", KindThumbnail, "200.webp", []byte("again"))
	require.NoError(t, err)
	got, err := s.Read(rel)
	require.NoError(t, err)
	require.Equal(t, "again", string(got))
}

func TestRead_MissingArtifact(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Read(filepath.Join("thumbs", "ab", "nope_200.webp"))
	require.Error(t, err)
}

func TestAbs_JoinsRootAndRelative(t *testing.T) {
	s := New("/data")
	require.Equal(t, filepath.Join("/data", "thumbs", "ab", "x_200.webp"), s.Abs(filepath.Join("thumbs", "ab", "x_200.webp")))
}
