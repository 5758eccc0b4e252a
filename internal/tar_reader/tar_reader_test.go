package tar_reader

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

type member struct {
	name string
	body string
}

func createTestTar(t *testing.T, members []member) string {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		header := &tar.Header{
			Name:     m.name,
			Mode:     0600,
			Size:     int64(len(m.body)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(m.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "recordings.tar")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractClipsFromTar(t *testing.T) {
	tarPath := createTestTar(t, []member{
		{"session/subject_b_60fps.mp4", "video b"},
		{"session/._subject_b_60fps.mp4", "resource fork"},
		{"session/notes.txt", "not a clip"},
		{"subject_a.MP4", "video a"},
	})
	dest := filepath.Join(t.TempDir(), "clips")

	clips, err := ExtractClipsFromTar(tarPath, dest, 30)
	if err != nil {
		t.Fatalf("ExtractClipsFromTar() error = %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("ExtractClipsFromTar() got %d clips, want 2", len(clips))
	}

	if clips[0].Key != "subject_a" || clips[0].FPS != 30 {
		t.Errorf("first clip = %+v, want subject_a at the default 30 fps", clips[0])
	}
	if clips[1].Key != "subject_b_60fps" || clips[1].FPS != 60 {
		t.Errorf("second clip = %+v, want subject_b_60fps at 60 fps", clips[1])
	}

	data, err := os.ReadFile(clips[1].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "video b" {
		t.Errorf("extracted data = %q, want %q", data, "video b")
	}
}

func TestExtractClipsFromTarDuplicateNames(t *testing.T) {
	tarPath := createTestTar(t, []member{
		{"day1/walk_30fps.mp4", "a"},
		{"day2/walk_30fps.mp4", "b"},
	})
	if _, err := ExtractClipsFromTar(tarPath, t.TempDir(), 30); err == nil {
		t.Error("expected an error for clashing clip names")
	}
}

func TestExtractClipsFromTarMissing(t *testing.T) {
	_, err := ExtractClipsFromTar(filepath.Join(t.TempDir(), "nope.tar"), t.TempDir(), 30)
	if !errors.Is(err, types.ErrIOUnavailable) {
		t.Errorf("error = %v, want ErrIOUnavailable", err)
	}
}
