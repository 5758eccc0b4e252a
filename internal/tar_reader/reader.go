// Package tar_reader unpacks recording archives into baseline clips.
package tar_reader

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/melody-ding/go-fpscheck/internal/types"
)

// ExtractClipsFromTar writes every .mp4 member of the archive at tarPath
// into destDir and returns one clip per member, sorted by key. Members
// without an fps token in their name get defaultFPS. macOS resource forks
// ("._" prefix) are ignored.
func ExtractClipsFromTar(tarPath, destDir string, defaultFPS int) ([]types.Clip, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIOUnavailable, err)
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating clip directory: %w", err)
	}

	tr := tar.NewReader(f)
	var clips []types.Clip
	seen := map[string]bool{}

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", tarPath, err)
		}

		base := filepath.Base(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(strings.ToLower(base), ".mp4") || strings.HasPrefix(base, "._") {
			continue
		}
		if seen[base] {
			return nil, fmt.Errorf("archive %s holds two clips named %s", tarPath, base)
		}
		seen[base] = true

		out := filepath.Join(destDir, base)
		if err := writeMember(out, tr); err != nil {
			return nil, err
		}
		clips = append(clips, types.NewClip(out, defaultFPS))
	}

	sort.Slice(clips, func(i, j int) bool { return clips[i].Key < clips[j].Key })
	return clips, nil
}

func writeMember(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("error extracting %s: %w", path, err)
	}
	return out.Close()
}
