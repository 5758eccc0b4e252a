// Package sharding bundles trajectory dumps into fixed-size tar shards.
package sharding

import (
	"archive/tar"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CreateTrajectoryShards packs every .npy file under inputDir into tar
// shards of at most shardSize files each, written to outputDir. Members
// keep their path relative to inputDir. It returns the shard paths.
func CreateTrajectoryShards(inputDir, outputDir string, shardSize int) ([]string, error) {
	if shardSize <= 0 {
		return nil, fmt.Errorf("shard size must be positive, got %d", shardSize)
	}

	var samples []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".npy") {
			samples = append(samples, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", inputDir, err)
	}
	sort.Strings(samples)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating shard directory: %w", err)
	}

	var shards []string
	numShards := (len(samples) + shardSize - 1) / shardSize
	for i := 0; i < numShards; i++ {
		start := i * shardSize
		end := min((i+1)*shardSize, len(samples))

		shardPath := filepath.Join(outputDir, fmt.Sprintf("trajectories_%05d.tar", i))
		if err := createShard(shardPath, inputDir, samples[start:end]); err != nil {
			return shards, fmt.Errorf("error creating shard %d: %w", i, err)
		}
		shards = append(shards, shardPath)
	}
	return shards, nil
}

// createShard creates a tar file containing the given samples
func createShard(shardPath, root string, samples []string) (err error) {
	tarFile, err := os.Create(shardPath)
	if err != nil {
		return fmt.Errorf("error creating tar file: %w", err)
	}
	defer func() {
		if cerr := tarFile.Close(); err == nil {
			err = cerr
		}
	}()

	tw := tar.NewWriter(tarFile)
	for _, sample := range samples {
		data, err := os.ReadFile(sample)
		if err != nil {
			return fmt.Errorf("error reading sample %s: %w", sample, err)
		}
		rel, err := filepath.Rel(root, sample)
		if err != nil {
			return fmt.Errorf("error getting relative path: %w", err)
		}

		header := &tar.Header{
			Name: filepath.ToSlash(rel),
			Mode: 0644,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("error writing tar header: %w", err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("error writing tar data: %w", err)
		}
	}
	return tw.Close()
}
