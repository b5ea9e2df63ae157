package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	pngconfig "github.com/justapithecus/pngdoctor/cli/config"
	"github.com/justapithecus/pngdoctor/lode"
)

// storageChoice holds resolved Lode storage configuration.
type storageChoice struct {
	dataset     string
	backend     string // "fs" or "s3"
	path        string // fs: directory, s3: bucket/prefix
	region      string
	endpoint    string
	s3PathStyle bool
}

// enabled reports whether any storage was requested.
func (sc storageChoice) enabled() bool {
	return sc.backend != "" || sc.path != ""
}

// s3Config builds the S3 backend config.
func (sc storageChoice) s3Config() lode.S3Config {
	bucket, prefix := lode.ParseS3Path(sc.path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       sc.region,
		Endpoint:     sc.endpoint,
		UsePathStyle: sc.s3PathStyle,
	}
}

// resolveStorage applies CLI > config > default precedence to the storage flags.
func resolveStorage(c *cli.Context, cfg *pngconfig.Config) storageChoice {
	sc := storageChoice{
		dataset:     resolveString(c, "storage-dataset", configVal(cfg, func(c *pngconfig.Config) string { return c.Storage.Dataset })),
		backend:     resolveString(c, "storage-backend", configVal(cfg, func(c *pngconfig.Config) string { return c.Storage.Backend })),
		path:        resolveString(c, "storage-path", configVal(cfg, func(c *pngconfig.Config) string { return c.Storage.Path })),
		region:      resolveString(c, "storage-region", configVal(cfg, func(c *pngconfig.Config) string { return c.Storage.Region })),
		endpoint:    resolveString(c, "storage-endpoint", configVal(cfg, func(c *pngconfig.Config) string { return c.Storage.Endpoint })),
		s3PathStyle: resolveBool(c, "storage-s3-path-style", configVal(cfg, func(c *pngconfig.Config) bool { return c.Storage.S3PathStyle })),
	}
	if sc.dataset == "" {
		sc.dataset = lode.DefaultDataset
	}
	return sc
}

// validateStorageConfig checks that a requested backend is usable.
func validateStorageConfig(sc storageChoice) error {
	if sc.backend == "" {
		return errors.New("--storage-backend is required when --storage-path is set (fs or s3)")
	}
	switch sc.backend {
	case "fs":
		if sc.path == "" {
			return errors.New("--storage-path required for fs backend (directory)")
		}
		info, err := os.Stat(sc.path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("--storage-path %q does not exist; create it first", sc.path)
			}
			return fmt.Errorf("--storage-path %q is not accessible: %w", sc.path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("--storage-path %q is not a directory", sc.path)
		}
		return nil
	case "s3":
		if sc.path == "" {
			return errors.New("--storage-path required for s3 backend (bucket or bucket/prefix)")
		}
		return nil
	default:
		return fmt.Errorf("invalid --storage-backend %q (must be fs or s3)", sc.backend)
	}
}

// buildStoragePath returns the URI of the source partition, reported in
// adapter events. Unknown backends get the bare partition path.
func buildStoragePath(sc storageChoice, dataset, source string) string {
	partition := fmt.Sprintf("datasets/%s/partitions/source=%s", dataset, source)

	switch sc.backend {
	case "fs":
		abs, err := filepath.Abs(sc.path)
		if err != nil {
			abs = sc.path
		}
		return "file://" + filepath.ToSlash(filepath.Join(abs, partition))
	case "s3":
		bucket, prefix := lode.ParseS3Path(sc.path)
		if prefix = strings.Trim(prefix, "/"); prefix != "" {
			return fmt.Sprintf("s3://%s/%s/%s", bucket, prefix, partition)
		}
		return fmt.Sprintf("s3://%s/%s", bucket, partition)
	default:
		return partition
	}
}

// buildLodeClient creates the write client for the chosen backend.
func buildLodeClient(ctx context.Context, sc storageChoice, cfg lode.Config) (*lode.LodeClient, error) {
	switch sc.backend {
	case "fs":
		return lode.NewLodeClient(cfg, sc.path)
	case "s3":
		return lode.NewLodeS3Client(ctx, cfg, sc.s3Config())
	default:
		return nil, fmt.Errorf("unsupported storage-backend: %s (must be fs or s3)", sc.backend)
	}
}

// buildReadDataset creates a Lode Dataset for reading.
func buildReadDataset(ctx context.Context, sc storageChoice) (lodelibrary.Dataset, error) {
	switch sc.backend {
	case "fs":
		return lode.NewReadDatasetFS(sc.dataset, sc.path)
	case "s3":
		return lode.NewReadDatasetS3(ctx, sc.dataset, sc.s3Config())
	default:
		return nil, fmt.Errorf("unsupported storage-backend: %s (must be fs or s3)", sc.backend)
	}
}

// readStorage resolves and validates storage for the read-only commands,
// which require both --storage-backend and --storage-path.
func readStorage(c *cli.Context) (storageChoice, error) {
	sc := resolveStorage(c, nil)
	if sc.backend == "" || sc.path == "" {
		return sc, errors.New("both --storage-backend and --storage-path are required for Lode reads")
	}
	return sc, validateStorageConfig(sc)
}
