package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// lockWait bounds how long a download waits for another one writing the
// same destination name.
var lockWait = 30 * time.Second

// WriteArtifact writes the ordered payloads next to dest and returns the path
// it landed on. Bytes go to a part file under TempDirName first and are
// linked into place only once the total matches expected, so no file is left
// truncated. An existing file is never replaced: the artifact takes the next
// free "name-(n).ext" sibling instead. Payload order is taken as given.
func WriteArtifact(dest string, payloads [][]byte, expected int64) (string, int64, error) {
	logger := log.With().Str("op", "engine/writer").Str("dest", dest).Logger()
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return "", 0, stageErr(StageWrite, fmt.Errorf("destination %s is a directory", dest))
	}
	tempDir := filepath.Join(filepath.Dir(dest), TempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", 0, stageErr(StageWrite, fmt.Errorf("error creating temp directory: %w", err))
	}

	base := filepath.Base(dest)
	lock := flock.New(filepath.Join(tempDir, base+".lock"))
	if err := acquire(lock, tempDir); err != nil {
		return "", 0, stageErr(StageWrite, fmt.Errorf("%s is being written by another download: %w", dest, err))
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
		removeIfEmpty(tempDir)
	}()

	// An earlier holder may have removed the emptied temp dir on its way out.
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", 0, stageErr(StageWrite, fmt.Errorf("error creating temp directory: %w", err))
	}
	partPath, written, err := writePart(tempDir, base, payloads)
	if err != nil {
		if partPath != "" {
			os.Remove(partPath)
		}
		return "", 0, stageErr(StageWrite, err)
	}
	if written != expected {
		os.Remove(partPath)
		return "", 0, stageErr(StageWrite, fmt.Errorf("%w: wrote %d bytes, want %d", ErrLengthMismatch, written, expected))
	}
	final, err := finalize(partPath, dest)
	if err != nil {
		os.Remove(partPath)
		return "", 0, stageErr(StageWrite, fmt.Errorf("error finalizing output file: %w", err))
	}
	if final != dest {
		logger.Debug().Str("final", final).Msg("Destination taken, wrote to renamed file")
	}
	logger.Debug().Int64("bytes", written).Int("segments", len(payloads)).Msg("Artifact written")
	return final, written, nil
}

// acquire waits up to lockWait for lock. The temp dir is recreated when a
// previous holder removed it between our mkdir and the lock file open.
func acquire(lock *flock.Flock, tempDir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), lockWait)
	defer cancel()
	for ctx.Err() == nil {
		locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
		if locked {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := os.MkdirAll(tempDir, 0755); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// finalize moves partPath to dest, or to the next free sibling of dest when
// dest already exists.
func finalize(partPath, dest string) (string, error) {
	target := dest
	for {
		err := place(partPath, target)
		if err == nil {
			return target, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		target = RenewOutputPath(dest)
	}
}

// place moves partPath to target only if target does not exist yet.
func place(partPath, target string) error {
	err := os.Link(partPath, target)
	if err == nil {
		os.Remove(partPath)
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return err
	}
	// No hard links here: reserve the name first, then rename over it.
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	f.Close()
	return os.Rename(partPath, target)
}

// RenewOutputPath returns the first "name-(n).ext" sibling that does not exist.
func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	for index := 1; ; index++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func writePart(tempDir, base string, payloads [][]byte) (string, int64, error) {
	f, err := os.CreateTemp(tempDir, base+".*.part")
	if err != nil {
		return "", 0, fmt.Errorf("error creating part file: %w", err)
	}
	path := f.Name()
	var written int64
	for i, payload := range payloads {
		n, err := f.Write(payload)
		written += int64(n)
		if err != nil {
			f.Close()
			return path, written, fmt.Errorf("error writing segment %d: %w", i, err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return path, written, fmt.Errorf("error syncing part file: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, written, fmt.Errorf("error closing part file: %w", err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		return path, written, fmt.Errorf("error setting part file mode: %w", err)
	}
	return path, written, nil
}

func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
}
