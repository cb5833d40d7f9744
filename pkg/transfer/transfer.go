// Package transfer moves or copies planned files into place.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/quidome/archivetools/pkg/plan"
)

var (
	// ErrDestinationExists is returned when attempting to write to an existing file
	ErrDestinationExists = errors.New("destination file already exists")
)

// Result contains the outcome of one operation.
type Result struct {
	Operation plan.Operation
	Success   bool
	Error     error

	// SidecarErrors holds failures for sidecars. A failed sidecar does not
	// fail its media file.
	SidecarErrors []error
}

// Options configures the transfer behavior.
type Options struct {
	// Copy keeps the source files. The default moves them.
	Copy bool

	// Overwrite allows overwriting existing files.
	// Default should be false for safety.
	Overwrite bool
}

// Execute performs the operations in order.
//
// It will:
//   - Create destination directories if they don't exist
//   - Never overwrite existing files (unless Overwrite is true)
//   - Move each media file, then its sidecars
//
// Execute stops before the next operation when ctx is canceled and returns
// the results gathered so far together with ctx.Err().
func Execute(ctx context.Context, operations []plan.Operation, opts Options) ([]Result, error) {
	results := make([]Result, 0, len(operations))

	for _, op := range operations {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := Result{Operation: op}
		if err := File(op.SourcePath, op.DestinationPath, opts); err != nil {
			result.Error = err
			results = append(results, result)
			continue
		}
		result.Success = true

		for _, sc := range op.Sidecars {
			if err := File(sc.SourcePath, sc.DestinationPath, opts); err != nil {
				result.SidecarErrors = append(result.SidecarErrors, fmt.Errorf("sidecar %s: %w", filepath.Base(sc.SourcePath), err))
			}
		}
		results = append(results, result)
	}

	return results, nil
}

// File moves or copies a single file from src to dst.
func File(src, dst string, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if opts.Copy {
		if err := copyFile(src, dst, opts.Overwrite); err != nil {
			return fmt.Errorf("copy file: %w", err)
		}
		return nil
	}
	if err := moveFile(src, dst, opts.Overwrite); err != nil {
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

func moveFile(src, dst string, allowOverwrite bool) error {
	if !allowOverwrite {
		if _, err := os.Lstat(dst); err == nil {
			return ErrDestinationExists
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat destination: %w", err)
		}
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	// Different filesystems: copy, then drop the source.
	if err := copyFile(src, dst, allowOverwrite); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// copyFile copies a single file from src to dst and carries over its
// modification time.
// If allowOverwrite is true, existing files will be overwritten.
func copyFile(src, dst string, allowOverwrite bool) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	// Get source file info for permissions
	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if !allowOverwrite {
		flags |= os.O_EXCL
	} else {
		flags |= os.O_TRUNC
	}

	dstFile, err := os.OpenFile(dst, flags, srcInfo.Mode().Perm())
	if err != nil {
		if os.IsExist(err) {
			return ErrDestinationExists
		}
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		// Only clean up a file we created.
		if !allowOverwrite {
			_ = os.Remove(dst)
		}
		return fmt.Errorf("copy content: %w", err)
	}

	// Ensure data is written to disk
	if err := dstFile.Sync(); err != nil {
		dstFile.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	mtime := srcInfo.ModTime()
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return fmt.Errorf("preserve times: %w", err)
	}
	return nil
}
