package netlist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrBackupMissing is returned by Revert when the backup file no longer
// exists.
var ErrBackupMissing = errors.New("backup file missing")

func timestamp() string {
	return time.Now().UTC().Format("20060102T150405Z")
}

// MakeBackup copies path to a timestamped sibling (<name>.bak.<UTC>) and
// returns the backup path.
func MakeBackup(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("cannot back up %s: %w", path, err)
	}
	backup := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.bak.%s", filepath.Base(path), timestamp()))
	if err := copyFile(path, backup); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backup, nil
}

// Apply atomically replaces the netlist at path with newText.
//
// If a file already exists at path it is first copied to a timestamped
// backup; the returned backup path is empty when there was no prior file.
// The new text is written to a temporary sibling and renamed over the
// target, so a concurrent reader sees either the old or the new content,
// never a partial write.
func Apply(path, newText string) (backup string, bytesWritten int, err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if _, statErr := os.Stat(path); statErr == nil {
		backup, err = MakeBackup(path)
		if err != nil {
			return "", 0, err
		}
	}

	tmp := fmt.Sprintf("%s.tmp.%s", path, timestamp())
	if err := os.WriteFile(tmp, []byte(newText), 0644); err != nil {
		return backup, 0, fmt.Errorf("failed to write temp netlist: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return backup, 0, fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return backup, len(newText), nil
}

// Revert restores the backup over path. The apply/revert round-trip is
// byte-exact when the backup was captured successfully.
func Revert(path, backup string) error {
	if _, err := os.Stat(backup); err != nil {
		return fmt.Errorf("%w: %s", ErrBackupMissing, backup)
	}
	if err := copyFile(backup, path); err != nil {
		return fmt.Errorf("failed to revert %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
