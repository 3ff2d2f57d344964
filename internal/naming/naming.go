package naming

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"detection-bot/internal/core/types"
	"detection-bot/internal/core/utils"

	"github.com/google/uuid"
)

const TimestampLayout = "2006-01-02 15:04:05"

type Strategy string

const (
	TimestampStrategy Strategy = "timestamp"
	UuidStrategy      Strategy = "uuid"
)

// StagedImage is a photo that has been renamed on local disk and is ready to
// be uploaded. RemoteKey is empty until the image has been uploaded.
type StagedImage struct {
	LocalPath   string
	RemoteKey   string
	CaptureTime time.Time
	// Sequence is the collision suffix, 0 when no suffix was applied.
	Sequence int
}

func (s StagedImage) WithRemoteKey(key string) StagedImage {
	s.RemoteKey = key
	return s
}

// StageName returns the collision-safe file name for a photo captured at now.
// The name is the timestamp plus the original extension. When k existing
// names already start with the timestamp, " p<k+1>" is inserted before the
// extension.
func StageName(localPath string, existing []string, now time.Time) string {
	name, _ := stageName(localPath, existing, now)
	return name
}

func stageName(localPath string, existing []string, now time.Time) (string, int) {
	base := now.Format(TimestampLayout)
	ext := filepath.Ext(localPath)

	count := 0
	for _, name := range existing {
		if strings.HasPrefix(name, base) {
			count++
		}
	}

	if count > 0 {
		return fmt.Sprintf("%s p%d%s", base, count+1, ext), count + 1
	}
	return base + ext, 0
}

type Namer struct {
	Strategy Strategy
	Now      func() time.Time

	locks *utils.MutexMap
}

func NewNamer(strategy Strategy) (*Namer, error) {
	switch strategy {
	case "":
		strategy = TimestampStrategy
	case TimestampStrategy, UuidStrategy:
	default:
		return nil, fmt.Errorf("unknown naming strategy '%s'", strategy)
	}

	return &Namer{
		Strategy: strategy,
		Now:      time.Now,
		locks:    utils.NewMutexMap(1024),
	}, nil
}

// Stage renames the file at localPath in place. Listing the directory and
// renaming happen under a per-directory lock, so concurrent stages within one
// process cannot pick the same name.
func (n *Namer) Stage(localPath string) (StagedImage, error) {
	dir := filepath.Dir(localPath)
	now := n.Now().Truncate(time.Second)

	var staged StagedImage
	err := n.locks.WithLock(dir, func() error {
		name, sequence, err := n.nextName(localPath, dir, now)
		if err != nil {
			return err
		}

		target := filepath.Join(dir, name)
		if err := os.Rename(localPath, target); err != nil {
			return fmt.Errorf("error renaming %s to %s: %w: %w", localPath, target, types.ErrRenameFailure, err)
		}

		staged = StagedImage{LocalPath: target, CaptureTime: now, Sequence: sequence}
		return nil
	})
	if err != nil {
		return StagedImage{}, err
	}

	slog.Debug("staged image", "source", localPath, "staged", staged.LocalPath, "sequence", staged.Sequence)

	return staged, nil
}

func (n *Namer) nextName(localPath, dir string, now time.Time) (string, int, error) {
	if n.Strategy == UuidStrategy {
		return uuid.New().String() + filepath.Ext(localPath), 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("error listing %s: %w: %w", dir, types.ErrRenameFailure, err)
	}

	existing := make([]string, 0, len(entries))
	for _, entry := range entries {
		existing = append(existing, entry.Name())
	}

	name, sequence := stageName(localPath, existing, now)
	return name, sequence, nil
}
