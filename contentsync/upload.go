package contentsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/HughODwyer90/hugh.casa/retry"
)

// Status is the terminal outcome of one upload.
type Status int

const (
	StatusSucceeded Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result describes one upload call. Attempts is zero for skipped uploads.
type Result struct {
	Path     string
	Status   Status
	Attempts int
	Revision string
	Reason   string // why the upload was skipped
	Err      error
}

var binaryExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".ico":  true,
}

// ModeForPath picks binary mode for image extensions and text for everything else.
func ModeForPath(p string) Mode {
	if binaryExtensions[strings.ToLower(filepath.Ext(p))] {
		return ModeBinary
	}
	return ModeText
}

// Upload makes the object at p equal to content, creating or updating it.
// Failures are reported in the Result and never returned as errors, so a
// caller working through a batch can move on to the next item.
func (c *Client) Upload(ctx context.Context, p string, content []byte, mode Mode, message string) Result {
	if p == "" {
		return skipped(p, "no repository path")
	}
	if len(content) == 0 {
		return skipped(p, "no content")
	}
	if message == "" {
		message = DefaultCommitMessage(p)
	}

	var revision string
	attempts, err := retry.Do(ctx, c.policy, "upload "+p, func(ctx context.Context, attempt int) error {
		rev, err := c.ResolveRevision(ctx, p)
		switch {
		case errors.Is(err, ErrNotFound):
			rev = ""
		case err != nil:
			return classify(ctx, err)
		}
		revision, err = c.Put(ctx, Object{Path: p, Content: content, Revision: rev, CommitMessage: message}, mode)
		if err != nil {
			return classify(ctx, err)
		}
		return nil
	})
	if err != nil {
		glog.Errorf("upload %s failed after %d attempt(s), skipping: %s", p, attempts, err)
		return Result{Path: p, Status: StatusFailed, Attempts: attempts, Err: err}
	}
	glog.Infof("uploaded %s (%s, %d attempt(s))", p, mode, attempts)
	return Result{Path: p, Status: StatusSucceeded, Attempts: attempts, Revision: revision}
}

// UploadFile reads localPath from the client's filesystem and uploads it to
// remotePath. A missing local file is skipped, not failed.
func (c *Client) UploadFile(ctx context.Context, fs afero.Fs, localPath, remotePath, message string) Result {
	if remotePath == "" {
		return skipped(remotePath, "no repository path")
	}
	content, err := afero.ReadFile(fs, localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return skipped(remotePath, fmt.Sprintf("%s does not exist", localPath))
		}
		glog.Errorf("upload %s: unable to read %s: %s", remotePath, localPath, err)
		return Result{Path: remotePath, Status: StatusFailed, Err: fmt.Errorf("unable to read %s: %w", localPath, err)}
	}
	return c.Upload(ctx, remotePath, content, ModeForPath(localPath), message)
}

// Item is one entry of a batch. Content is used when LocalPath is empty.
type Item struct {
	LocalPath  string
	RemotePath string
	Content    []byte
	Mode       Mode
	Message    string
}

// UploadAll uploads items one after another, in order. Each upload, retries
// included, finishes before the next starts.
func (c *Client) UploadAll(ctx context.Context, fs afero.Fs, items []Item) []Result {
	results := make([]Result, 0, len(items))
	for _, it := range items {
		if it.LocalPath != "" {
			results = append(results, c.UploadFile(ctx, fs, it.LocalPath, it.RemotePath, it.Message))
			continue
		}
		results = append(results, c.Upload(ctx, it.RemotePath, it.Content, it.Mode, it.Message))
	}
	return results
}

func skipped(p, reason string) Result {
	glog.Infof("skipping upload of %q: %s", p, reason)
	return Result{Path: p, Status: StatusSkipped, Reason: reason}
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return retry.Permanent(err)
	}
	if kind, ok := KindOf(err); ok && !kind.Retryable() {
		return retry.Permanent(err)
	}
	return err
}
