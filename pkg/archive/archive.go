package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"redgrab/pkg/errors"
	"redgrab/pkg/logger"
	"redgrab/pkg/models"
)

// Entry is the serialized record archive mode writes per post.
type Entry struct {
	Post     *models.Post     `json:"post" yaml:"post"`
	Comments []models.Comment `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// Writer serializes post records to disk, one file per post, named by
// post ID.
type Writer struct {
	root   string
	format string
	log    logger.Logger
}

// NewWriter creates a Writer for the given output root and format
// (json or yaml).
func NewWriter(root, format string, log logger.Logger) (*Writer, error) {
	format = strings.ToLower(format)
	switch format {
	case "json", "yaml":
	default:
		return nil, errors.Newf(errors.KindUsage, "unsupported archive format %q", format)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{root: root, format: format, log: log}, nil
}

// Write persists one entry as {POSTID}.{ext} under the root, atomically.
func (w *Writer) Write(e Entry) (string, error) {
	if e.Post == nil || e.Post.ID == "" {
		return "", errors.New(errors.KindUsage, "archive entry has no post ID")
	}

	data, err := w.marshal(e)
	if err != nil {
		return "", errors.Newf(errors.KindUsage, "failed to serialize post %s: %v", e.Post.ID, err)
	}

	if err := os.MkdirAll(w.root, 0755); err != nil {
		return "", errors.ForURL(errors.KindFilesystem, w.root, "failed to create archive directory: "+err.Error())
	}

	dest := filepath.Join(w.root, e.Post.ID+"."+w.format)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", errors.ForURL(errors.KindFilesystem, dest, "failed to write archive file: "+err.Error())
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", errors.ForURL(errors.KindFilesystem, dest, "failed to rename archive file: "+err.Error())
	}

	w.log.DebugWithFields("archived post", map[string]interface{}{
		"post_id": e.Post.ID,
		"path":    dest,
	})
	return dest, nil
}

func (w *Writer) marshal(e Entry) ([]byte, error) {
	if w.format == "yaml" {
		return yaml.Marshal(e)
	}
	return json.MarshalIndent(e, "", "  ")
}
