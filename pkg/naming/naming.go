package naming

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"redgrab/pkg/errors"
	"redgrab/pkg/resource"
)

// Known substitution tokens. A scheme must contain at least one of them
// to produce distinct names.
var knownTokens = []string{
	"{POSTID}", "{TITLE}", "{SUBREDDIT}", "{REDDITOR}", "{FLAIR}", "{UPVOTES}", "{DATE}",
}

// maxFileNameLength caps the formatted name (without directory) so deep
// schemes with long titles stay within filesystem limits.
const maxFileNameLength = 200

// unsafeChars are scrubbed from substituted values.
var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", "\x00", "_",
)

// Formatter computes destination paths from a post's metadata using
// format-string substitution.
type Formatter struct {
	fileScheme   string
	folderScheme string
}

// NewFormatter validates the schemes and returns a Formatter. The folder
// scheme may be empty (flat output); the file scheme must contain at
// least one known token.
func NewFormatter(fileScheme, folderScheme string) (*Formatter, error) {
	if !containsToken(fileScheme) {
		return nil, errors.Newf(errors.KindUsage, "file scheme %q contains no known token", fileScheme)
	}
	if folderScheme != "" && !containsToken(folderScheme) {
		return nil, errors.Newf(errors.KindUsage, "folder scheme %q contains no known token", folderScheme)
	}
	return &Formatter{fileScheme: fileScheme, folderScheme: folderScheme}, nil
}

func containsToken(scheme string) bool {
	for _, tok := range knownTokens {
		if strings.Contains(scheme, tok) {
			return true
		}
	}
	return false
}

// FormatPath computes the destination path for a resource under root.
// index 0 means the post produced a single resource; a positive index is
// appended as a suffix before the extension for multi-resource posts.
// An empty resource extension is a hard error, never a default.
func (f *Formatter) FormatPath(root string, r *resource.Resource, index int) (string, error) {
	if r.Extension == "" {
		return "", errors.ForURL(errors.KindUsage, r.URL, "resource has no file extension")
	}

	name := f.substitute(f.fileScheme, r)
	if index > 0 {
		name += "_" + strconv.Itoa(index)
	}
	name = truncate(name, maxFileNameLength-len(r.Extension)) + r.Extension

	dir := root
	if f.folderScheme != "" {
		dir = filepath.Join(root, f.substitute(f.folderScheme, r))
	}
	return filepath.Join(dir, name), nil
}

// substitute replaces every known token with the post's metadata,
// scrubbing characters the filesystem cannot take.
func (f *Formatter) substitute(scheme string, r *resource.Resource) string {
	post := r.Post
	replacer := strings.NewReplacer(
		"{POSTID}", clean(post.ID),
		"{TITLE}", clean(post.Title),
		"{SUBREDDIT}", clean(post.Subreddit),
		"{REDDITOR}", clean(post.AuthorName()),
		"{FLAIR}", clean(post.Flair),
		"{UPVOTES}", strconv.Itoa(post.Score),
		"{DATE}", post.Created().UTC().Format("2006-01-02"),
	)
	return replacer.Replace(scheme)
}

func clean(s string) string {
	return strings.TrimSpace(unsafeChars.Replace(s))
}

// truncate shortens s to at most n bytes without splitting a multi-byte
// rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// Describe returns a human-readable summary of the schemes, used in logs.
func (f *Formatter) Describe() string {
	if f.folderScheme == "" {
		return fmt.Sprintf("file=%s", f.fileScheme)
	}
	return fmt.Sprintf("folder=%s file=%s", f.folderScheme, f.fileScheme)
}
