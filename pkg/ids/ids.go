// Package ids provides typed entity identifiers and the path/basename
// validation rules shared by the repository and the service layer.
//
// Every entity gets its own string type so that an asset ID can never be
// passed where a version ID is expected. IDs are only flattened back to
// plain strings at the HTTP boundary.
package ids

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Typed identifiers. Opaque outside this package except for String().
type (
	FolderID  string
	AssetID   string
	VersionID string
	IntentID  string
	ChangeID  string
)

func (id FolderID) String() string  { return string(id) }
func (id AssetID) String() string   { return string(id) }
func (id VersionID) String() string { return string(id) }
func (id IntentID) String() string  { return string(id) }
func (id ChangeID) String() string  { return string(id) }

// NewFolderID returns a new unique folder identifier.
func NewFolderID() FolderID { return FolderID("fld_" + uuid.NewString()) }

// NewAssetID returns a new unique asset identifier.
func NewAssetID() AssetID { return AssetID("ast_" + uuid.NewString()) }

// NewVersionID returns a new unique version identifier.
func NewVersionID() VersionID { return VersionID("ver_" + uuid.NewString()) }

// NewIntentID returns a new unique upload intent identifier.
func NewIntentID() IntentID { return IntentID("int_" + uuid.NewString()) }

// changeSeq breaks ties between changelog IDs minted in the same nanosecond
// so that IDs from one writer sort in creation order.
var changeSeq atomic.Uint64

// NewChangeID returns a new changelog entry identifier. The fixed-width
// timestamp prefix makes IDs from a single writer lexicographically ordered
// by creation, which keeps same-millisecond entries of one transaction in
// append order under the compound (createdAt, id) cursor.
func NewChangeID() ChangeID {
	return ChangeID(fmt.Sprintf("chg_%016x%06x_%s",
		uint64(time.Now().UnixNano()), changeSeq.Add(1)&0xffffff, uuid.NewString()[:8]))
}

// NewStorageID returns a new opaque handle for the local blob store.
func NewStorageID() string { return "blob_" + uuid.NewString() }

// NewUploadToken returns a one-time token embedded in local upload URLs.
func NewUploadToken() string { return "upl_" + uuid.NewString() }

// MaxBasenameLen bounds the final path segment of an asset.
const MaxBasenameLen = 255

var (
	// ErrInvalidPath reports a folder path that cannot be normalized.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidBasename reports an empty basename or one containing '/' or NUL.
	ErrInvalidBasename = errors.New("invalid basename")
	// ErrBasenameTooLong reports a basename longer than MaxBasenameLen bytes.
	ErrBasenameTooLong = errors.New("basename too long")
)

// NormalizePath canonicalizes a folder path: slashes collapsed, leading and
// trailing slashes stripped. The root folder is the empty string. Segments
// must be non-empty and free of NUL; "." and ".." are rejected.
func NormalizePath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: contains NUL", ErrInvalidPath)
	}
	var segs []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q segment", ErrInvalidPath, seg)
		}
		segs = append(segs, seg)
	}
	return strings.Join(segs, "/"), nil
}

// SplitPath returns the parent path and the final segment of a normalized
// path. For a top-level folder the parent is "".
func SplitPath(path string) (parent, name string) {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

// JoinPath appends a name to a parent path. The root parent is "".
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Ancestors lists every ancestor of a normalized path, outermost first,
// excluding the path itself. Ancestors("a/b/c") is ["a", "a/b"].
func Ancestors(path string) []string {
	var out []string
	for i, r := range path {
		if r == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}

// ValidateBasename enforces the basename rules: non-empty, no '/', no NUL,
// at most MaxBasenameLen bytes. The same rules apply to folder names.
func ValidateBasename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidBasename)
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: contains '/'", ErrInvalidBasename)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: contains NUL", ErrInvalidBasename)
	}
	if len(name) > MaxBasenameLen {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrBasenameTooLong, len(name), MaxBasenameLen)
	}
	return nil
}
