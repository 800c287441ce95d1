package filestore

import (
	"fmt"
	"path"
	"strings"

	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

// Layout maps documents onto the tree: shared files under the static prefix,
// session files under <upload prefix>/<session>/.
type Layout struct {
	StaticPrefix string
	UploadPrefix string
}

func NewLayout(staticPrefix, uploadPrefix string) Layout {
	if staticPrefix == "" {
		staticPrefix = "static"
	}
	if uploadPrefix == "" {
		uploadPrefix = "uploads"
	}
	return Layout{StaticPrefix: strings.Trim(staticPrefix, "/"), UploadPrefix: strings.Trim(uploadPrefix, "/")}
}

// SafeName reduces a client supplied filename to a single path element.
func SafeName(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("invalid filename: %w", appErr.ErrInvalid)
	}
	return name, nil
}

func validSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, "/\\") {
		return fmt.Errorf("invalid path segment %q: %w", s, appErr.ErrInvalid)
	}
	return nil
}

func (l Layout) StaticKey(name string) (string, error) {
	name, err := SafeName(name)
	if err != nil {
		return "", err
	}
	return l.StaticPrefix + "/" + name, nil
}

func (l Layout) SessionPrefix(sessionID string) (string, error) {
	if err := validSegment(sessionID); err != nil {
		return "", err
	}
	return l.UploadPrefix + "/" + sessionID, nil
}

func (l Layout) UploadKey(sessionID, name string) (string, error) {
	prefix, err := l.SessionPrefix(sessionID)
	if err != nil {
		return "", err
	}
	name, err = SafeName(name)
	if err != nil {
		return "", err
	}
	return prefix + "/" + name, nil
}

// SessionOf returns the session folder a key under the upload prefix belongs to.
func (l Layout) SessionOf(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, l.UploadPrefix+"/")
	if !ok {
		return "", false
	}
	session, _, ok := strings.Cut(rest, "/")
	if !ok || session == "" {
		return "", false
	}
	return session, true
}
