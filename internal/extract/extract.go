// Package extract turns uploaded bytes into page texts.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

const (
	ExtText     = ".txt"
	ExtMarkdown = ".md"
	ExtPDF      = ".pdf"
)

// Ext returns the lower-cased extension of filename.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func Supported(filename string) bool {
	switch Ext(filename) {
	case ExtText, ExtMarkdown, ExtPDF:
		return true
	}
	return false
}

// Pages returns the text of each page. Text and markdown files are a single page.
func Pages(filename string, data []byte) ([]string, error) {
	switch Ext(filename) {
	case ExtPDF:
		return pdfPages(data)
	case ExtMarkdown:
		return []string{markdownText(data)}, nil
	case ExtText:
		return []string{plainText(data)}, nil
	}
	return nil, fmt.Errorf("%s: %w", filename, appErr.ErrUnsupportedFormat)
}

func plainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
