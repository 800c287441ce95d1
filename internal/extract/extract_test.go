package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

func TestSupported(t *testing.T) {
	for _, name := range []string{"a.txt", "b.MD", "c.Pdf"} {
		require.True(t, Supported(name), name)
	}
	for _, name := range []string{"a.docx", "noext", "x.txt.exe"} {
		require.False(t, Supported(name), name)
	}
}

func TestPagesText(t *testing.T) {
	pages, err := Pages("a.txt", []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, []string{"hello world"}, pages)
}

func TestPagesMarkdownStripsMarkup(t *testing.T) {
	src := "# Title\n\nSome **bold** text.\n\n```\ncode line\n```\n"
	pages, err := Pages("a.md", []byte(src))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Contains(t, pages[0], "Title")
	require.Contains(t, pages[0], "Some bold text.")
	require.Contains(t, pages[0], "code line")
	require.NotContains(t, pages[0], "**")
	require.NotContains(t, pages[0], "#")
}

func TestPagesUnsupported(t *testing.T) {
	_, err := Pages("a.docx", []byte("x"))
	require.ErrorIs(t, err, appErr.ErrUnsupportedFormat)
}

func TestPagesBrokenPDF(t *testing.T) {
	_, err := Pages("a.pdf", []byte("not a pdf"))
	require.Error(t, err)
}
