// Package source reads the raw explanation text a lesson is built from.
package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/lessonplay/internal/system"
)

// ErrEmptySource is returned when a source holds no text.
var ErrEmptySource = errors.New("source contains no text")

// Source is a paged text document.
type Source interface {
	PageCount() int
	PageText(index int) (string, error)
	Close() error
}

// Open picks the source implementation from the path: PDF files go through
// go-fitz, anything else is read as plain text or markdown.
func Open(path string) (Source, error) {
	if system.HasExtension(path, ".pdf") {
		return NewFitzPDFSource(path)
	}
	return NewTextSource(path)
}

// ReadAll concatenates every page, separating pages with a blank line so
// page breaks end paragraphs.
func ReadAll(src Source) (string, error) {
	pages := make([]string, 0, src.PageCount())
	for i := 0; i < src.PageCount(); i++ {
		text, err := src.PageText(i)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", ErrEmptySource
	}
	return strings.Join(pages, "\n\n"), nil
}

type FitzPDFSource struct {
	doc  *fitz.Document
	path string
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) PageText(index int) (string, error) {
	return f.doc.Text(index)
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
