// Package chunker splits document text into overlapping windows that break on
// word boundaries where possible.
package chunker

import (
	"fmt"
	"strings"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

// Piece is one chunk of a document. Start and End delimit the scanned window
// [Start, End) in runes; Text is that window with surrounding whitespace
// removed.
type Piece struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker splits text with a fixed window size and overlap.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker, or ErrInvalidChunking unless 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk size %d with overlap %d: %w", size, overlap, apperr.ErrInvalidChunking)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size is the maximum piece length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap is how many runes each window shares with the one before it.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into pieces of at most Size runes. A window that ends inside
// the text is shortened to its last space, if it has one past its start. Each
// following window begins Overlap runes before the previous end, and always
// after the previous start.
func (c *Chunker) Split(text string) []Piece {
	runes := []rune(text)
	n := len(runes)
	pieces := []Piece{}

	start := 0
	for start < n {
		end := start + c.size
		if end < n {
			for i := end - 1; i > start; i-- {
				if runes[i] == ' ' {
					end = i
					break
				}
			}
		} else {
			end = n
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, Piece{
				Index: len(pieces),
				Start: start,
				End:   end,
				Text:  piece,
			})
		}

		if end >= n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return pieces
}

// Split is a convenience for one-off calls with an explicit configuration.
func Split(text string, size, overlap int) ([]Piece, error) {
	c, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}
