// Package segment splits raw document text into ordered sentence units for
// ingestion. Segmentation is per document; units never span document
// boundaries.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Segmenter splits text on sentence-terminating punctuation.
type Segmenter struct {
	splitter *regexp.Regexp
}

func New() *Segmenter {
	return &Segmenter{
		splitter: regexp.MustCompile(`[^.!?]+[.!?]+`),
	}
}

// Segment returns the sentences of text in document order. Every returned
// unit is trimmed and non-empty; whitespace-only units are dropped. Text
// after the last sentence terminator is kept as a final unit. Input that is
// not valid UTF-8 fails with a decoding-tagged error.
func (s *Segmenter) Segment(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, goerr.New("text is not valid UTF-8", goerr.T(model.ErrTagDecoding))
	}

	matches := s.splitter.FindAllStringIndex(text, -1)
	var sentences []string
	last := 0
	for _, m := range matches {
		if unit := strings.TrimSpace(text[m[0]:m[1]]); unit != "" {
			sentences = append(sentences, unit)
		}
		last = m[1]
	}
	// Trailing fragment without terminal punctuation is still a unit.
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences, nil
}
