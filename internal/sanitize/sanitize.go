// Package sanitize masks profanity in free-text fields such as server names.
package sanitize

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/beacon/assets"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const defaultWordList = "data/profanity.txt"

// Filter replaces every rune of a profane word with a placeholder.
// It is immutable after construction and safe for concurrent use.
type Filter struct {
	// words holds xxhash sums of normalized profane words.
	words       map[uint64]struct{}
	placeholder string
}

// New creates a filter from the embedded default list plus extra words.
func New(extra []string, placeholder string) (*Filter, error) {
	content, err := assets.ReadFile(defaultWordList)
	if err != nil {
		return nil, fmt.Errorf("read default word list: %w", err)
	}

	words, err := readWords(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse default word list: %w", err)
	}

	return NewWithWords(append(words, extra...), placeholder), nil
}

// NewWithWords creates a filter matching exactly the given words.
func NewWithWords(words []string, placeholder string) *Filter {
	if placeholder == "" {
		placeholder = "*"
	}

	f := &Filter{
		words:       make(map[uint64]struct{}, len(words)),
		placeholder: placeholder,
	}

	caser := cases.Fold()
	for _, w := range words {
		key := normalize(caser, strings.TrimSpace(w))
		if key == "" {
			continue
		}
		f.words[xxhash.Sum64String(key)] = struct{}{}
	}

	return f
}

// LoadWords reads a word list file: one word per line, '#' starts a comment.
func LoadWords(path string) ([]string, error) {
	file, err := os.Open(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return readWords(file)
}

// Len returns the number of distinct words in the filter.
func (f *Filter) Len() int {
	return len(f.words)
}

// IsProfane reports whether a single word is on the list.
func (f *Filter) IsProfane(word string) bool {
	_, found := f.words[xxhash.Sum64String(normalize(cases.Fold(), word))]
	return found
}

// Clean returns s with each profane word masked rune by rune.
// Everything between words is kept untouched.
func (f *Filter) Clean(s string) string {
	if s == "" || len(f.words) == 0 {
		return s
	}

	caser := cases.Fold()
	var b strings.Builder
	b.Grow(len(s))

	start := -1
	flush := func(end int) {
		word := s[start:end]
		if _, found := f.words[xxhash.Sum64String(normalize(caser, word))]; found {
			b.WriteString(strings.Repeat(f.placeholder, utf8.RuneCountInString(word)))
		} else {
			b.WriteString(word)
		}
		start = -1
	}

	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			flush(i)
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		flush(len(s))
	}

	return b.String()
}

func normalize(caser cases.Caser, word string) string {
	caser.Reset()
	return caser.String(norm.NFKC.String(word))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func readWords(r io.Reader) ([]string, error) {
	var words []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}

	return words, scanner.Err()
}
