// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner provides a streaming lexer for listscope source.
package scanner

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/yotto3s/listscope/internal/token"
)

// Scanner tokenizes listscope input rune-by-rune.
type Scanner struct {
	reader *bufio.Reader
	buf    strings.Builder
	peeked *Item
	line   int // Current line number (1-based)
}

// Item represents a scanned token with its value.
type Item struct {
	Token token.Token
	Value string
	Line  int // Line number where this token started
}

// New creates a new Scanner from an io.Reader.
func New(r io.Reader) *Scanner {
	return &Scanner{
		reader: bufio.NewReader(r),
		line:   1,
	}
}

// NewFromString creates a new Scanner from a string.
func NewFromString(s string) *Scanner {
	return New(strings.NewReader(s))
}

// Line returns the current line number (1-based).
func (s *Scanner) Line() int {
	return s.line
}

// Peek returns the next item without consuming it.
func (s *Scanner) Peek() (*Item, error) {
	if s.peeked != nil {
		return s.peeked, nil
	}
	item, err := s.Next()
	if err != nil {
		return nil, err
	}
	s.peeked = item
	return item, nil
}

// Next returns the next token from the input.
func (s *Scanner) Next() (*Item, error) {
	if s.peeked != nil {
		item := s.peeked
		s.peeked = nil
		return item, nil
	}

	if err := s.skipSpaceAndComments(); err != nil {
		return nil, err
	}

	s.buf.Reset()
	startLine := s.line

	for {
		r, _, err := s.reader.ReadRune()
		if err == io.EOF {
			if s.buf.Len() > 0 {
				return s.word(startLine), nil
			}
			return &Item{Token: token.EOF, Line: s.line}, nil
		}
		if err != nil {
			return nil, err
		}

		if unicode.IsSpace(r) || token.IsDelimiter(r) {
			if s.buf.Len() > 0 {
				// Leave the delimiter for the next call
				s.reader.UnreadRune()
				return s.word(startLine), nil
			}
			if r == token.RuneLParen {
				return &Item{Token: token.LPAREN, Value: "(", Line: s.line}, nil
			}
			return &Item{Token: token.RPAREN, Value: ")", Line: s.line}, nil
		}

		s.buf.WriteRune(r)
	}
}

func (s *Scanner) word(line int) *Item {
	value := s.buf.String()
	return &Item{Token: token.Lookup(value), Value: value, Line: line}
}

// skipSpaceAndComments consumes whitespace and ';' comments up to the next
// significant rune.
func (s *Scanner) skipSpaceAndComments() error {
	for {
		r, _, err := s.reader.ReadRune()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if r == '\n' {
			s.line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}
		if r == token.RuneComment {
			if err := s.skipLine(); err != nil {
				return err
			}
			continue
		}
		s.reader.UnreadRune()
		return nil
	}
}

func (s *Scanner) skipLine() error {
	for {
		r, _, err := s.reader.ReadRune()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if r == '\n' {
			s.line++
			return nil
		}
	}
}
