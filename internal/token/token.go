// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines listscope token types and reserved words.
package token

// Token represents a listscope token type.
type Token int

const (
	EOF Token = iota
	DEFINE
	EXTERN
	IDENT
	LPAREN
	RPAREN
)

// Reserved words.
const (
	KeywordDefine = "define"
	KeywordExtern = "extern"
)

// Punctuation runes.
const (
	RuneLParen  = '('
	RuneRParen  = ')'
	RuneComment = ';'
)

// IsDelimiter returns true if the rune ends an identifier.
func IsDelimiter(r rune) bool {
	return r == RuneLParen || r == RuneRParen
}

// Lookup classifies an identifier run, mapping reserved words to their token.
func Lookup(word string) Token {
	switch word {
	case KeywordDefine:
		return DEFINE
	case KeywordExtern:
		return EXTERN
	}
	return IDENT
}

// String returns the string representation of a token.
func (t Token) String() string {
	switch t {
	case EOF:
		return "EOF"
	case DEFINE:
		return "DEFINE"
	case EXTERN:
		return "EXTERN"
	case IDENT:
		return "IDENT"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	}
	return "UNKNOWN"
}
