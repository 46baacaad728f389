// Package highlight renders source code as class-annotated HTML.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"slidepress/internal/errs"
)

// CSSClass is the class of the div wrapping highlighted code.
const CSSClass = "code_highlight"

// DefaultStyle is the chroma style used for the generated stylesheet.
const DefaultStyle = "friendly"

func formatter() *html.Formatter {
	return html.New(html.WithClasses(true), html.TabWidth(4))
}

// Lexer returns the lexer for lang. An empty lang selects plain text.
func Lexer(lang string) (chroma.Lexer, error) {
	if lang == "" {
		return lexers.Fallback, nil
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return nil, errs.Newf(errs.KindLexerMissing, "no syntax highlighter for language %q", lang)
	}
	return chroma.Coalesce(lexer), nil
}

// Code highlights code and returns an HTML fragment wrapped in a div of
// class CSSClass.
func Code(code, lang string) (string, error) {
	lexer, err := Lexer(lang)
	if err != nil {
		return "", err
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", errs.Wrap(errs.KindLexerMissing, err, "failed to tokenize %s code", lang)
	}

	var b strings.Builder
	b.WriteString(`<div class="` + CSSClass + `">`)
	if err := formatter().Format(&b, styles.Get(DefaultStyle), iterator); err != nil {
		return "", err
	}
	b.WriteString(`</div>`)
	return b.String(), nil
}

// CSS returns the stylesheet for the classes emitted by Code. An unknown
// style name falls back to chroma's default.
func CSS(style string) (string, error) {
	if style == "" {
		style = DefaultStyle
	}
	var b strings.Builder
	if err := formatter().WriteCSS(&b, styles.Get(style)); err != nil {
		return "", err
	}
	return b.String(), nil
}
