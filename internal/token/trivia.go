package token

import (
	"strings"

	"idlc/internal/source"
)

type TriviaKind uint8

const (
	TriviaSpace TriviaKind = iota
	TriviaNewline
	TriviaLineComment
	TriviaBlockComment
	TriviaDocLine
	TriviaDocBlock
)

type Trivia struct {
	Kind TriviaKind
	Span source.Span
	Text string
}

func (t Trivia) IsComment() bool {
	return t.Kind >= TriviaLineComment
}

// DocComment extracts the comment block that directly precedes a token.
// Only the trailing run of comments is used; a blank line ends the run.
// Comment markers are stripped and lines are joined with '\n'.
func DocComment(leading []Trivia) string {
	end := len(leading)
	// пропускаем отступ перед токеном и один перевод строки после комментария
	for end > 0 && leading[end-1].Kind == TriviaSpace {
		end--
	}
	if end > 0 && leading[end-1].Kind == TriviaNewline {
		if strings.Count(leading[end-1].Text, "\n") > 1 {
			return ""
		}
		end--
	}
	start := end
	for start > 0 {
		tr := leading[start-1]
		if tr.IsComment() || tr.Kind == TriviaSpace {
			start--
			continue
		}
		if tr.Kind == TriviaNewline && strings.Count(tr.Text, "\n") == 1 {
			start--
			continue
		}
		break
	}

	run := leading[start:end]
	// явные doc-комментарии (/** */, ///) вытесняют обычные
	docOnly := false
	for _, tr := range run {
		if tr.Kind == TriviaDocLine || tr.Kind == TriviaDocBlock {
			docOnly = true
			break
		}
	}
	var lines []string
	for _, tr := range run {
		if !tr.IsComment() {
			continue
		}
		if docOnly && tr.Kind != TriviaDocLine && tr.Kind != TriviaDocBlock {
			continue
		}
		lines = append(lines, commentLines(tr)...)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func commentLines(tr Trivia) []string {
	text := tr.Text
	switch tr.Kind {
	case TriviaDocLine:
		return []string{strings.TrimSpace(strings.TrimPrefix(text, "///"))}
	case TriviaLineComment:
		if strings.HasPrefix(text, "#") {
			return []string{strings.TrimSpace(strings.TrimPrefix(text, "#"))}
		}
		return []string{strings.TrimSpace(strings.TrimPrefix(text, "//"))}
	case TriviaDocBlock, TriviaBlockComment:
		text = strings.TrimPrefix(text, "/**")
		text = strings.TrimPrefix(text, "/*")
		text = strings.TrimSuffix(text, "*/")
		raw := strings.Split(text, "\n")
		out := make([]string, 0, len(raw))
		for _, l := range raw {
			l = strings.TrimSpace(l)
			l = strings.TrimSpace(strings.TrimPrefix(l, "*"))
			out = append(out, l)
		}
		return out
	}
	return nil
}
