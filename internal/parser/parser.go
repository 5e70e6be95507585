package parser

import (
	"slices"

	"fortio.org/safecast"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/lexer"
	"idlc/internal/source"
	"idlc/internal/token"
)

type Options struct {
	MaxErrors uint          // 0 — без ограничения
	Reporter  diag.Reporter // дополнительный получатель; Result.Diagnostics заполняется всегда
}

type Result struct {
	File        *ast.File
	Diagnostics []diag.Diagnostic
}

// Parser — состояние парсера на один файл
type Parser struct {
	lx       lexer.Stream
	file     *source.File
	dialect  token.Dialect
	out      diag.Reporter
	bag      *diag.Bag
	opts     Options
	errors   uint
	lastSpan source.Span // span последнего съеденного токена для лучшей диагностики
}

// Parse picks the dialect by file extension; unknown extensions parse as Thrift.
func Parse(file *source.File, opts Options) Result {
	if token.DialectFromPath(file.Path) == token.DialectProto {
		return ParseProto(file, opts)
	}
	return ParseThrift(file, opts)
}

func newParser(file *source.File, dialect token.Dialect, opts Options) *Parser {
	bag := diag.NewBag(0)
	var out diag.Reporter = diag.BagReporter{Bag: bag}
	if opts.Reporter != nil {
		out = diag.MultiReporter{out, opts.Reporter}
	}
	p := &Parser{
		file:    file,
		dialect: dialect,
		out:     out,
		bag:     bag,
		opts:    opts,
	}
	lxOpts := lexer.Options{Reporter: p}
	if dialect == token.DialectProto {
		p.lx = lexer.NewProto(file, lxOpts)
	} else {
		p.lx = lexer.New(file, lxOpts)
	}
	return p
}

func (p *Parser) newFile() *ast.File {
	end, err := safecast.Conv[uint32](len(p.file.Content))
	if err != nil {
		panic(err)
	}
	return &ast.File{
		Dialect: p.dialect,
		Path:    p.file.Path,
		Span:    source.Span{File: p.file.ID, Start: 0, End: end},
	}
}

func (p *Parser) result(f *ast.File) Result {
	p.bag.Sort()
	return Result{File: f, Diagnostics: p.bag.Items()}
}

// Report makes the parser the lexer's reporter so that lexical errors count
// towards MaxErrors.
func (p *Parser) Report(code diag.Code, sev diag.Severity, primary source.Span, msg string, notes []diag.Note, fixes []diag.Fix) {
	if sev == diag.SevError {
		p.errors++
		if p.opts.MaxErrors != 0 && p.errors > p.opts.MaxErrors {
			return
		}
	}
	p.out.Report(code, sev, primary, msg, notes, fixes)
}

// enough - достигли ли мы максимального количества ошибок
func (p *Parser) enough() bool {
	return p.opts.MaxErrors != 0 && p.errors >= p.opts.MaxErrors
}

func (p *Parser) peek() token.Token {
	return p.lx.Peek()
}

func (p *Parser) at(k token.Kind) bool {
	return p.lx.Peek().Kind == k
}

func (p *Parser) atAny(kinds ...token.Kind) bool {
	return slices.Contains(kinds, p.lx.Peek().Kind)
}

// eat съедает токен k, если он следующий.
func (p *Parser) eat(k token.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}
