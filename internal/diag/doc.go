// Package diag defines the diagnostic model shared by every compiler phase.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: Info, Warning or Error. Only errors block code generation.
//   - Code: compact numeric identifier with a stable string form (codes.go).
//     Families are LEX1xxx (lexer), SYN2xxx (parsers), SEM3xxx (lowering and
//     resolution), IO4xxx (inputs), PRJ5xxx (project and driver), GEN6xxx
//     (code generation) and ICE9xxx (internal invariant violations).
//   - Message: short, actionable text.
//   - Primary: the source.Span the problem is attached to.
//   - Notes: secondary spans, e.g. the candidates of an ambiguous reference.
//   - Fixes: optional structured edits.
//
// # Emitting diagnostics
//
// Phases receive a Reporter and either call Report directly or go through
// ReportBuilder (ReportError / ReportWarning / ReportInfo) and chain WithNote
// before Emit. BagReporter collects into a Bag which supports sorting,
// deduplication and a size limit.
//
// Diagnostics are plain data: the query engine fingerprints and caches them
// together with the results they belong to, so new fields must stay
// serialisable.
package diag
