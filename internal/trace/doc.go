// Package trace records what the compiler is doing while it does it.
//
// Tracing is switched on from the command line:
//
//	idlc build --trace=- --trace-level=phase
//
// # Tracers
//
//   - Nop: zero overhead when tracing is off
//   - StreamTracer: writes every event to a file or stderr
//   - RingTracer: keeps the last N events for a dump after a failure
//   - LogTracer: forwards events to a zerolog logger
//   - MultiTracer: fans out to several of the above
//
// # Levels and scopes
//
// A level admits scopes up to a bound: LevelPhase shows driver and pass
// (parse, lower, resolve, emit) spans, LevelDetail adds per-module work and
// LevelDebug adds single query executions of the incremental engine.
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "resolve", 0)
//	defer span.End("")
package trace
