// Package trace records where monoc spends its time.
//
// Spans mark the driver run, each pass (load, specialize, refcount, emit),
// each input bundle and, at the debug level, each specialization. They are
// written as they happen (StreamTracer), kept in memory for a crash dump
// (RingTracer), or both.
//
//	monoc build --trace=trace.json --trace-level=detail app.mpk
//
// The tracer travels through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "specialize", 0)
//	defer span.End("")
//
// A .json output path selects the chrome://tracing format and .ndjson one
// JSON object per line; anything else is text.
package trace
