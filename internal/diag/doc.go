// Package diag defines the diagnostic model shared by the loader, the
// specializer and the interpreter.
//
// Diagnostic is the central record: a Severity, a stable Code (see codes.go),
// a short Message, a Primary span and optional Notes. Bundles ship no source
// text, so spans are byte ranges resolved to paths through source.FileSet.
//
// Phases emit through a Reporter, usually via ReportError / ReportWarning and
// the chained ReportBuilder. BagReporter collects into a Bag, which supports
// sorting and deduplication before the CLI renders it.
package diag
