package csmt

import "log/slog"

// Option configures a Tree at construction time. Configuration is plain
// constructor parameters, mirroring mpt.NewTree(h, s): no global registry,
// no reflection-based wiring.
type Option func(*Tree)

// WithLogger sets the *slog.Logger a Tree uses for debug-level diagnostics,
// in particular proof-verification rejection reasons. The default is
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(t *Tree) { t.log = log }
}

// WithMetrics attaches Prometheus instrumentation to a Tree. Passing nil (or
// not calling WithMetrics at all) leaves instrumentation disabled.
func WithMetrics(m *Metrics) Option {
	return func(t *Tree) { t.metrics = m }
}

// WithRootBranch seeds a new Tree with a previously saved RootBranch, for
// reopening a store whose contents were written by an earlier Tree over the
// same key space. It does not validate that b's children are reachable in
// the NodeStore the Tree will be used with; passing a RootBranch from a
// different store produces a Tree with an inconsistent root.
func WithRootBranch(b BranchNode) Option {
	return func(t *Tree) {
		t.rootBranch = b
		t.root = merge(t.hasher, b.Left, b.Right)
	}
}
