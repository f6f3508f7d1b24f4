// Package log provides the scan engine's hierarchical logger: every
// operation in the pipeline takes an optional parent Node and returns a
// child Node, matching spec.md §6's Logger collaborator contract ("every
// operation takes an optional parent log node and returns a child
// node. No logging affects semantics.").
//
// Built on log/slog plus github.com/veqryn/slog-context for carrying a
// Node's logger in a context.Context, grounded on the teacher pack's own use of slog-context in
// cli/internal/flags/log, bindings/go/oci/internal/lister, and
// bindings/go/oci/store_descriptor.go.
package log

import (
	"context"
	"log/slog"

	slogcontext "github.com/veqryn/slog-context"
)

// Node is one node in the scan's log tree. Child nodes are indented
// relative to their parent when rendered as text, matching the
// indentation behavior of ClassGraph's own LogNode.
type Node struct {
	logger *slog.Logger
	depth  int
}

// Root creates the top-level Node from a base *slog.Logger, or a
// discard logger if base is nil.
func Root(base *slog.Logger) *Node {
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}
	return &Node{logger: base, depth: 0}
}

// Child returns a new Node nested one level under n, carrying msg as
// its own log line immediately. A nil receiver is treated as a
// depth-zero root with a discard logger, so call sites that did not
// receive a log Node can still call Child without special-casing nil.
func (n *Node) Child(msg string, args ...any) *Node {
	if n == nil {
		n = Root(nil)
	}
	child := &Node{logger: n.logger, depth: n.depth + 1}
	child.logger.Debug(indent(child.depth, msg), args...)
	return child
}

// Info logs msg at info level on this node.
func (n *Node) Info(msg string, args ...any) {
	if n == nil {
		return
	}
	n.logger.Info(indent(n.depth, msg), args...)
}

// Warn logs msg at warn level on this node.
func (n *Node) Warn(msg string, args ...any) {
	if n == nil {
		return
	}
	n.logger.Warn(indent(n.depth, msg), args...)
}

// Error logs err alongside msg at error level on this node.
func (n *Node) Error(msg string, err error, args ...any) {
	if n == nil {
		return
	}
	n.logger.Error(indent(n.depth, msg), append(args, "error", err)...)
}

func indent(depth int, msg string) string {
	if depth == 0 {
		return msg
	}
	prefix := ""
	for i := 0; i < depth; i++ {
		prefix += "  "
	}
	return prefix + msg
}

// WithContext attaches n's logger to ctx using slog-context, so
// downstream calls that only have access to a context.Context (for
// example inside an archive/zip or filesystem callback) can still log
// consistently via ContextLogger.
func WithContext(ctx context.Context, n *Node) context.Context {
	if n == nil {
		return ctx
	}
	return slogcontext.NewCtx(ctx, n.logger)
}

// ContextLogger retrieves the *slog.Logger attached to ctx via
// WithContext, falling back to slog.Default() if none was attached.
func ContextLogger(ctx context.Context) *slog.Logger {
	return slogcontext.FromCtx(ctx)
}
