// Command csmtdemo is a small command-line front end for a compacted sparse
// Merkle tree, backed by either an in-memory or a SQLite node store. It
// exists to exercise the csmt package end to end, not as a production tool.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/compactedmt/csmt"
	"github.com/example/compactedmt/csmt/csmtsqlite"
	"github.com/example/compactedmt/internal/logconsole"
)

var (
	dbFlag     = flag.String("db", "", "path to a SQLite database for the node store (defaults to an in-memory store)")
	hashFlag   = flag.String("hash", "blake3", "hash function to use: blake3 or turboshake128")
	listenFlag = flag.String("listen", "", "address to serve a live log console on, e.g. localhost:7381")
)

func main() {
	flag.Parse()

	var level = new(slog.LevelVar)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	console := logconsole.New("csmtdemo", nil)
	slog.SetDefault(slog.New(logconsole.MultiHandler(h, console)))

	hasher, err := parseHasher(*hashFlag)
	if err != nil {
		fatal("parsing -hash", "err", err)
	}

	store, persisted, closeStore, err := openStore(*dbFlag)
	if err != nil {
		fatal("opening node store", "err", err)
	}
	defer closeStore()

	ctx := context.Background()

	opts := []csmt.Option{
		csmt.WithLogger(slog.Default()),
	}
	reg := prometheus.NewRegistry()
	opts = append(opts, csmt.WithMetrics(csmt.NewMetrics(reg)))
	if persisted != nil {
		root, ok, err := persisted.LoadRoot(ctx)
		if err != nil {
			fatal("loading saved root", "err", err)
		}
		if ok {
			opts = append(opts, csmt.WithRootBranch(root))
		}
	}
	tree := csmt.NewTree(hasher, store, opts...)

	if *listenFlag != "" {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		go serveConsole(ctx, *listenFlag, console, reg)
	}

	if err := run(ctx, tree, flag.Args()); err != nil {
		fatal("running command", "err", err)
	}

	if persisted != nil {
		if err := persisted.SaveRoot(ctx, tree.RootBranch()); err != nil {
			fatal("saving root", "err", err)
		}
	}
}

func run(ctx context.Context, tree *csmt.Tree, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: csmtdemo [-db path] [-hash name] update|get|root <args>")
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "update":
		if len(rest) != 2 {
			return fmt.Errorf("usage: update <hex key> <hex value>")
		}
		key, err := parseKey(rest[0])
		if err != nil {
			return err
		}
		value, err := parseKey(rest[1])
		if err != nil {
			return err
		}
		if err := tree.Update(ctx, key, value); err != nil {
			return fmt.Errorf("updating %s: %w", rest[0], err)
		}
		fmt.Println(tree.Root())
		return nil

	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: get <hex key>")
		}
		key, err := parseKey(rest[0])
		if err != nil {
			return err
		}
		digest, err := tree.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rest[0], err)
		}
		fmt.Println(digest)
		return nil

	case "root":
		fmt.Println(tree.Root())
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseHasher(name string) (csmt.Hasher, error) {
	switch name {
	case "blake3":
		return csmt.BLAKE3(), nil
	case "turboshake128":
		return csmt.TurboShake128(), nil
	default:
		return nil, fmt.Errorf("unknown hash function %q", name)
	}
}

func parseKey(s string) (csmt.Hash256, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return csmt.Hash256{}, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(b) > 32 {
		return csmt.Hash256{}, fmt.Errorf("value %q is longer than 32 bytes", s)
	}
	var h csmt.Hash256
	copy(h[32-len(b):], b)
	return h, nil
}

// rootPersister is the subset of *csmtsqlite.Store used to carry a Tree's
// RootBranch across process restarts, since the NodeStore itself never holds
// it (see csmt.Tree.RootBranch).
type rootPersister interface {
	LoadRoot(ctx context.Context) (csmt.BranchNode, bool, error)
	SaveRoot(ctx context.Context, b csmt.BranchNode) error
}

func openStore(dbPath string) (csmt.NodeStore, rootPersister, func(), error) {
	if dbPath == "" {
		return csmt.NewMemoryStore(), nil, func() {}, nil
	}
	store, err := csmtsqlite.Open(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, store, func() { store.Close() }, nil
}

func serveConsole(ctx context.Context, addr string, console http.Handler, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/logz", console)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	slog.Info("serving log console", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("log console server error", "err", err)
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
