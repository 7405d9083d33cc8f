package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	liftmcp "github.com/claude/liftlog/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// liftlog-mcp serves the MCP tools over stdio, reading data from a remote
// liftlog server through its REST API.
func main() {
	serverURL := flag.String("server", "", "liftlog server URL (e.g. https://liftlog.tail1234.ts.net)")
	token := flag.String("token", os.Getenv("LIFTLOG_TOKEN"), "bearer token (defaults to $LIFTLOG_TOKEN)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("liftlog-mcp", Version)
		return
	}

	// stdout carries the protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-mcp -server <URL> [-token <JWT>]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	client := liftmcp.NewHTTPClient(*serverURL, *token)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	me, err := client.Me(ctx)
	cancel()
	if err != nil {
		log.Error("cannot reach server", "server", *serverURL, "error", err)
		os.Exit(1)
	}
	log.Info("liftlog-mcp starting", "version", Version, "server", *serverURL, "user", me.Subject)

	s := liftmcp.New(client, Version, log)
	if err := server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return liftmcp.WithUserID(ctx, me.ID)
	})); err != nil {
		log.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}
