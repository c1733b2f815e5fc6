// Command sm manages a collection of AI workflow artifacts: skills,
// commands, agents, hooks, and MCP server configs. It discovers artifacts
// in projects, imports them into a versioned collection, and deploys them
// back onto per-platform roots like .claude/ and .cursor/.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	if err := rootCmd.Execute(); err != nil {
		stop()
		os.Exit(1)
	}
}
