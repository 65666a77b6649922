// Package main starts the crowdplay orchestrator and handles termination.
//
// The process is a transport adapter around the submit-and-vote session loop
// so story state remains owned by the external game service.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	crowdplaycmd "github.com/louisbranch/crowdplay/internal/cmd/crowdplay"
)

func main() {
	cfg, err := crowdplaycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[CROWDPLAY] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := crowdplaycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
