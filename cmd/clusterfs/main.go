// clusterfs inspects and edits cluster containers from the command line.
//
// Every command opens the container named by --container (or the
// "container" key of the config file), does its work, and closes it again:
//
//	clusterfs init -f data.bfs --min-cluster-size 32
//	echo hello | clusterfs put -f data.bfs
//	clusterfs get -f data.bfs 8
//	clusterfs ls -f data.bfs
//	clusterfs export -f data.bfs --target s3 --bucket backups --prefix data
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q (run \"clusterfs help\")", args[0])
	}
	a, err := newApp(args[0], args[1:], stdin, stdout)
	if err != nil {
		return err
	}
	if a.help {
		fmt.Fprintf(stdout, "Usage: clusterfs %s\n\n%s\n\nFlags:\n%s", cmd.usage, cmd.summary, a.flags.FlagUsages())
		return nil
	}
	return cmd.run(ctx, a)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `clusterfs stores many files in one container file.

Usage:
  clusterfs <command> [flags] [args]

Commands:
`)
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprint(w, `
Run "clusterfs <command> --help" for the flags of a command.
`)
}
