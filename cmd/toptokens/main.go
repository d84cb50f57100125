package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usage = `toptokens finds the most frequent lines of a file too large for memory.

Usage:
  toptokens run       -input FILE [flags]   partition, reduce and merge
  toptokens partition -input FILE [flags]   hash tokens into bucket files
  toptokens reduce    [flags]               compute the top-N of every bucket
  toptokens merge     [flags]               merge bucket top-N lists
  toptokens history   [flags]               list or inspect past runs

Run "toptokens <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(ctx, os.Args[2:])
	case "partition":
		err = partitionCmd(ctx, os.Args[2:])
	case "reduce":
		err = reduceCmd(ctx, os.Args[2:])
	case "merge":
		err = mergeCmd(ctx, os.Args[2:])
	case "history":
		err = historyCmd(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
