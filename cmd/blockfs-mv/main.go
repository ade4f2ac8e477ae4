// Command blockfs-mv relocates a directory file and all of its
// BlockFiles together, rewriting the path table so the moved directory
// file still resolves its siblings. A bare filesystem mv would leave
// the embedded path table pointing at the old location.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/chunglabmit/blockfs"
	"github.com/chunglabmit/blockfs/cmd/internal/cli"
	"github.com/chunglabmit/blockfs/storage"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: blockfs-mv SRC DEST")
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(cli.ExitBadArgs)
	}

	ctx := context.Background()
	provider := storage.NewLocalProvider()
	cli.ExitFor(blockfs.Move(ctx, provider, flag.Arg(0), flag.Arg(1)))
}
