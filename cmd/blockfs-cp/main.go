// Command blockfs-cp duplicates a directory file and all of its
// BlockFiles to a new location, rewriting the copy's path table. The
// source is left untouched.
//
// Source arguments are glob-expanded (see
// cmd/internal/globexpand), matching cmd/grail-file/cmd/cmd.go's
// support for multi-source invocations: `blockfs-cp 'vol-*.dir' DEST/`
// copies every matching directory file into the DEST directory, one
// call to blockfs.Copy per match. With exactly one (already-literal)
// source, DEST is instead treated as the full destination path, the
// same as a plain two-argument copy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chunglabmit/blockfs"
	"github.com/chunglabmit/blockfs/cmd/internal/cli"
	"github.com/chunglabmit/blockfs/cmd/internal/globexpand"
	"github.com/chunglabmit/blockfs/storage"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: blockfs-cp SRC DEST\n       blockfs-cp SRC... DEST/  (SRC may be a glob pattern)")
	}
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(cli.ExitBadArgs)
	}

	args := flag.Args()
	dest := args[len(args)-1]
	srcPatterns := args[:len(args)-1]
	sources := globexpand.All(srcPatterns)

	ctx := context.Background()
	provider := storage.NewLocalProvider()

	if len(srcPatterns) == 1 && len(sources) == 1 && sources[0] == srcPatterns[0] {
		cli.ExitFor(blockfs.Copy(ctx, provider, sources[0], dest))
		return
	}

	info, err := os.Stat(dest)
	if err != nil || !info.IsDir() {
		cli.Usage("blockfs-cp: DEST must be an existing directory when copying multiple sources")
	}
	for _, src := range sources {
		dst := filepath.Join(dest, filepath.Base(src))
		if err := blockfs.Copy(ctx, provider, src, dst); err != nil {
			cli.ExitFor(err)
		}
	}
}
