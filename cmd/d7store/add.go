// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/d7store/pkg/store"
)

// cmdAdd implements the "add" subcommand: one bundle from a hex string, or a
// directory import.
func cmdAdd(st *store.Store, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)

	var hexStr, path string
	var recursive bool
	fs.StringVar(&hexStr, "H", "", "add a bundle given as a hex string")
	fs.StringVar(&hexStr, "hex", "", "add a bundle given as a hex string")
	fs.StringVar(&path, "p", "", "import bundles from a directory")
	fs.StringVar(&path, "path", "", "import bundles from a directory")
	fs.BoolVar(&recursive, "r", false, "import recursively (with --path)")
	fs.BoolVar(&recursive, "recursive", false, "import recursively (with --path)")

	if err := fs.Parse(args); err != nil {
		printFatal(err, "parsing add flags")
	}

	switch {
	case hexStr != "":
		b, path, err := st.ImportHexAndPush(hexStr)
		if err != nil {
			printFatal(err, "adding hex bundle")
		}
		log.WithFields(log.Fields{"bundle": b.ID().String(), "path": path}).Info("d7store: added bundle")

	case path != "":
		if err := st.ImportDir(path, recursive); err != nil {
			printFatal(err, "importing directory")
		}

	default:
		printUsage()
	}
}
