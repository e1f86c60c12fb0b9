// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"

	"github.com/dtn7/d7store/pkg/store"
)

// cmdSys implements the "sys" subcommand: fs->db, db->fs, or both
// reconciliations.
func cmdSys(st *store.Store, args []string) {
	fs := flag.NewFlagSet("sys", flag.ExitOnError)

	var reparseFS, cleanupDB bool
	fs.BoolVar(&reparseFS, "f", false, "reparse filesystem into the index")
	fs.BoolVar(&reparseFS, "fs", false, "reparse filesystem into the index")
	fs.BoolVar(&cleanupDB, "d", false, "drop index rows whose file vanished")
	fs.BoolVar(&cleanupDB, "db", false, "drop index rows whose file vanished")

	if err := fs.Parse(args); err != nil {
		printFatal(err, "parsing sys flags")
	}

	switch {
	case reparseFS && cleanupDB:
		if err := st.Sync(); err != nil {
			printFatal(err, "syncing store")
		}
	case cleanupDB:
		if err := st.SyncWithFS(); err != nil {
			printFatal(err, "syncing db with filesystem")
		}
	case reparseFS:
		if err := st.SyncToDB(); err != nil {
			printFatal(err, "syncing filesystem into db")
		}
	default:
		printUsage()
	}
}
