// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/d7store/pkg/store"
)

const defaultBasedir = "/tmp/d7store"

// printUsage of d7store and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s add|sys|query:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s [-b|--basedir PATH] [-v|-vv] [-c|--config FILE] <subcommand> [flags]\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s add [-H|--hex HEX] [-p|--path DIR] [-r|--recursive]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Adds one bundle given as a hex string, or imports a directory of\n")
	_, _ = fmt.Fprintf(os.Stderr, "  \".bundle\" files, recursively or not.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s sys [-f|--fs] [-d|--db]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Reconciles the filesystem and database: --fs restores missing index\n")
	_, _ = fmt.Fprintf(os.Stderr, "  rows from disk, --db drops index rows whose file vanished. Both runs\n")
	_, _ = fmt.Fprintf(os.Stderr, "  both directions.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s query [-i|--ids] [-p|--print-infos BID] [-f|--forward] [-d|--dispatch]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "         [-r|--reassembly] [-c|--contra] [-l|--local] [-a|--all-constraints]\n")
	_, _ = fmt.Fprintf(os.Stderr, "         [-q|--query-node N [-F|--filter-service S]] [-F|--filter-service S]\n")
	_, _ = fmt.Fprintf(os.Stderr, "         [-g|--group-destinations S]\n")
	_, _ = fmt.Fprintf(os.Stderr, "  Queries the index by identifier, node, service, or constraint bits.\n\n")

	os.Exit(1)
}

// printFatal of an error with a short context description and exits afterwards.
func printFatal(err error, msg string) {
	_, _ = fmt.Fprintf(os.Stderr, "%s errored: %s\n  %v\n", os.Args[0], msg, err)
	os.Exit(1)
}

func main() {
	configPath := scanConfigFlag(os.Args[1:])

	cfg := defaultConfig()
	if configPath != "" {
		loaded, err := loadConfig(configPath)
		if err != nil {
			printFatal(err, "loading config")
		}
		cfg = loaded
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	var basedir, cfgFlag string
	var verbose, veryVerbose bool
	fs.StringVar(&basedir, "b", cfg.Basedir, "base directory")
	fs.StringVar(&basedir, "basedir", cfg.Basedir, "base directory")
	fs.BoolVar(&verbose, "v", false, "info-level logging")
	fs.BoolVar(&veryVerbose, "vv", false, "debug-level logging")
	fs.StringVar(&cfgFlag, "c", "", "TOML config file")
	fs.StringVar(&cfgFlag, "config", "", "TOML config file")

	if err := fs.Parse(os.Args[1:]); err != nil {
		printFatal(err, "parsing flags")
	}

	switch {
	case veryVerbose:
		log.SetLevel(log.DebugLevel)
	case verbose:
		log.SetLevel(log.InfoLevel)
	case cfg.LogLevel != "":
		if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
			log.SetLevel(lvl)
		} else {
			log.WithField("level", cfg.LogLevel).Warn("d7store: unknown log_level in config, ignoring")
		}
	default:
		log.SetLevel(log.WarnLevel)
	}

	args := fs.Args()
	if len(args) < 1 {
		printUsage()
	}

	log.WithField("basedir", basedir).Debug("d7store: opening store")
	st, err := store.Open(basedir)
	if err != nil {
		printFatal(err, "opening store")
	}
	defer st.Close()

	switch args[0] {
	case "add":
		cmdAdd(st, args[1:])

	case "sys":
		cmdSys(st, args[1:])

	case "query":
		cmdQuery(st, args[1:])

	default:
		printUsage()
	}
}
