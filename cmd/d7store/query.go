// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/dtn7/d7store/pkg/constraints"
	"github.com/dtn7/d7store/pkg/store"
)

// cmdQuery implements the "query" subcommand: identifier listing, bundle
// info, constraint-bit filters, and node/service/group lookups.
func cmdQuery(st *store.Store, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)

	var (
		ids            bool
		printInfos     string
		forward        bool
		dispatch       bool
		reassembly     bool
		contra         bool
		local          bool
		allConstraints bool
		queryNode      string
		filterService  string
		groupDest      string
	)
	fs.BoolVar(&ids, "i", false, "list all bundle ids")
	fs.BoolVar(&ids, "ids", false, "list all bundle ids")
	fs.StringVar(&printInfos, "p", "", "print infos for bundle id")
	fs.StringVar(&printInfos, "print-infos", "", "print infos for bundle id")
	fs.BoolVar(&forward, "f", false, "list bundles with constraint forward-pending")
	fs.BoolVar(&forward, "forward", false, "list bundles with constraint forward-pending")
	fs.BoolVar(&dispatch, "d", false, "list bundles with constraint dispatch-pending")
	fs.BoolVar(&dispatch, "dispatch", false, "list bundles with constraint dispatch-pending")
	fs.BoolVar(&reassembly, "r", false, "list bundles with constraint reassembly-pending")
	fs.BoolVar(&reassembly, "reassembly", false, "list bundles with constraint reassembly-pending")
	fs.BoolVar(&contra, "c", false, "list bundles with constraint contraindicated")
	fs.BoolVar(&contra, "contra", false, "list bundles with constraint contraindicated")
	fs.BoolVar(&local, "l", false, "list bundles with constraint local-endpoint")
	fs.BoolVar(&local, "local", false, "list bundles with constraint local-endpoint")
	fs.BoolVar(&allConstraints, "a", false, "dump constraint masks for every bundle")
	fs.BoolVar(&allConstraints, "all-constraints", false, "dump constraint masks for every bundle")
	fs.StringVar(&queryNode, "q", "", "list bundles whose src or dst node matches")
	fs.StringVar(&queryNode, "query-node", "", "list bundles whose src or dst node matches")
	fs.StringVar(&filterService, "F", "", "list bundles whose src or dst service matches")
	fs.StringVar(&filterService, "filter-service", "", "list bundles whose src or dst service matches")
	fs.StringVar(&groupDest, "g", "", "list the group destination nodes for a service")
	fs.StringVar(&groupDest, "group-destinations", "", "list the group destination nodes for a service")

	if err := fs.Parse(args); err != nil {
		printFatal(err, "parsing query flags")
	}

	var (
		result interface{}
		err    error
	)

	switch {
	case ids:
		result, err = st.IDs()

	case printInfos != "":
		var entry interface{}
		entry, err = st.GetBundleEntry(printInfos)
		if err == nil {
			var mask constraints.Constraints
			mask, err = st.GetConstraints(printInfos)
			if err == nil {
				result = struct {
					Entry       interface{} `json:"entry"`
					Constraints string      `json:"constraints"`
				}{entry, mask.String()}
			}
		}

	case allConstraints:
		result, err = st.AllConstraints()

	case forward:
		result, err = st.FilterConstraints(constraints.ForwardPending)

	case dispatch:
		result, err = st.FilterConstraints(constraints.DispatchPending)

	case reassembly:
		result, err = st.FilterConstraints(constraints.ReassemblyPending)

	case contra:
		result, err = st.FilterConstraints(constraints.Contraindicated)

	case local:
		result, err = st.FilterConstraints(constraints.LocalEndpoint)

	case queryNode != "" && filterService != "":
		result, err = st.FilterNodeAndService(queryNode, filterService)

	case queryNode != "":
		result, err = st.FilterNode(queryNode)

	case filterService != "":
		result, err = st.FilterService(filterService)

	case groupDest != "":
		result, err = st.FilterGroups(groupDest)

	default:
		printUsage()
		return
	}

	if err != nil {
		printFatal(err, "query failed")
	}
	printJSON(result)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		printFatal(err, "encoding result")
	}
}
