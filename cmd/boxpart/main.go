// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Boxpart partitions a synthetic refined level across a group of
// processes and reports how the boxes, cells, and coarse-fine
// boundary cells were distributed.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/boxlayout/layoutcmd"
	"github.com/grailbio/boxlayout/session"
	"github.com/grailbio/boxlayout/stats"
	"github.com/vmihailenco/msgpack/v5"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: boxpart [flags] [level]

Command boxpart builds a refined level covering a spherical shell in a
periodic domain, Morton orders and load balances its boxes across the
session's processes, and computes the coarse-fine region of the
result. Level is one of small (the default), medium, or large.

`)
		flag.PrintDefaults()
		os.Exit(2)
	}
	out := flag.String("out", "", "write a snapshot of the partitioned layout to this path")
	layoutcmd.Main(func(sess *session.Session, args []string) error {
		level := "small"
		switch len(args) {
		case 0:
		case 1:
			level = args[0]
		default:
			flag.Usage()
		}
		if _, ok := levels[level]; !ok {
			return errors.E(errors.Invalid, fmt.Sprintf("unknown level %q", level))
		}
		return run(context.Background(), sess, level, *out)
	})
}

func run(ctx context.Context, sess *session.Session, level, out string) error {
	results, err := sess.Run(ctx, "boxpart."+level)
	if err != nil {
		return err
	}
	reports := make([]report, len(results))
	for i, p := range results {
		if err := msgpack.Unmarshal(p, &reports[i]); err != nil {
			return errors.E(errors.Integrity, fmt.Sprintf("decode report from rank %d", i), err)
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Rank < reports[j].Rank })
	printReports(os.Stdout, reports)
	if out == "" {
		return nil
	}
	if err := os.WriteFile(out, reports[0].Layout, 0644); err != nil {
		return errors.E("write layout snapshot", err)
	}
	log.Printf("wrote layout snapshot to %s", out)
	return nil
}

func printReports(w io.Writer, reports []report) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "rank\tboxes\tcells\tcf cells\tpacked\tsparse\tsent\trecv\t")
	var boxes, cells, cfcells int64
	for _, rep := range reports {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
			rep.Rank, rep.Boxes, rep.Cells, rep.CFCells,
			rep.Metrics["cfregion.packed"], rep.Metrics["cfregion.sparse"],
			rep.Stats[stats.SendBytes], rep.Stats[stats.RecvBytes])
		boxes += int64(rep.Boxes)
		cells += rep.Cells
		cfcells += rep.CFCells
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t\t\t\t\t\n", boxes, cells, cfcells)
	tw.Flush()
	if len(reports) > 0 && reports[0].AllEmpty {
		fmt.Fprintln(w, "the level has no coarse-fine boundary")
	}
}
