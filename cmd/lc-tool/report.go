// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cocopc/retention/pkg/driver"
)

func printReport(w io.Writer, report *driver.Report, groups bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "granularity: %s, start: %s, rows: %d, groups: %d\n",
		report.Granularity, report.WindowStart.Format("2006-01-02"), report.Rows, len(report.Results))
	for i, stat := range report.Shards {
		fmt.Fprintf(tw, "shard %d\trows %d\tgroups %d\tkeys ~%d\tstate %dB\t\n",
			i, stat.Rows, stat.Groups, stat.EstimatedKeys, stat.StateBytes)
	}

	if groups {
		fmt.Fprintln(tw, "\nkey\tstart\tend\t")
		for _, r := range report.Results {
			fmt.Fprintf(tw, "%s\t%d\t%d\t\n", r.Key, r.Start, r.End)
		}
	}

	first, second := report.Summary.Shape()
	header := make([]string, 0, second+2)
	header = append(header, "offset", "users")
	for j := int32(1); j <= second; j++ {
		header = append(header, fmt.Sprintf("+%d", j))
	}
	fmt.Fprintf(tw, "\n%s\t\n", strings.Join(header, "\t"))

	rates := report.Summary.Rates()
	for i := 0; i < int(first); i++ {
		row := report.Summary.Row(i)
		cols := make([]string, 0, len(row)+1)
		cols = append(cols, fmt.Sprintf("%d", i), fmt.Sprintf("%d", row[0]))
		for j := 1; j < len(row); j++ {
			cols = append(cols, fmt.Sprintf("%d (%.1f%%)", row[j], rates[i][j]*100))
		}
		fmt.Fprintf(tw, "%s\t\n", strings.Join(cols, "\t"))
	}
	return tw.Flush()
}
