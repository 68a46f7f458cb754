package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/taskbridge/internal/asana"
	"github.com/kalambet/taskbridge/internal/export"
)

// outputFlags are the shared result-rendering flags of the read commands.
type outputFlags struct {
	format string
	output string
	append bool
	fields string
}

func addOutputFlags(cmd *cobra.Command, f *outputFlags) {
	cmd.Flags().StringVar(&f.format, "format", "table", "output format: table, json, csv, md")
	cmd.Flags().StringVar(&f.output, "output", "", "write results to a file instead of stdout")
	cmd.Flags().BoolVar(&f.append, "append", false, "append to the output file instead of overwriting")
	cmd.Flags().StringVar(&f.fields, "fields", "", "comma-separated field projection, or a preset: minimal, standard, full")
}

// writeTasks renders the task list per the output flags. File output goes
// through the export package; stdout rendering stays here.
func writeTasks(tasks []asana.Task, f outputFlags) error {
	if f.output != "" {
		switch f.format {
		case "json":
			return export.WriteJSON(f.output, tasks, f.append)
		case "csv":
			return export.WriteCSV(f.output, tasks, f.append)
		case "md":
			return export.WriteMarkdownFile(f.output, tasks, f.append)
		case "table":
			return fmt.Errorf("table format writes to stdout only; use json, csv, or md with --output")
		default:
			return fmt.Errorf("unknown format %q", f.format)
		}
	}

	switch f.format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write([]string{"gid", "name", "completed", "due_on", "assignee"}); err != nil {
			return err
		}
		for _, t := range tasks {
			row := []string{t.GID, t.Name, fmt.Sprintf("%t", t.Completed), t.DueOn, assigneeName(t)}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	case "md":
		return export.WriteMarkdownTable(os.Stdout, tasks, true)
	case "table":
		printTaskTable(tasks)
		return nil
	default:
		return fmt.Errorf("unknown format %q", f.format)
	}
}

func printTaskTable(tasks []asana.Task) {
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, colorize(colorBold, "GID\tNAME\tDONE\tDUE\tASSIGNEE"))
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.GID, truncate(t.Name, 60), done, t.DueOn, assigneeName(t))
	}
	w.Flush()
}

func assigneeName(t asana.Task) string {
	if t.Assignee == nil {
		return ""
	}
	return t.Assignee.Name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
