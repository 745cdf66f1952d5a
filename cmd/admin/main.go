package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	persistlog "corridor.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "manifest":
			manifestCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	if err := listRuns(os.Stdout, filepath.Join(*dataDir, "runs")); err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
}

// listRuns prints one line per run directory, oldest first. Directories
// without a readable manifest are listed with a marker.
func listRuns(w io.Writer, base string) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		return err
	}
	type row struct {
		id   string
		line string
		at   int64
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := persistlog.ReadManifest(filepath.Join(base, e.Name()))
		if err != nil {
			rows = append(rows, row{id: e.Name(), line: e.Name() + "\t(no manifest)"})
			continue
		}
		rows = append(rows, row{
			id:   e.Name(),
			at:   m.StartedAt.UnixNano(),
			line: fmt.Sprintf("%s\tstarted %s\tv%s", e.Name(), humanize.Time(m.StartedAt), m.ProtocolVersion),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].at != rows[j].at {
			return rows[i].at < rows[j].at
		}
		return rows[i].id < rows[j].id
	})
	for _, r := range rows {
		fmt.Fprintln(w, r.line)
	}
	return nil
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	runID := fs.String("run", "", "run id")
	_ = fs.Parse(args)

	if strings.TrimSpace(*runID) == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	m, err := persistlog.ReadManifest(filepath.Join(*dataDir, "runs", *runID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read manifest:", err)
		os.Exit(1)
	}
	printJSON(os.Stdout, m)
}
