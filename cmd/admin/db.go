package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	runID := fs.String("run", "", "run id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	sinceTick := fs.Uint64("since_tick", 0, "only rows at or after this tick")
	_ = fs.Parse(args)

	q := "segments"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*runID) == "" {
			fmt.Fprintln(os.Stderr, "missing -run or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "runs", *runID, "index", "run.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(os.Stdout, db, q, *sinceTick, *limit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-run RUN|-db PATH] [-since_tick T] [-limit N] meta|segments|turns|ticks")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type segmentRow struct {
	Seq        uint64  `json:"seq"`
	Kind       string  `json:"kind"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Heading    string  `json:"heading"`
	SpawnTick  uint64  `json:"spawn_tick"`
	RetireTick *int64  `json:"retire_tick,omitempty"`
}

type turnRow struct {
	Tick        uint64   `json:"tick"`
	Kind        string   `json:"kind"`
	JunctionSeq *int64   `json:"junction_seq,omitempty"`
	Requested   string   `json:"requested,omitempty"`
	Direction   string   `json:"direction,omitempty"`
	OldHeading  string   `json:"old_heading,omitempty"`
	NewHeading  string   `json:"new_heading,omitempty"`
	CursorX     *float64 `json:"cursor_x,omitempty"`
	CursorZ     *float64 `json:"cursor_z,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

type tickRow struct {
	Tick     uint64  `json:"tick"`
	Digest   string  `json:"digest"`
	Momentum float64 `json:"momentum"`
	Turn     string  `json:"turn"`
	InputSeq uint64  `json:"input_seq"`
	Events   int     `json:"events"`
}

// runQuery prints one JSON object per row of the named table.
func runQuery(w io.Writer, db *sql.DB, q string, sinceTick uint64, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	switch q {
	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta ORDER BY key`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if err := rows.Scan(&r.Key, &r.Value); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "segments":
		rows, err := db.Query(`SELECT seq,kind,x,y,z,heading,spawn_tick,retire_tick FROM segments WHERE spawn_tick>=? ORDER BY seq LIMIT ?`, sinceTick, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r segmentRow
			var retire sql.NullInt64
			if err := rows.Scan(&r.Seq, &r.Kind, &r.X, &r.Y, &r.Z, &r.Heading, &r.SpawnTick, &retire); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if retire.Valid {
				v := retire.Int64
				r.RetireTick = &v
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "turns":
		rows, err := db.Query(`SELECT tick,kind,junction_seq,requested,direction,old_heading,new_heading,cursor_x,cursor_z,reason FROM turns WHERE tick>=? ORDER BY id LIMIT ?`, sinceTick, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r turnRow
			var (
				junction         sql.NullInt64
				cx, cz           sql.NullFloat64
				req, dir, oh, nh sql.NullString
				reason           sql.NullString
			)
			if err := rows.Scan(&r.Tick, &r.Kind, &junction, &req, &dir, &oh, &nh, &cx, &cz, &reason); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if junction.Valid {
				v := junction.Int64
				r.JunctionSeq = &v
			}
			if cx.Valid && cz.Valid {
				x, z := cx.Float64, cz.Float64
				r.CursorX, r.CursorZ = &x, &z
			}
			r.Requested, r.Direction = req.String, dir.String
			r.OldHeading, r.NewHeading = oh.String, nh.String
			r.Reason = reason.String
			printJSON(w, r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,momentum,turn,input_seq,events FROM ticks WHERE tick>=? ORDER BY tick LIMIT ?`, sinceTick, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r tickRow
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Momentum, &r.Turn, &r.InputSeq, &r.Events); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
