package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"corridor.ai/internal/sim/runner"
	"corridor.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable read model of a run: every segment with its
// spawn/retire ticks, every committed or dropped turn, and sampled ticks.
// Writes are queued and applied by one goroutine; a full queue drops the
// write (the JSONL logs remain the source of truth).
type SQLiteIndex struct {
	db *sql.DB

	sampleEvery uint64

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropEvent atomic.Uint64
	writeErrs atomic.Uint64
}

type Options struct {
	// SampleEveryTicks keeps one ticks row per N ticks. <=0 means every tick.
	SampleEveryTicks int
	// QueueSize bounds pending writes. <=0 uses the default.
	QueueSize int
}

// Stats reports queue pressure for /metrics.
type Stats struct {
	DropTickTotal  uint64 `json:"drop_tick_total"`
	DropEventTotal uint64 `json:"drop_event_total"`
	WriteErrTotal  uint64 `json:"write_err_total"`
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqEvent
)

type req struct {
	kind reqKind

	tick  runner.TickLogEntry
	event runner.PathEvent
}

const defaultQueueSize = 65536

func OpenSQLite(path string, opts Options) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	every := uint64(1)
	if opts.SampleEveryTicks > 0 {
		every = uint64(opts.SampleEveryTicks)
	}
	s := &SQLiteIndex{
		db:          db,
		sampleEvery: every,
		ch:          make(chan req, size),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS segments (
			seq INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			heading TEXT NOT NULL,
			spawn_tick INTEGER NOT NULL,
			retire_tick INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_segments_spawn_tick ON segments(spawn_tick);`,
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			junction_seq INTEGER,
			requested TEXT,
			direction TEXT,
			old_heading TEXT,
			new_heading TEXT,
			cursor_x REAL,
			cursor_z REAL,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_tick ON turns(tick);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			momentum REAL NOT NULL,
			turn TEXT NOT NULL,
			input_seq INTEGER NOT NULL,
			events INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropTickTotal:  s.dropTick.Load(),
		DropEventTotal: s.dropEvent.Load(),
		WriteErrTotal:  s.writeErrs.Load(),
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
	}
}

// WriteTick queues a ticks row when the tick falls on the sample interval.
func (s *SQLiteIndex) WriteTick(entry runner.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	if s.sampleEvery > 1 && entry.Tick%s.sampleEvery != 0 {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteEvent(ev runner.PathEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: ev}:
	default:
		s.dropEvent.Add(1)
	}
	return nil
}

// RecordRun stores the run id and the tuning actually applied, synchronously.
func (s *SQLiteIndex) RecordRun(runID string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	rows := [][2]string{
		{"schema_version", "1"},
		{"run_id", runID},
		{"tuning", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"started_at", time.Now().UTC().Format(time.RFC3339Nano)},
	}
	for _, r := range rows {
		if _, err := stmt.Exec(r[0], r[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,momentum,turn,input_seq,events) VALUES(?,?,?,?,?,?)`)
	insertSegment, _ := s.db.Prepare(`INSERT OR REPLACE INTO segments(seq,kind,x,y,z,heading,spawn_tick) VALUES(?,?,?,?,?,?,?)`)
	retireSegment, _ := s.db.Prepare(`UPDATE segments SET retire_tick=? WHERE seq=?`)
	insertTurn, _ := s.db.Prepare(`INSERT INTO turns(tick,kind,junction_seq,requested,direction,old_heading,new_heading,cursor_x,cursor_z,reason) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertSegment, retireSegment, insertTurn} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeErrs.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			exec(insertTick, int64(e.Tick), e.Digest, e.Input.Momentum, string(e.Input.Turn), int64(e.Input.Seq), len(e.Events))

		case reqEvent:
			ev := r.event
			switch ev.Kind {
			case runner.EventSegmentSpawned:
				exec(insertSegment, int64(ev.Seq), ev.SegmentKind, ev.Pos.X, ev.Pos.Y, ev.Pos.Z, ev.Heading.String(), int64(ev.Tick))
			case runner.EventSegmentRetired:
				exec(retireSegment, int64(ev.Tick), int64(ev.Seq))
			case runner.EventTurnCommitted:
				var newHeading string
				if ev.NewHeading != nil {
					newHeading = ev.NewHeading.String()
				}
				var cx, cz any
				if ev.Cursor != nil {
					cx, cz = ev.Cursor.Position.X, ev.Cursor.Position.Z
				}
				exec(insertTurn, int64(ev.Tick), ev.Kind, int64(ev.Seq), ev.Requested, ev.Direction,
					ev.Heading.String(), newHeading, cx, cz, nil)
			case runner.EventTurnDropped:
				exec(insertTurn, int64(ev.Tick), ev.Kind, nil, ev.Requested, nil, nil, nil, nil, nil, ev.Reason)
			}
		}
		flushIfNeeded()
	}

	commit()
}
