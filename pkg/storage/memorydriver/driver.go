package memorydriver

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pierrec/lz4"
)

const (
	kindInteger = "integer"
	kindReal    = "real"
	kindText    = "text"
	kindTime    = "time"
)

// column describes one declared column; the kind drives value normalization.
type column struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// record is a single row keyed by lower-case column name.
type record map[string]driver.Value

// table holds the rows and the id counter for one CREATE TABLE declaration.
type table struct {
	Columns []column `json:"columns"`
	Rows    []record `json:"rows"`
	Counter int64    `json:"counter"`
}

func (t *table) column(name string) (column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return column{}, false
}

// snapshot is written to disk after each mutation so the driver survives restarts.
type snapshot struct {
	Tables map[string]*table `json:"tables"`
}

// storeCommand carries one parsed statement and its arguments to the store goroutine.
type storeCommand struct {
	stmt  statement
	args  []driver.Value
	reply chan storeResult
}

// storeResult transfers the generated id, affected rows, or projected rows back to the caller.
type storeResult struct {
	id       int64
	affected int64
	columns  []string
	rows     [][]driver.Value
	err      error
}

// store keeps every table guarded by a dedicated goroutine.
type store struct {
	commands        chan storeCommand
	closed          chan struct{}
	loopDone        chan struct{}
	persistDone     chan struct{}
	persistRequests chan snapshot
	tables          map[string]*table
	snapshotPath    string
}

// newStore loads the previous snapshot (if any) and starts the owning goroutines.
func newStore(path string) (*store, error) {
	loaded, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}
	s := &store{
		commands:        make(chan storeCommand, 32),
		closed:          make(chan struct{}),
		loopDone:        make(chan struct{}),
		persistDone:     make(chan struct{}),
		persistRequests: make(chan snapshot, 1),
		tables:          map[string]*table{},
		snapshotPath:    path,
	}
	if loaded != nil && loaded.Tables != nil {
		s.tables = loaded.Tables
	}
	go s.loop()
	go s.persistenceLoop()
	return s, nil
}

// loop serializes every statement so table state needs no mutexes.
func (s *store) loop() {
	defer close(s.loopDone)
	for {
		select {
		case cmd := <-s.commands:
			res := s.execute(cmd.stmt, cmd.args)
			if res.err == nil && cmd.stmt.kind != kindSelect && cmd.stmt.kind != kindCreate {
				s.queuePersist()
			}
			cmd.reply <- res
		case <-s.closed:
			return
		}
	}
}

func (s *store) execute(stmt statement, args []driver.Value) storeResult {
	if stmt.kind == kindCreate {
		s.createTable(stmt)
		return storeResult{}
	}
	t, ok := s.tables[stmt.table]
	if !ok {
		return storeResult{err: fmt.Errorf("no such table: %s", stmt.table)}
	}
	if len(args) < stmt.numInput() {
		return storeResult{err: fmt.Errorf("expected %d arguments, got %d", stmt.numInput(), len(args))}
	}
	switch stmt.kind {
	case kindInsert:
		return insertRow(t, stmt, args)
	case kindSelect:
		return selectRows(t, stmt, args)
	case kindUpdate:
		return updateRows(t, stmt, args)
	case kindDelete:
		return deleteRows(t, stmt, args)
	default:
		return storeResult{err: fmt.Errorf("unsupported statement %s", stmt.kind)}
	}
}

// createTable registers the schema, keeping rows restored from a snapshot.
func (s *store) createTable(stmt statement) {
	existing, ok := s.tables[stmt.table]
	if !ok {
		s.tables[stmt.table] = &table{Columns: stmt.schema}
		return
	}
	existing.Columns = stmt.schema
	for _, row := range existing.Rows {
		for _, c := range stmt.schema {
			value, err := normalize(c.Kind, row[c.Name])
			if err != nil {
				value = zeroValue(c.Kind)
			}
			row[c.Name] = value
		}
	}
}

func insertRow(t *table, stmt statement, args []driver.Value) storeResult {
	row := record{}
	for _, c := range t.Columns {
		row[c.Name] = zeroValue(c.Kind)
	}
	for i, name := range stmt.columns {
		c, ok := t.column(name)
		if !ok {
			return storeResult{err: fmt.Errorf("no such column: %s", name)}
		}
		value, err := normalize(c.Kind, args[i])
		if err != nil {
			return storeResult{err: fmt.Errorf("column %s: %w", name, err)}
		}
		row[name] = value
	}
	t.Counter++
	row["id"] = t.Counter
	if c, ok := t.column("created_at"); ok && c.Kind == kindTime {
		if created, _ := row["created_at"].(time.Time); created.IsZero() {
			row["created_at"] = time.Now().UTC()
		}
	}
	t.Rows = append(t.Rows, row)
	return storeResult{id: t.Counter, affected: 1}
}

func selectRows(t *table, stmt statement, args []driver.Value) storeResult {
	columns := stmt.columns
	if len(columns) == 1 && columns[0] == "*" {
		columns = make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			columns = append(columns, c.Name)
		}
	}
	for _, name := range columns {
		if _, ok := t.column(name); !ok {
			return storeResult{err: fmt.Errorf("no such column: %s", name)}
		}
	}
	matched, err := matching(t, stmt.conditions, args)
	if err != nil {
		return storeResult{err: err}
	}
	out := make([][]driver.Value, 0, len(matched))
	for _, idx := range matched {
		values := make([]driver.Value, len(columns))
		for i, name := range columns {
			values[i] = t.Rows[idx][name]
		}
		out = append(out, values)
	}
	return storeResult{columns: columns, rows: out}
}

func updateRows(t *table, stmt statement, args []driver.Value) storeResult {
	matched, err := matching(t, stmt.conditions, args[len(stmt.columns):])
	if err != nil {
		return storeResult{err: err}
	}
	updates := record{}
	for i, name := range stmt.columns {
		c, ok := t.column(name)
		if !ok {
			return storeResult{err: fmt.Errorf("no such column: %s", name)}
		}
		value, err := normalize(c.Kind, args[i])
		if err != nil {
			return storeResult{err: fmt.Errorf("column %s: %w", name, err)}
		}
		updates[name] = value
	}
	for _, idx := range matched {
		for name, value := range updates {
			t.Rows[idx][name] = value
		}
	}
	return storeResult{affected: int64(len(matched))}
}

func deleteRows(t *table, stmt statement, args []driver.Value) storeResult {
	matched, err := matching(t, stmt.conditions, args)
	if err != nil {
		return storeResult{err: err}
	}
	if len(matched) == 0 {
		return storeResult{}
	}
	drop := make(map[int]bool, len(matched))
	for _, idx := range matched {
		drop[idx] = true
	}
	kept := t.Rows[:0]
	for i, row := range t.Rows {
		if !drop[i] {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
	return storeResult{affected: int64(len(matched))}
}

// matching returns the indexes of rows where every condition column equals its argument.
func matching(t *table, conditions []string, args []driver.Value) ([]int, error) {
	wanted := make([]driver.Value, len(conditions))
	for i, name := range conditions {
		c, ok := t.column(name)
		if !ok {
			return nil, fmt.Errorf("no such column: %s", name)
		}
		value, err := normalize(c.Kind, args[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		wanted[i] = value
	}
	var out []int
	for idx, row := range t.Rows {
		ok := true
		for i, name := range conditions {
			if !equalValues(row[name], wanted[i]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, idx)
		}
	}
	return out, nil
}

func equalValues(a, b driver.Value) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// persistenceLoop writes snapshots asynchronously so the main loop stays responsive.
func (s *store) persistenceLoop() {
	defer close(s.persistDone)
	for {
		select {
		case snap := <-s.persistRequests:
			_ = writeSnapshot(s.snapshotPath, snap)
		case <-s.closed:
			return
		}
	}
}

// queuePersist hands the current state to the background writer, replacing any pending snapshot.
func (s *store) queuePersist() {
	if s.snapshotPath == "" {
		return
	}
	snap := s.snapshot()
	select {
	case s.persistRequests <- snap:
	default:
		select {
		case <-s.persistRequests:
		default:
		}
		s.persistRequests <- snap
	}
}

// snapshot deep-copies the tables; only the store goroutine (or a stopped store) may call it.
func (s *store) snapshot() snapshot {
	out := snapshot{Tables: make(map[string]*table, len(s.tables))}
	for name, t := range s.tables {
		cloned := &table{Columns: append([]column(nil), t.Columns...), Counter: t.Counter, Rows: make([]record, len(t.Rows))}
		for i, row := range t.Rows {
			copied := make(record, len(row))
			for k, v := range row {
				copied[k] = v
			}
			cloned.Rows[i] = copied
		}
		out.Tables[name] = cloned
	}
	return out
}

// close stops both goroutines and writes a final snapshot synchronously.
func (s *store) close() error {
	close(s.closed)
	<-s.loopDone
	<-s.persistDone
	if s.snapshotPath == "" {
		return nil
	}
	return writeSnapshot(s.snapshotPath, s.snapshot())
}

// enqueue sends the command to the store while honoring a timeout to avoid blocking forever.
func (s *store) enqueue(ctx context.Context, cmd storeCommand) (storeResult, error) {
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return storeResult{}, ctx.Err()
	case <-s.closed:
		return storeResult{}, errors.New("memory store is closed")
	case <-time.After(2 * time.Second):
		return storeResult{}, errors.New("timed out while enqueuing command")
	}
	select {
	case res := <-cmd.reply:
		return res, nil
	case <-ctx.Done():
		return storeResult{}, ctx.Err()
	}
}

// Driver wires the store into the database/sql world.
type Driver struct {
	store *store
}

// Open creates a connection that forwards calls to the shared store.
func (d *Driver) Open(string) (driver.Conn, error) {
	if d.store == nil {
		return nil, errors.New("memory driver store is not initialized")
	}
	return &conn{store: d.store}, nil
}

// connector lets sql.OpenDB use a store without registering a global driver name.
type connector struct {
	driver *Driver
}

func (c connector) Connect(context.Context) (driver.Conn, error) { return c.driver.Open("") }
func (c connector) Driver() driver.Driver                      { return c.driver }

// conn represents a lightweight connection object; every operation still travels through channels.
type conn struct {
	store *store
}

// Prepare parses the query once so Exec and Query only move values.
func (c *conn) Prepare(query string) (driver.Stmt, error) {
	parsed, err := parseStatement(query)
	if err != nil {
		return nil, err
	}
	return &stmt{store: c.store, parsed: parsed}, nil
}

// Close is a no-op because the shared store owns the lifecycle.
func (c *conn) Close() error { return nil }

// Begin is not implemented; services serialize multi-statement work themselves.
func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions are not supported by the memory driver")
}

type stmt struct {
	store  *store
	parsed statement
}

func (s *stmt) Close() error { return nil }

func (s *stmt) NumInput() int { return s.parsed.numInput() }

// Exec runs CREATE, INSERT, UPDATE and DELETE statements.
func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	if s.parsed.kind == kindSelect {
		return nil, errors.New("exec does not support select statements")
	}
	res, err := s.store.enqueue(context.Background(), storeCommand{stmt: s.parsed, args: args, reply: make(chan storeResult, 1)})
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	return execResult{id: res.id, affected: res.affected}, nil
}

// Query runs SELECT statements.
func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	if s.parsed.kind != kindSelect {
		return nil, errors.New("query only supports select statements")
	}
	res, err := s.store.enqueue(context.Background(), storeCommand{stmt: s.parsed, args: args, reply: make(chan storeResult, 1)})
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	return &rows{columns: res.columns, values: res.rows}, nil
}

type execResult struct {
	id       int64
	affected int64
}

func (r execResult) LastInsertId() (int64, error) { return r.id, nil }
func (r execResult) RowsAffected() (int64, error) { return r.affected, nil }

// rows iterates through the projected records.
type rows struct {
	columns []string
	values  [][]driver.Value
	index   int
}

func (r *rows) Columns() []string { return r.columns }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.index >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.index])
	r.index++
	return nil
}

func zeroValue(kind string) driver.Value {
	switch kind {
	case kindInteger:
		return int64(0)
	case kindReal:
		return float64(0)
	case kindTime:
		return time.Time{}
	default:
		return ""
	}
}

// normalize converts an argument or a decoded snapshot value into the column's Go type.
func normalize(kind string, value driver.Value) (driver.Value, error) {
	if value == nil {
		return zeroValue(kind), nil
	}
	switch kind {
	case kindInteger:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case float64:
			return int64(math.Round(v)), nil
		case bool:
			if v {
				return int64(1), nil
			}
			return int64(0), nil
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, nil
			}
			f, err := v.Float64()
			return int64(math.Round(f)), err
		case string:
			return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		case []byte:
			return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		}
	case kindReal:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		case json.Number:
			return v.Float64()
		case string:
			return strconv.ParseFloat(strings.TrimSpace(v), 64)
		case []byte:
			return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		}
	case kindText:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case kindTime:
		switch v := value.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			if v == "" {
				return time.Time{}, nil
			}
			parsed, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, err
			}
			return parsed.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot store %T as %s", value, kind)
}

// Open starts a store for path ("" keeps everything in memory) and returns a *sql.DB over it.
// The cleanup function closes the handle and flushes the final snapshot.
func Open(path string) (*sql.DB, func() error, error) {
	st, err := newStore(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	db := sql.OpenDB(connector{driver: &Driver{store: st}})
	cleanup := func() error {
		dbErr := db.Close()
		if err := st.close(); err != nil {
			return err
		}
		return dbErr
	}
	return db, cleanup, nil
}

// DefaultPath places the snapshot in the working directory.
func DefaultPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, "mosspay.db.lz4"), nil
}

// EnsureSchema executes CREATE TABLE statements for every MossPay table.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS consumers (
                        id INTEGER PRIMARY KEY,
                        fullname TEXT,
                        email TEXT,
                        phone TEXT,
                        dob DATE,
                        password_hash TEXT,
                        mosscoin_balance INTEGER,
                        total_co2_saved REAL,
                        green_purchases INTEGER,
                        eco_streak INTEGER,
                        rank INTEGER
                )`,
		`CREATE TABLE IF NOT EXISTS vendors (
                        id INTEGER PRIMARY KEY,
                        business_name TEXT,
                        contact_name TEXT,
                        mobile TEXT,
                        udyam_id TEXT,
                        address TEXT,
                        email TEXT,
                        password_hash TEXT,
                        description TEXT,
                        logo_url TEXT,
                        shop_category TEXT,
                        website_url TEXT
                )`,
		`CREATE TABLE IF NOT EXISTS items (
                        id INTEGER PRIMARY KEY,
                        vendor_id INTEGER,
                        name TEXT,
                        price REAL,
                        unit TEXT,
                        stock INTEGER,
                        carbon_saved_kg REAL
                )`,
		`CREATE TABLE IF NOT EXISTS bills (
                        id INTEGER PRIMARY KEY,
                        vendor_id INTEGER,
                        customer_id INTEGER,
                        total_amount REAL,
                        total_carbon_saved REAL,
                        mosscoins_to_award INTEGER,
                        status TEXT,
                        created_at TIMESTAMP
                )`,
		`CREATE TABLE IF NOT EXISTS bill_items (
                        id INTEGER PRIMARY KEY,
                        bill_id INTEGER,
                        item_id INTEGER,
                        quantity INTEGER,
                        price_at_sale REAL,
                        carbon_at_sale REAL
                )`,
		`CREATE TABLE IF NOT EXISTS offers (
                        id INTEGER PRIMARY KEY,
                        vendor_id INTEGER,
                        title TEXT,
                        description TEXT,
                        mosscoin_cost INTEGER,
                        status TEXT,
                        created_at TIMESTAMP
                )`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// readSnapshot loads the lz4-compressed JSON file if it exists.
func readSnapshot(path string) (*snapshot, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(lz4.NewReader(bytes.NewReader(data)))
	decoder.UseNumber()
	var snap snapshot
	if err := decoder.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	for _, t := range snap.Tables {
		for _, row := range t.Rows {
			for _, c := range t.Columns {
				value, err := normalize(c.Kind, row[c.Name])
				if err != nil {
					return nil, fmt.Errorf("snapshot column %s: %w", c.Name, err)
				}
				row[c.Name] = value
			}
			id, err := normalize(kindInteger, row["id"])
			if err != nil {
				return nil, err
			}
			row["id"] = id
		}
	}
	return &snap, nil
}

// writeSnapshot persists the state through a temp file and rename.
func writeSnapshot(path string, snap snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(temp, path)
}
