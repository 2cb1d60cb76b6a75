// Command inspect dumps recent rows from the snapshot store's ticket,
// ticket_pick, prediction_snapshot, and ticket_outcome tables for manual
// review.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	_ "modernc.org/sqlite"

	"github.com/psilali/footy-probengine/internal/config"
)

var tables = map[string]string{
	"tickets":   "SELECT ticket_id, jackpot_id, archetype, set_key, ev_score, accepted, reason, created_at FROM ticket ORDER BY rowid DESC LIMIT ?",
	"picks":     "SELECT ticket_id, seq, fixture_id, outcome FROM ticket_pick ORDER BY ticket_id DESC, seq ASC LIMIT ?",
	"snapshots": "SELECT ticket_id, fixture_id, xg_home, xg_away, dc_applied, calibrated_home, calibrated_draw, calibrated_away, captured_at FROM prediction_snapshot ORDER BY rowid DESC LIMIT ?",
	"outcomes":  "SELECT ticket_id, hits, settled_at FROM ticket_outcome ORDER BY rowid DESC LIMIT ?",
}

func main() {
	n := flag.Int("n", 10, "number of recent rows to display")
	table := flag.String("table", "all", "which table to inspect: tickets, picks, snapshots, outcomes, or all")
	dbPath := flag.String("db", "", "snapshot store sqlite path (defaults to SNAPSHOT_STORE_DB_PATH)")
	verbose := flag.Bool("v", false, "show all columns (raw schema)")
	flag.Parse()

	path := *dbPath
	if path == "" {
		path = config.Load().SnapshotStoreDBPath
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer db.Close()

	names := []string{*table}
	if *table == "all" {
		names = []string{"tickets", "picks", "snapshots", "outcomes"}
	}

	for i, name := range names {
		query, ok := tables[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown table %q (use tickets, picks, snapshots, outcomes, or all)\n", name)
			os.Exit(1)
		}
		if i > 0 {
			fmt.Println()
		}
		if *verbose {
			printRaw(db, strings.ToUpper(name[:1])+name[1:], rawTableName(name), *n)
		} else {
			printCompact(db, strings.ToUpper(name[:1])+name[1:], rawTableName(name), query, *n)
		}
	}
}

func rawTableName(name string) string {
	switch name {
	case "tickets":
		return "ticket"
	case "picks":
		return "ticket_pick"
	case "snapshots":
		return "prediction_snapshot"
	case "outcomes":
		return "ticket_outcome"
	default:
		return name
	}
}

func printCompact(db *sql.DB, title, table, query string, n int) {
	fmt.Printf("=== %s ===\n", title)

	count := 0
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		fmt.Printf("  (cannot count rows: %v)\n", err)
		return
	}
	if count == 0 {
		fmt.Println("(no data)")
		return
	}

	fmt.Printf("Rows: %d  |  Showing last %d:\n", count, minInt(n, count))
	printQuery(db, query, n)
}

func printRaw(db *sql.DB, title, table string, n int) {
	fmt.Printf("=== %s (verbose) ===\n", title)

	cols, err := schemaColumns(db, table)
	if err != nil {
		fmt.Printf("  (cannot read schema: %v)\n", err)
		return
	}
	fmt.Printf("Schema: %s\n\n", strings.Join(cols, ", "))

	count := 0
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		fmt.Printf("  (cannot count rows: %v)\n", err)
		return
	}
	if count == 0 {
		fmt.Println("(no data)")
		return
	}

	fmt.Printf("Rows: %d  |  Showing last %d:\n", count, minInt(n, count))
	printQuery(db, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid DESC LIMIT ?", table), n)
}

func printQuery(db *sql.DB, query string, n int) {
	rows, err := db.Query(query, n)
	if err != nil {
		fmt.Printf("  (query error: %v)\n", err)
		return
	}
	defer rows.Close()

	colNames, _ := rows.Columns()
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(colNames, "\t"))
	fmt.Fprintln(w, strings.Repeat("----\t", len(colNames)))

	vals := make([]any, len(colNames))
	ptrs := make([]any, len(colNames))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var rowBuf [][]string
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			fmt.Fprintf(os.Stderr, "  scan error: %v\n", err)
			continue
		}
		cells := make([]string, len(colNames))
		for i, v := range vals {
			cells[i] = fmtCell(v)
		}
		rowBuf = append(rowBuf, cells)
	}

	for i := len(rowBuf) - 1; i >= 0; i-- {
		fmt.Fprintln(w, strings.Join(rowBuf[i], "\t"))
	}
	w.Flush()
}

func schemaColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt any
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%s %s", name, ctype))
	}
	return cols, nil
}

func fmtCell(v any) string {
	if v == nil {
		return "-"
	}
	switch x := v.(type) {
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.5f", x)
	case int64:
		return fmt.Sprintf("%d", x)
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", v)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
