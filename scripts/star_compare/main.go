package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/internal/repository"
	"github.com/noah-isme/kumon-analytics/internal/service"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
)

type comparison struct {
	Table       string
	Critical    bool
	LeftRows    int
	RightRows   int
	OnlyLeft    int
	OnlyRight   int
	Fingerprint bool
	Error       error
}

func main() {
	var (
		leftDir  string
		rightDir string
		tables   string
		critical string
		ignore   string
	)

	flag.StringVar(&leftDir, "left", "", "First csv table directory")
	flag.StringVar(&rightDir, "right", "", "Second csv table directory")
	flag.StringVar(&tables, "tables", "dim_students,rel_students_subject,fct_status_report", "Tables to compare")
	flag.StringVar(&critical, "critical", "dim_students", "Tables whose differences fail the run")
	flag.StringVar(&ignore, "ignore", "ingested_at", "Columns dropped before comparing")
	flag.Parse()

	if leftDir == "" || rightDir == "" {
		log.Fatal("both -left and -right are required")
	}
	left, err := repository.NewCSVDirRepository(leftDir)
	if err != nil {
		log.Fatalf("open %s: %v", leftDir, err)
	}
	right, err := repository.NewCSVDirRepository(rightDir)
	if err != nil {
		log.Fatalf("open %s: %v", rightDir, err)
	}

	criticalSet := toSet(critical)
	ignored := toSet(ignore)

	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)
	names := make([]string, 0)
	for name := range toSet(tables) {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		comp := compareTable(context.Background(), left, right, name, ignored)
		comp.Critical = criticalSet[name]
		if comp.Error != nil || !comp.Fingerprint {
			if comp.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func compareTable(ctx context.Context, left, right service.TabularStore, name string, ignored map[string]bool) comparison {
	comp := comparison{Table: name}
	lt, lerr := left.ReadTable(ctx, name)
	rt, rerr := right.ReadTable(ctx, name)
	switch {
	case appErrors.IsTableNotFound(lerr) && appErrors.IsTableNotFound(rerr):
		comp.Fingerprint = true
		return comp
	case lerr != nil:
		comp.Error = fmt.Errorf("left: %w", lerr)
		return comp
	case rerr != nil:
		comp.Error = fmt.Errorf("right: %w", rerr)
		return comp
	}

	lt = dropColumns(lt, ignored)
	rt = dropColumns(rt, ignored)
	comp.LeftRows = lt.Len()
	comp.RightRows = rt.Len()
	comp.Fingerprint = service.Fingerprint(lt) == service.Fingerprint(rt)
	comp.OnlyLeft, comp.OnlyRight = keyDiff(lt, rt)
	return comp
}

// keyDiff counts first-column values present on one side only.
func keyDiff(a, b models.Table) (int, int) {
	ka, kb := firstColumn(a), firstColumn(b)
	onlyA, onlyB := 0, 0
	for k := range ka {
		if !kb[k] {
			onlyA++
		}
	}
	for k := range kb {
		if !ka[k] {
			onlyB++
		}
	}
	return onlyA, onlyB
}

func firstColumn(t models.Table) map[string]bool {
	keys := make(map[string]bool, t.Len())
	for _, row := range t.Rows {
		if len(row) > 0 {
			keys[row[0]] = true
		}
	}
	return keys
}

func dropColumns(t models.Table, ignored map[string]bool) models.Table {
	keep := make([]int, 0, len(t.Header))
	out := models.Table{}
	for i, name := range t.Header {
		if !ignored[name] {
			keep = append(keep, i)
			out.Header = append(out.Header, name)
		}
	}
	out.Rows = make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		next := make([]string, 0, len(keep))
		for _, i := range keep {
			if i < len(row) {
				next = append(next, row[i])
			} else {
				next = append(next, "")
			}
		}
		out.Rows[r] = next
	}
	return out
}

func toSet(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			set[p] = true
		}
	}
	return set
}

func printReport(results []comparison) {
	fmt.Println("Star Compare Report")
	fmt.Println("===================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.Fingerprint {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s\n", status, res.Table)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Rows: %d vs %d | Keys only left: %d | Keys only right: %d | Critical: %t\n",
			res.LeftRows, res.RightRows, res.OnlyLeft, res.OnlyRight, res.Critical)
	}
}
