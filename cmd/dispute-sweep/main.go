// Command dispute-sweep runs the bisection engine over a geometric grid of
// chain lengths under one bond parameter set (-alpha), and emits both a
// CSV/JSON data dump and an
// interactive go-echarts plot of rounds-to-resolution vs n and
// bond-required vs dispute depth.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"archimedes/aggregator"
	"archimedes/commitment"
	"archimedes/dispute"
	"archimedes/executor"
	"archimedes/group"
	"archimedes/incentive"
	"archimedes/measureutil"
	"archimedes/model"
	"archimedes/prof"
	"archimedes/wire"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

type sweepRow struct {
	N            uint64 `json:"n"`
	Rounds       uint32 `json:"rounds"`
	BondRequired uint64 `json:"bond_required"`
	SessionCapNs uint64 `json:"session_cap_ns"`
}

func counterRoot(v uint64) [32]byte {
	var root [32]byte
	for i := 31; i >= 24; i-- {
		root[i] = byte(v)
		v >>= 8
	}
	return root
}

func counterStep(core *commitment.Core, index, prevCounter uint64) (model.StepRecord, error) {
	prevRoot := counterRoot(prevCounter)
	postRoot := counterRoot(prevCounter + 1)
	transVal, err := group.EncodeTransition(prevRoot, postRoot, 0)
	if err != nil {
		return model.StepRecord{}, err
	}
	stateVal, err := group.EncodeStateRoot(postRoot)
	if err != nil {
		return model.StepRecord{}, err
	}
	transBlinder := group.ScalarFromUint64(index*2 + 1)
	stateBlinder := group.ScalarFromUint64(index*2 + 2)
	return model.StepRecord{
		Index: index,
		TransC: model.TransitionCommitment{
			Pre: prevRoot, Post: postRoot, FnID: 0,
			Point: core.Commit(transVal, transBlinder), Blinder: transBlinder,
		},
		StateC: model.StateCommitment{
			StateRoot: postRoot,
			Point:     core.Commit(stateVal, stateBlinder),
			Blinder:   stateBlinder,
		},
	}, nil
}

func runOne(core *commitment.Core, n uint64, params incentive.BondParams) (sweepRow, error) {
	agg := aggregator.New(core, counterRoot(0))
	counter := uint64(0)
	for i := uint64(1); i <= n; i++ {
		step, err := counterStep(core, i, counter)
		if err != nil {
			return sweepRow{}, err
		}
		if err := agg.Append(step); err != nil {
			return sweepRow{}, err
		}
		counter++
	}
	finalAgg, err := agg.Finalize()
	if err != nil {
		return sweepRow{}, err
	}

	sess := dispute.NewProposed([16]byte{}, "proposer", core, executor.CounterExecutor{}, finalAgg, 0)
	if err := sess.Challenge(0, "challenger", 0, n, aggregator.Opening{}, aggregator.Opening{}, 0, 0); err != nil {
		return sweepRow{}, err
	}
	ledger := incentive.NewLedger()
	ledger.Fund("challenger", 1<<40)
	bondRequired, err := ledger.HoldBond("challenger", n, params)
	if err != nil {
		return sweepRow{}, err
	}

	rounds := uint32(0)
	for sess.State == dispute.BISECTING {
		lo, hi := sess.Window()
		mid := lo + (hi-lo)/2
		if _, err := sess.Query(0, mid); err != nil {
			return sweepRow{}, err
		}
		op, err := agg.Open(mid)
		if err != nil {
			return sweepRow{}, err
		}
		if _, err := sess.Reply(0, op.P, op.R, op.Path); err != nil {
			return sweepRow{}, err
		}
		if _, err := sess.Narrow(0, wire.DirRight); err != nil {
			return sweepRow{}, err
		}
		rounds++
	}
	return sweepRow{N: n, Rounds: rounds, BondRequired: bondRequired, SessionCapNs: sess.SessionCap()}, nil
}

func main() {
	minN := flag.Uint64("min-n", 2, "smallest chain length to sweep")
	maxN := flag.Uint64("max-n", 1024, "largest chain length to sweep")
	steps := flag.Int("steps", 20, "number of geometrically spaced sample points")
	alpha := flag.Float64("alpha", incentive.DefaultBondParams.Alpha, "bond scaling coefficient alpha")
	csvPath := flag.String("csv", "dispute_sweep.csv", "output CSV path")
	jsonPath := flag.String("json", "dispute_sweep.jsonl", "output JSONL path")
	htmlPath := flag.String("html", "dispute_sweep.html", "output HTML plot path")
	flag.Parse()

	core, err := commitment.New(nil)
	if err != nil {
		log.Fatalf("commitment.New: %v", err)
	}
	params := incentive.BondParams{Base: incentive.DefaultBondParams.Base, Alpha: *alpha}

	ns := geometricSamples(*minN, *maxN, *steps)
	rows := make([]sweepRow, 0, len(ns))
	for _, n := range ns {
		row, err := runOne(core, n, params)
		if err != nil {
			log.Fatalf("sweep n=%d: %v", n, err)
		}
		rows = append(rows, row)
		fmt.Printf("n=%-6d rounds=%-3d bond=%-8d session_cap=%dns\n", row.N, row.Rounds, row.BondRequired, row.SessionCapNs)
	}

	printCallCounts()

	if err := writeCSV(*csvPath, rows); err != nil {
		log.Fatalf("write csv: %v", err)
	}
	if err := writeJSONL(*jsonPath, rows); err != nil {
		log.Fatalf("write jsonl: %v", err)
	}
	if err := writePlot(*htmlPath, rows); err != nil {
		log.Fatalf("write plot: %v", err)
	}
	fmt.Printf("wrote %s, %s, %s\n", *csvPath, *jsonPath, *htmlPath)
}

// printCallCounts drains the module-wide call counters accumulated across
// every sweep run (MSM calls, Merkle builds, dispute rounds, ...) and
// prints them sorted by label, giving a cheap sense of the sweep's actual
// cryptographic workload alongside the rounds/bond figures already printed.
func printCallCounts() {
	counts := measureutil.SnapshotAndReset()
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Printf("%-20s %d\n", label, counts[label])
	}

	stats := prof.Summarize(prof.SnapshotAndReset())
	ops := make([]string, 0, len(stats))
	for op := range stats {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		s := stats[op]
		fmt.Printf("%-20s calls=%-6d total=%s avg=%s\n", op, s.Calls, s.Total, s.Total/time.Duration(s.Calls))
	}
}

func geometricSamples(min, max uint64, count int) []uint64 {
	if count < 2 {
		count = 2
	}
	out := make([]uint64, 0, count)
	seen := make(map[uint64]bool, count)
	logMin, logMax := math.Log2(float64(min)), math.Log2(float64(max))
	for i := 0; i < count; i++ {
		frac := float64(i) / float64(count-1)
		n := uint64(math.Round(math.Exp2(logMin + frac*(logMax-logMin))))
		if n < 2 {
			n = 2
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func writeCSV(path string, rows []sweepRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"n", "rounds", "bond_required", "session_cap_ns"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			strconv.FormatUint(r.N, 10),
			strconv.FormatUint(uint64(r.Rounds), 10),
			strconv.FormatUint(r.BondRequired, 10),
			strconv.FormatUint(r.SessionCapNs, 10),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONL(path string, rows []sweepRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writePlot(path string, rows []sweepRow) error {
	page := components.NewPage().SetPageTitle("Dispute bisection sweep")

	roundsLine := charts.NewLine()
	roundsLine.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Rounds to resolution vs n"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "chain length n", Type: "log"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rounds", Type: "value"}),
	)
	xs := make([]string, len(rows))
	roundsData := make([]opts.LineData, len(rows))
	bondData := make([]opts.LineData, len(rows))
	for i, r := range rows {
		xs[i] = strconv.FormatUint(r.N, 10)
		roundsData[i] = opts.LineData{Value: r.Rounds}
		bondData[i] = opts.LineData{Value: r.BondRequired}
	}
	roundsLine.SetXAxis(xs).AddSeries("rounds", roundsData)

	bondLine := charts.NewLine()
	bondLine.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Bond required vs dispute depth"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "chain length n", Type: "log"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bond", Type: "value"}),
	)
	bondLine.SetXAxis(xs).AddSeries("bond_required", bondData)

	page.AddCharts(roundsLine, bondLine)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}
