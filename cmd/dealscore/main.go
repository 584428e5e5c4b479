// Command dealscore scores deals from flags or a CSV file and prints a table.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/ajharbinger/rei-deal-drop/internal/ingest"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
	"github.com/ajharbinger/rei-deal-drop/pkg/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "dealscore:", err)
		os.Exit(1)
	}
}

type row struct {
	label  string
	result scoring.ScoreResult
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("dealscore", flag.ContinueOnError)
	fs.SetOutput(out)

	price := fs.String("price", "", "purchase price")
	arv := fs.String("arv", "", "after repair value")
	rehab := fs.String("rehab", "", "rehab cost")
	rent := fs.String("rent", "", "monthly rent")
	sqft := fs.String("sqft", "", "square feet, raises rehab to the per-sqft floor")
	sold := fs.String("sold", "", "realized sale price")
	pool := fs.String("pool", "false", "property has a pool")
	csvPath := fs.String("csv", "", "CSV file with a price,arv,rehab,rent,pool,sold header")
	policyPath := fs.String("policy", "", "scoring policy YAML overlay")
	floor := fs.Float64("min-rehab-per-sqft", ingest.DefaultMinRehabPerSqFt, "rehab floor per square foot")

	if err := fs.Parse(args); err != nil {
		return err
	}

	policy, err := config.LoadScoringPolicy(*policyPath)
	if err != nil {
		return err
	}
	engine, err := scoring.NewScoringEngineWithPolicy(policy)
	if err != nil {
		return err
	}
	opts := ingest.Options{MinRehabPerSqFt: *floor}

	var forms []ingest.DealForm
	var labels []string
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			return err
		}
		defer f.Close()

		forms, labels, err = readCSV(f)
		if err != nil {
			return err
		}
	} else {
		forms = []ingest.DealForm{{
			Price:      ingest.Number(ingest.ParseAmount(*price)),
			ARV:        ingest.Number(ingest.ParseAmount(*arv)),
			Rehab:      ingest.Number(ingest.ParseAmount(*rehab)),
			Rent:       ingest.Number(ingest.ParseAmount(*rent)),
			SquareFeet: ingest.Number(ingest.ParseAmount(*sqft)),
			SoldPrice:  ingest.Number(ingest.ParseAmount(*sold)),
			HasPool:    ingest.Flag(ingest.ParseFlag(*pool)),
		}}
		labels = []string{"1"}
	}

	rows := make([]row, 0, len(forms))
	for i, form := range forms {
		n, err := ingest.Normalize(form, opts)
		if err != nil {
			return fmt.Errorf("deal %s: %w", labels[i], err)
		}
		rows = append(rows, row{label: labels[i], result: engine.Score(n.Financials)})
	}

	render(out, rows)
	return nil
}

// readCSV reads one deal per record. Columns are matched by header name and
// any of them may be missing; an address column labels the row when present.
func readCSV(r io.Reader) ([]ingest.DealForm, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var forms []ingest.DealForm
	var labels []string
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}
		amount := func(name string) ingest.Number {
			return ingest.Number(ingest.ParseAmount(field(name)))
		}

		forms = append(forms, ingest.DealForm{
			Address:    field("address"),
			Price:      amount("price"),
			ARV:        amount("arv"),
			Rehab:      amount("rehab"),
			Rent:       amount("rent"),
			SquareFeet: amount("sqft"),
			SoldPrice:  amount("sold"),
			HasPool:    ingest.Flag(ingest.ParseFlag(field("pool"))),
		})

		label := field("address")
		if label == "" {
			label = fmt.Sprintf("%d", len(forms))
		}
		labels = append(labels, label)
	}
	return forms, labels, nil
}

func render(out io.Writer, rows []row) {
	table := tablewriter.NewWriter(out)
	table.Header("Deal", "Score", "Verdict", "Tier", "MAO", "Cap Rate", "ROI")

	for _, r := range rows {
		mao, capRate, roi := "-", "-", "-"
		if m := r.result.Metrics; m != nil {
			if !r.result.Verdict.IsRealized() {
				mao = fmt.Sprintf("$%.0f", m.MaximumAllowableOffer)
				capRate = fmt.Sprintf("%.1f%%", m.CapRatePercent)
			}
			roi = fmt.Sprintf("%.1f%%", m.ROIPercent)
		}

		table.Append(
			r.label,
			fmt.Sprintf("%d", r.result.Score),
			string(r.result.Verdict),
			string(r.result.Tier),
			mao,
			capRate,
			roi,
		)
	}

	table.Render()
}
