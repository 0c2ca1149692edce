package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"dataguard/internal/marketdata"
	"dataguard/internal/provenance"
)

// ValidateOptions configure a validation run.
type ValidateOptions struct {
	InputPath string
	Volume    *float64
	AsJSON    bool
}

// Validate runs the provenance engine over an observation document and
// prints the resulting record. A fail verdict is reported through the exit
// status so scripts can branch on it.
func (a *App) Validate(ctx context.Context, opts ValidateOptions) error {
	set, err := marketdata.LoadObservationSet(opts.InputPath)
	if err != nil {
		return err
	}
	if opts.Volume != nil {
		set.Volume = opts.Volume
	}

	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	record := svcs.engine.EvaluateObservations(ctx, set)

	if opts.AsJSON {
		return printJSON(record)
	}
	printProvenance(record)

	if record.ValidationStatus == provenance.StatusFail {
		return fmt.Errorf("metric %q failed validation", record.Metric)
	}
	return nil
}

func printProvenance(p provenance.Provenance) {
	fmt.Fprintf(os.Stdout, "metric: %s\nvalue: %g\nstatus: %s\n", p.Metric, p.Value, p.ValidationStatus)
	if p.Consensus != nil {
		fmt.Fprintf(os.Stdout, "consensus (%s): %g, max deviation %.2f%%\n",
			p.Consensus.Method, p.Consensus.Value, p.Consensus.DeviationPct)
		if len(p.Consensus.Outliers) > 0 {
			fmt.Fprintf(os.Stdout, "outliers: %s\n", strings.Join(p.Consensus.Outliers, ", "))
		}
	}
	for _, msg := range p.ValidationMessages {
		fmt.Fprintf(os.Stdout, "  - %s\n", msg)
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Source\tType\tUpdated (UTC)\tStale\tConfidence\tStatus\tStale Count")
	for _, src := range p.Sources {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%v\t%d\t%s\t%d\n",
			src.Name,
			src.Type,
			src.Timestamp.UTC().Format(time.RFC3339),
			src.IsStale,
			src.Confidence,
			src.Status,
			src.StaleCount,
		)
	}
	writer.Flush()
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
