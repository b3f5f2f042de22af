package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aletheia-ai/aegis/pkg/bias"
	"github.com/aletheia-ai/aegis/pkg/config"
	"github.com/aletheia-ai/aegis/pkg/engine"
	"github.com/aletheia-ai/aegis/pkg/ledger"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/report"
)

// outcomesFile is the JSON shape of the optional -outcomes input.
type outcomesFile struct {
	Outcomes            []bias.OutcomeRecord `json:"outcomes"`
	ProtectedAttributes []string             `json:"protected_attributes"`
	FairnessMetrics     []string             `json:"fairness_metrics,omitempty"`
	SignificanceLevel   float64              `json:"significance_level,omitempty"`
}

// runAssessCmd runs a one-shot in-memory assessment and prints the run as
// JSON. With -framework it also generates and prints the compliance report.
func runAssessCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("assess", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profilePath := fs.String("profile", "", "path to the system profile JSON")
	outcomesPath := fs.String("outcomes", "", "path to the decision outcomes JSON (optional)")
	framework := fs.String("framework", "", "compliance framework to report on (optional)")
	rulesPath := fs.String("rules", "", "path to a rule set YAML (optional)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *profilePath == "" {
		fmt.Fprintln(stderr, "assess: -profile is required")
		return 2
	}

	raw, err := os.ReadFile(*profilePath)
	if err != nil {
		fmt.Fprintf(stderr, "assess: %v\n", err)
		return 1
	}
	p, err := profile.Parse(raw)
	if err != nil {
		fmt.Fprintf(stderr, "assess: %v\n", err)
		return 1
	}

	req := engine.SubmitRequest{Profile: p, Actor: "cli"}
	if *outcomesPath != "" {
		rawOutcomes, err := os.ReadFile(*outcomesPath)
		if err != nil {
			fmt.Fprintf(stderr, "assess: %v\n", err)
			return 1
		}
		var of outcomesFile
		if err := json.Unmarshal(rawOutcomes, &of); err != nil {
			fmt.Fprintf(stderr, "assess: outcomes parse failed: %v\n", err)
			return 1
		}
		req.Outcomes = of.Outcomes
		req.ProtectedAttributes = of.ProtectedAttributes
		req.FairnessMetrics = of.FairnessMetrics
		req.SignificanceLevel = of.SignificanceLevel
	}

	ruleSet, err := config.LoadRuleSet(*rulesPath)
	if err != nil {
		fmt.Fprintf(stderr, "assess: %v\n", err)
		return 1
	}

	led := ledger.New(ledger.NewMemoryStore())
	eng, err := engine.New(led, engine.Options{RuleSet: ruleSet})
	if err != nil {
		fmt.Fprintf(stderr, "assess: %v\n", err)
		return 1
	}

	ctx := context.Background()
	run, err := eng.Submit(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "assess: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		fmt.Fprintf(stderr, "assess: %v\n", err)
		return 1
	}

	if *framework != "" {
		rep, err := eng.Report(ctx, run.ID, report.Framework(*framework), 0)
		if err != nil {
			fmt.Fprintf(stderr, "assess: %v\n", err)
			return 1
		}
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(stderr, "assess: %v\n", err)
			return 1
		}
	}
	return 0
}
