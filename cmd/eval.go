package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/regqa/pkg/eval"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score the pipeline against a hallucination regression set",
	Long: `Ask every case in the regression set without session history, score each
answer from 0 (grounded) to 3 (fabrication) and write the raw results and a
per-category summary as JSON.

Examples:
  regqa eval --cases cases.json
  regqa eval --cases cases.yaml --out reports/nightly`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().String("cases", "", "JSON or YAML file with the regression cases")
	evalCmd.Flags().String("out", "reports", "directory for the report files")
	_ = evalCmd.MarkFlagRequired("cases")
}

func runEval(cmd *cobra.Command, args []string) error {
	casesPath, _ := cmd.Flags().GetString("cases")
	outDir, _ := cmd.Flags().GetString("out")
	ctx := cmd.Context()

	cases, err := eval.LoadCases(casesPath)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no cases in %s", casesPath)
	}

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer a.Close()
	if !a.retriever.Ready() {
		color.Yellow("Index not loaded; answers will be the not-ready message.")
	}

	bar := getProgressBar(len(cases), "Evaluating cases...")
	runner := eval.NewRunner(a.pipeline, logger.Named("eval"))
	runner.OnResult = func(eval.Result) {
		_ = bar.Add(1)
	}

	results, err := runner.Run(ctx, cases)
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("evaluation interrupted after %d cases: %w", len(results), err)
	}

	report := eval.GenerateReport(results)
	if err := eval.SaveReports(outDir, results, report); err != nil {
		return err
	}

	printReport(report)
	color.Green("\n✓ Reports written to %s\n", outDir)
	return nil
}

func printReport(report eval.Report) {
	s := report.Summary
	fmt.Printf("\n%d cases\n", s.TotalTests)
	rateColor(s.HallucinationRate)("Hallucination rate:        %.2f%% (%d)", s.HallucinationRate*100, s.TotalHallucinations)
	rateColor(s.SevereHallucinationRate)("Severe hallucination rate: %.2f%% (%d)", s.SevereHallucinationRate*100, s.SevereHallucinations)

	categories := make([]string, 0, len(report.ByCategory))
	for c := range report.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	fmt.Println()
	for _, c := range categories {
		stats := report.ByCategory[c]
		rateColor(stats.HallucinationRate)("  %-24s %3d cases  %6.2f%%", c, stats.TotalTests, stats.HallucinationRate*100)
	}
}

func rateColor(rate float64) func(format string, a ...interface{}) {
	switch {
	case rate == 0:
		return color.Green
	case rate < 0.2:
		return color.Yellow
	default:
		return color.Red
	}
}
