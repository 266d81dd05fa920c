package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fundsheet/fundsheet/internal/domain/export"
	"github.com/fundsheet/fundsheet/internal/domain/extract/filter"
	"github.com/fundsheet/fundsheet/internal/domain/extract/normalizer"
	"github.com/fundsheet/fundsheet/internal/domain/extract/parser"
	"github.com/fundsheet/fundsheet/internal/domain/extract/pdftext"
	"github.com/fundsheet/fundsheet/internal/domain/extract/service"
	"github.com/fundsheet/fundsheet/internal/domain/extract/sniffer"
)

type processFlags struct {
	out            string
	format         string
	expectedType   string
	callTypes      []string
	minBudget      float64
	openingBefore  string
	deadlineBefore string

	callFamily string
	budgetMin  float64
	budgetMax  float64
	step       string
}

func newProcessCmd() *cobra.Command {
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "process <pdf>...",
		Short: "Extract calls from PDFs into a spreadsheet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "output file (default: first input with new extension)")
	cmd.Flags().StringVar(&flags.format, "format", "xlsx", "output format: xlsx or csv")
	cmd.Flags().StringVar(&flags.expectedType, "expected-type", "", "fail unless the documents are this family (horizon or edf)")
	cmd.Flags().StringSliceVar(&flags.callTypes, "call-types", nil, "keep only these call types (e.g. RIA,IA)")
	cmd.Flags().Float64Var(&flags.minBudget, "min-budget", 0, "minimum per-project budget in EUR millions")
	cmd.Flags().StringVar(&flags.openingBefore, "opening-before", "", "keep rows opening on or before this date (e.g. 2026, 2026-Q2, 2026-06-30)")
	cmd.Flags().StringVar(&flags.deadlineBefore, "deadline-before", "", "keep rows closing on or before this date")
	cmd.Flags().StringVar(&flags.callFamily, "call-family", "", "EDF only: keep rows whose call family matches (RA, DA, CSA)")
	cmd.Flags().Float64Var(&flags.budgetMin, "edf-budget-min", 0, "EDF only: minimum topic budget in EUR millions")
	cmd.Flags().Float64Var(&flags.budgetMax, "edf-budget-max", 0, "EDF only: maximum topic budget in EUR millions")
	cmd.Flags().StringVar(&flags.step, "step", "", "EDF only: keep rows by STEP eligibility (yes or no)")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string, flags processFlags) error {
	if flags.format != "xlsx" && flags.format != "csv" {
		return fmt.Errorf("unsupported format %q", flags.format)
	}

	var (
		allRows  []parser.Row
		detected sniffer.Family
	)
	for _, path := range args {
		text, err := pdftext.ExtractFile(path)
		if err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}
		text = normalizer.NormalizeLines(text)

		family := sniffer.Detect(text)
		if family == sniffer.FamilyUnknown {
			return fmt.Errorf("%s: %w", path, service.ErrUnknownFamily)
		}
		if flags.expectedType != "" && string(family) != strings.ToLower(flags.expectedType) {
			return fmt.Errorf("%s: %w", path, service.ErrFamilyMismatch)
		}
		if detected != "" && family != detected {
			return service.ErrMixedFamilies
		}
		detected = family

		var rows []parser.Row
		if family == sniffer.FamilyEDF {
			rows = parser.ParseEDF(text)
		} else {
			rows = parser.ParseHorizon(text)
		}
		for i := range rows {
			rows[i].SourcePDF = filepath.Base(path)
		}
		allRows = append(allRows, rows...)
	}

	shared := filter.Options{
		CallTypes:      flags.callTypes,
		MinBudgetM:     &flags.minBudget,
		OpeningFilter:  flags.openingBefore,
		DeadlineFilter: flags.deadlineBefore,
	}

	var rows []parser.Row
	if detected == sniffer.FamilyEDF {
		filter.FinalizeEDF(allRows)
		rows = filter.ApplyEDF(filter.TopicLevel(allRows), edfOptions(flags))
		rows = filter.Apply(rows, shared, detected)
		rows = append(rows, filter.CallLevel(allRows)...)
	} else {
		filter.FinalizeHorizon(allRows)
		rows = filter.Apply(allRows, shared, detected)
	}

	out := flags.out
	if out == "" {
		base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
		out = base + "." + flags.format
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()

	if flags.format == "csv" {
		err = export.WriteCSV(f, rows, detected)
	} else {
		err = export.WriteXLSX(f, rows, detected)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows (%s)\n", out, len(rows), detected)
	return nil
}

func edfOptions(flags processFlags) filter.EDFOptions {
	opts := filter.EDFOptions{CallFamily: flags.callFamily}
	if flags.budgetMin > 0 {
		opts.BudgetMinM = &flags.budgetMin
	}
	if flags.budgetMax > 0 {
		opts.BudgetMaxM = &flags.budgetMax
	}
	switch strings.ToLower(flags.step) {
	case "yes":
		v := true
		opts.Step = &v
	case "no":
		v := false
		opts.Step = &v
	}
	return opts
}
