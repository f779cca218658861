package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/huuly01092003/Smart-bi/internal/config"
	"github.com/huuly01092003/Smart-bi/internal/importer"
	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/parser"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
)

type groupSummary struct {
	Group   columns.Group `json:"group"`
	Label   string        `json:"label"`
	Columns []string      `json:"columns"`
}

// sheetSummary 单个工作表的识别与列分组结果
type sheetSummary struct {
	Sheet  model.SheetType      `json:"sheet"`
	Title  string               `json:"title"`
	Rows   int                  `json:"rows"`
	Groups []groupSummary       `json:"groups"`
	Weeks  []columns.WeekBucket `json:"weeks,omitempty"`
}

type inspectReport struct {
	Reports  []*parser.ImportReport `json:"reports"`
	Sheets   []sheetSummary         `json:"sheets"`
	Master   model.MasterParams     `json:"masterParams"`
	Warnings []string               `json:"warnings,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect [file...]",
		Short: "Parse workbooks offline and print recognized sheets and column groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := inspectFiles(cmd, args)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}

func inspectFiles(cmd *cobra.Command, paths []string) (*inspectReport, error) {
	files := make([]importer.Input, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, importer.Input{Filename: filepath.Base(p), Data: data})
	}

	cfg := config.DefaultConfig()
	master := cfg.Business.Master
	out, _, err := importer.NewCoordinator(nil, cfg.Business.Classes).Run(cmd.Context(), importer.ImportOptions{
		Files:  files,
		Master: &master,
	})
	if err != nil {
		return nil, err
	}

	report := &inspectReport{
		Reports:  out.Reports,
		Master:   out.Workbook.Master,
		Warnings: out.Warnings,
	}
	for _, t := range out.Workbook.Sheets() {
		ds, err := out.Workbook.Dataset(t)
		if err != nil {
			continue
		}
		cls := columns.Classify(t, ds.Columns)
		var groups []groupSummary
		for _, g := range cls.Order() {
			if members := cls.Members(g); len(members) > 0 {
				groups = append(groups, groupSummary{Group: g, Label: cls.GroupLabel(g), Columns: members})
			}
		}
		report.Sheets = append(report.Sheets, sheetSummary{
			Sheet:  t,
			Title:  t.Title(),
			Rows:   len(ds.Rows),
			Groups: groups,
			Weeks:  cls.Weeks,
		})
	}
	return report, nil
}

func printReport(w io.Writer, r *inspectReport) {
	for _, rep := range r.Reports {
		fmt.Fprintf(w, "%s: %d/%d sheets, %d rows (%d errors)\n",
			rep.Filename, rep.ImportedSheets, rep.TotalSheets, rep.ImportedRows, rep.ErrorRows)
		for _, s := range rep.Sheets {
			fmt.Fprintf(w, "  - %-24s %-14s %s\n", s.SheetName, s.SheetType, s.Status)
		}
	}
	for _, s := range r.Sheets {
		fmt.Fprintf(w, "\n[%s] %s, %d rows\n", s.Sheet, s.Title, s.Rows)
		for _, g := range s.Groups {
			fmt.Fprintf(w, "  %s: %v\n", g.Label, g.Columns)
		}
		for _, wk := range s.Weeks {
			fmt.Fprintf(w, "    %s: %v\n", wk.Label, wk.Columns)
		}
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
