package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/grid"
	"github.com/sells-group/vpat-cli/internal/pipeline"
)

var (
	qualityWorkbook  string
	qualitySheet     string
	qualityChecklist string
	qualityOut       string
)

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Answer the quality checklist against the workbook's conformance data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		wb, err := openWorkbook(qualityWorkbook, qualitySheet)
		if err != nil {
			return err
		}

		out, err := grid.NewXLSX(qualityOut, "Quality")
		if err != nil {
			return err
		}

		ai, err := initProvider()
		if err != nil {
			return err
		}

		if qualityChecklist != "" {
			cfg.Checklist.Path = qualityChecklist
		}

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("audit store unavailable, continuing without it", zap.Error(err))
			st = nil
		} else {
			defer st.Close()
		}

		_, err = pipeline.Quality(ctx, cfg, wb, out, ai, pipeline.NewAuditor(ctx, st, "quality"))
		return err
	},
}

func init() {
	qualityCmd.Flags().StringVar(&qualityWorkbook, "workbook", "", "tracking workbook path (required)")
	qualityCmd.Flags().StringVar(&qualitySheet, "sheet", "", "workbook sheet name (default: first sheet)")
	qualityCmd.Flags().StringVar(&qualityChecklist, "checklist", "", "checklist YAML path (default from config)")
	qualityCmd.Flags().StringVar(&qualityOut, "out", "quality.xlsx", "results workbook path")
	qualityCmd.MarkFlagRequired("workbook")
	rootCmd.AddCommand(qualityCmd)
}
