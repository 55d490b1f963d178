package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/pipeline"
)

var (
	interpretWorkbook string
	interpretSheet    string
)

var interpretCmd = &cobra.Command{
	Use:   "interpret",
	Short: "Interpret populated workbook rows with the AI provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		wb, err := openWorkbook(interpretWorkbook, interpretSheet)
		if err != nil {
			return err
		}

		ai, err := initProvider()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("audit store unavailable, continuing without it", zap.Error(err))
			st = nil
		} else {
			defer st.Close()
		}

		_, err = pipeline.Interpret(ctx, cfg, wb, ai, pipeline.NewAuditor(ctx, st, "interpret"))
		return err
	},
}

func init() {
	interpretCmd.Flags().StringVar(&interpretWorkbook, "workbook", "", "tracking workbook path (required)")
	interpretCmd.Flags().StringVar(&interpretSheet, "sheet", "", "workbook sheet name (default: first sheet)")
	interpretCmd.MarkFlagRequired("workbook")
	rootCmd.AddCommand(interpretCmd)
}
