package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/pipeline"
)

var (
	extractWorkbook string
	extractSheet    string
	extractDocs     []string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract conformance data from VPAT documents into the workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		wb, err := openWorkbook(extractWorkbook, extractSheet)
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

		_, err = pipeline.Extract(ctx, cfg, wb, extractDocs, pipeline.NewAuditor(ctx, st, "extract"))
		return err
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractWorkbook, "workbook", "", "tracking workbook path (required)")
	extractCmd.Flags().StringVar(&extractSheet, "sheet", "", "workbook sheet name (default: first sheet)")
	extractCmd.Flags().StringArrayVar(&extractDocs, "doc", nil, "source VPAT document, repeatable; later documents win on conflicts")
	extractCmd.MarkFlagRequired("workbook")
	extractCmd.MarkFlagRequired("doc")
	rootCmd.AddCommand(extractCmd)
}
