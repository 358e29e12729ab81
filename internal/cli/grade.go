package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"competition-grader/internal/config"
)

// NewGradeCmd auto-grades one MCQ submission and prints the resolution.
func NewGradeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "grade <submission-id>",
		Short: "Auto-grade an MCQ submission and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := newService(cfg, b).AutoGrade(ctx, args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
