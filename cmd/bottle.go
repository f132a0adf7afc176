package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/bottling"
	"github.com/sells-group/h2-custody/internal/model"
)

var (
	bottleStorageUnit string
	bottleColors      []string
	bottleAmounts     []string
	bottleExecutedBy  string
	bottleRecordedBy  string
	bottleOwner       string
)

var bottleCmd = &cobra.Command{
	Use:   "bottle",
	Short: "Fill a bottle from a storage unit's available hydrogen",
	Example: `  h2-custody bottle --storage-unit tank-1 --color GREEN --amount 5 --color YELLOW --amount 2.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filling, err := parseFilling(bottleColors, bottleAmounts)
		if err != nil {
			return err
		}

		svc, st, err := initServices(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		now := time.Now().UTC()
		plan, err := svc.Bottling.Bottle(ctx, bottling.Request{
			StorageUnitID: bottleStorageUnit,
			ExecutedByID:  bottleExecutedBy,
			RecordedByID:  bottleRecordedBy,
			OwnerID:       bottleOwner,
			StartedAt:     now,
			EndedAt:       now,
			Filling:       filling,
		})
		if err != nil {
			return err
		}

		zap.L().Info("bottling recorded",
			zap.String("bottling_id", plan.Bottling.ID),
			zap.String("storage_unit_id", bottleStorageUnit),
			zap.Int("batches", len(plan.Selection.BatchesForBottle)),
			zap.Int("splits", len(plan.Selection.ProcessStepsToBeSplit)),
		)
		return printJSON(cmd.OutOrStdout(), plan)
	},
}

// parseFilling pairs each --color with the --amount at the same position.
func parseFilling(colors, amounts []string) ([]bottling.Filling, error) {
	if len(colors) != len(amounts) {
		return nil, eris.Wrapf(model.ErrMissingInput, "got %d colors and %d amounts", len(colors), len(amounts))
	}
	out := make([]bottling.Filling, 0, len(colors))
	for i, c := range colors {
		amount, err := decimal.NewFromString(amounts[i])
		if err != nil {
			return nil, eris.Wrapf(model.ErrMissingInput, "amount %q", amounts[i])
		}
		out = append(out, bottling.Filling{
			Color:  model.HydrogenColor(strings.ToUpper(c)),
			Amount: amount,
		})
	}
	return out, nil
}

func init() {
	bottleCmd.Flags().StringVar(&bottleStorageUnit, "storage-unit", "", "storage unit to draw hydrogen from")
	bottleCmd.Flags().StringArrayVar(&bottleColors, "color", nil, "hydrogen color to fill (repeatable)")
	bottleCmd.Flags().StringArrayVar(&bottleAmounts, "amount", nil, "amount for the matching --color (repeatable)")
	bottleCmd.Flags().StringVar(&bottleExecutedBy, "executed-by", "", "unit executing the bottling")
	bottleCmd.Flags().StringVar(&bottleRecordedBy, "recorded-by", "", "user recording the bottling")
	bottleCmd.Flags().StringVar(&bottleOwner, "owner", "", "owner of the bottled hydrogen")
	_ = bottleCmd.MarkFlagRequired("storage-unit")

	rootCmd.AddCommand(bottleCmd)
}
