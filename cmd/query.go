package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/h2-custody/internal/api"
	"github.com/sells-group/h2-custody/internal/composition"
	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/provenance"
)

var (
	graphDirection string
	graphMaxDepth  int
	graphMaxNodes  int
)

var graphCmd = &cobra.Command{
	Use:   "graph <process-step-id>",
	Short: "Print the bounded lineage graph around a process step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dir := model.Direction(strings.ToUpper(graphDirection))
		if !dir.Valid() {
			return eris.Wrapf(model.ErrMissingInput, "unknown direction %q", graphDirection)
		}
		var opts []provenance.Option
		if graphMaxDepth > 0 {
			opts = append(opts, provenance.WithMaxDepth(graphMaxDepth))
		}
		if graphMaxNodes > 0 {
			opts = append(opts, provenance.WithMaxNodes(graphMaxNodes))
		}

		svc, st, err := initServices(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		g, err := svc.Provenance.Graph(ctx, args[0], dir, opts...)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), g)
	},
}

var provenanceCmd = &cobra.Command{
	Use:   "provenance <process-step-id>",
	Short: "Print the power, water and hydrogen steps behind a process step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := initServices(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := svc.Provenance.Provenance(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var compositionCmd = &cobra.Command{
	Use:   "composition <bottling-id>",
	Short: "Print the hydrogen color composition of a bottling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := initServices(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		components, err := svc.Composition.AssembleByID(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), api.CompositionResponse{
			ProcessStepID: args[0],
			Components:    components,
			Total:         composition.Total(components),
		})
	},
}

var complianceCmd = &cobra.Command{
	Use:   "compliance <process-step-id>",
	Short: "Evaluate RED geo, time and additionality correlation for a process step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := initServices(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c, err := svc.Compliance.Determine(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphDirection, "direction", string(model.DirectionUp), "UP, DOWN or BOTH")
	graphCmd.Flags().IntVar(&graphMaxDepth, "max-depth", 0, "maximum traversal depth (default from config)")
	graphCmd.Flags().IntVar(&graphMaxNodes, "max-nodes", 0, "maximum number of nodes (default from config)")

	rootCmd.AddCommand(graphCmd, provenanceCmd, compositionCmd, complianceCmd)
}
