package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/soilcn-simulator/core"
)

func newPETCmd() *cobra.Command {
	var (
		lat   float64
		year  int
		temps []float64
	)
	cmd := &cobra.Command{
		Use:   "pet",
		Short: "Print Thornthwaite potential evapotranspiration for one year",
		Example: `  soilcn pet --lat 52.5 --temps 3,4,6,8,12,15,17,17,14,10,6,4
  soilcn pet --lat 0 --year 2004 --temps 20,20,20,20,20,20,20,20,20,20,20,20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pet, err := core.Thornthwaite(temps, lat, year)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MONTH\tTAIR\tPET_MM")
			for i, v := range pet {
				fmt.Fprintf(w, "%s\t%.1f\t%.2f\n", time.Month(i+1), temps[i], v)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().IntVar(&year, "year", 2001, "calendar year, sets the length of February")
	cmd.Flags().Float64SliceVar(&temps, "temps", nil, "twelve comma-separated mean monthly air temperatures (deg C)")
	_ = cmd.MarkFlagRequired("temps")
	return cmd
}
