package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SELECT against the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			rows, err := svc.Query(c.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, row := range rows {
				if err := enc.Encode(row); err != nil {
					return fmt.Errorf("encoding row: %w", err)
				}
			}
			return nil
		},
	}
	return cmd
}
