package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sweeney/mpx-bridge/internal/gpio"
)

func newStateCmd(bf *busFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current receive line level and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pins, err := bf.openBus(gpio.SystemClock{})
			if err != nil {
				return err
			}
			defer pins.Close()

			asserted, err := pins.ReadRx()
			if err != nil {
				return fmt.Errorf("read rx line: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "RX: %s (pin %d, inverted: %v)\n", levelString(asserted), bf.rxPin, bf.invertRx)
			return nil
		},
	}
}

func levelString(asserted bool) string {
	if asserted {
		return "ASSERTED"
	}
	return "RELEASED"
}
