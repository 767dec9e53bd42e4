package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sweeney/mpx-bridge/internal/bus"
	"github.com/sweeney/mpx-bridge/internal/logic"
	"github.com/sweeney/mpx-bridge/internal/mqtt"
)

func newSendCmd(bf *busFlags) *cobra.Command {
	var keys []string
	cmd := &cobra.Command{
		Use:   "send [DIGITS]",
		Short: "Transmit keys on the bus and exit",
		Example: `  mpx-bridge send 1234
  mpx-bridge send --key ZONA_OUT
  mpx-bridge send -k P -k ZONA_IN 0000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var digits string
			if len(args) == 1 {
				digits = args[0]
			}
			plan, err := planSend(keys, digits)
			if err != nil {
				return err
			}
			ctrl, stop, err := bf.startBus()
			if err != nil {
				return err
			}
			defer stop()
			return sendAll(ctrl, plan, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "key name to send, repeatable (e.g. ZONA_IN, PANIC_LONG)")
	return cmd
}

// planSend validates everything up front so nothing reaches the bus when
// any part of the request is bad. Named keys go first, then digits.
func planSend(keys []string, digits string) ([]mqtt.Command, error) {
	if len(keys) == 0 && digits == "" {
		return nil, errors.New("nothing to send: give DIGITS or --key")
	}
	var plan []mqtt.Command
	for _, name := range keys {
		k, err := logic.ParseKey(name)
		if err != nil {
			return nil, err
		}
		plan = append(plan, mqtt.Command{Key: k})
	}
	if digits != "" {
		for _, r := range digits {
			if _, ok := logic.DigitKey(r); !ok {
				return nil, fmt.Errorf("%q: %w", digits, bus.ErrNotDigit)
			}
		}
		plan = append(plan, mqtt.Command{Digits: digits})
	}
	return plan, nil
}

func sendAll(ctrl *bus.Controller, plan []mqtt.Command, out io.Writer) error {
	for _, c := range plan {
		if err := execute(ctrl, c); err != nil {
			return fmt.Errorf("send %s: %w", c, err)
		}
		fmt.Fprintf(out, "sent %s\n", c)
	}
	return nil
}
