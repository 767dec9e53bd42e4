// Command mpx-bridge listens to an MPX alarm panel bus, publishes the events
// it recognises to MQTT and transmits keypad keys on request.
package main

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/sweeney/mpx-bridge/internal/bus"
	"github.com/sweeney/mpx-bridge/internal/gpio"
)

// Backend names accepted by --backend.
const (
	backendGPIO   = "gpiocdev"
	backendSerial = "serial"
)

// busFlags are the line settings shared by every subcommand.
type busFlags struct {
	backend    string
	chip       string
	serialPort string
	rxPin      int
	txPin      int
	invertRx   bool
	invertTx   bool
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	bf := &busFlags{}
	root := &cobra.Command{
		Use:   "mpx-bridge",
		Short: "MPX alarm bus bridge",
		Long: `mpx-bridge - decode and drive the MPX keypad/zone bus.

The receive line is watched for panel traffic; recognised words become
events (ALARM_ARMED, SENSOR_Z1, ...) which "run" publishes to MQTT.
Keys can be injected onto the bus as if pressed on a keypad.

Backends:
  gpiocdev: --chip gpiochip0 --rx-pin 17 --tx-pin 27
  serial:   --serial-port /dev/ttyUSB0 (CTS receives, RTS transmits)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&bf.backend, "backend", backendGPIO, "line backend (gpiocdev or serial)")
	pf.StringVar(&bf.chip, "chip", "gpiochip0", "GPIO chip (gpiocdev backend)")
	pf.StringVar(&bf.serialPort, "serial-port", "/dev/ttyUSB0", "serial device (serial backend)")
	pf.IntVar(&bf.rxPin, "rx-pin", gpio.DefaultPinRx, "BCM pin number of the receive line")
	pf.IntVar(&bf.txPin, "tx-pin", gpio.DefaultPinTx, "BCM pin number of the transmit line")
	pf.BoolVar(&bf.invertRx, "invert-rx", true, "receive line reads 1 when the bus is asserted")
	pf.BoolVar(&bf.invertTx, "invert-tx", true, "transmit line writes 1 to assert the bus")
	pf.BoolVar(&bf.debug, "debug", false, "log bus diagnostics")

	root.AddCommand(
		newRunCmd(bf),
		newSendCmd(bf),
		newStateCmd(bf),
		newMonitorCmd(bf),
	)
	return root
}

func (bf *busFlags) pins() (rx, tx gpio.PinConfig) {
	rx = gpio.PinConfig{Pin: bf.rxPin, Inverted: bf.invertRx}
	tx = gpio.PinConfig{Pin: bf.txPin, Inverted: bf.invertTx}
	return rx, tx
}

// openBus opens the configured backend.
func (bf *busFlags) openBus(clock gpio.Clock) (gpio.Bus, error) {
	rx, tx := bf.pins()
	switch bf.backend {
	case backendGPIO:
		b, err := gpio.NewRealBus(bf.chip, rx, tx)
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		return b, nil
	case backendSerial:
		b, err := gpio.NewSerialBus(bf.serialPort, rx, tx, clock)
		if err != nil {
			return nil, fmt.Errorf("init serial: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", bf.backend, backendGPIO, backendSerial)
	}
}

// newController builds a controller over pins with the shared flags applied.
func (bf *busFlags) newController(pins gpio.Bus, clock gpio.Clock, opts ...bus.Option) *bus.Controller {
	rx, tx := bf.pins()
	base := []bus.Option{
		bus.WithDebug(bf.debug),
		bus.WithPinConfig(rx, tx),
	}
	return bus.New(pins, clock, append(base, opts...)...)
}

// startBus opens the backend and starts a controller on it. The returned
// stop function closes both.
func (bf *busFlags) startBus(opts ...bus.Option) (*bus.Controller, func(), error) {
	clock := gpio.SystemClock{}
	pins, err := bf.openBus(clock)
	if err != nil {
		return nil, nil, err
	}
	ctrl := bf.newController(pins, clock, opts...)
	if err := ctrl.Begin(); err != nil {
		pins.Close()
		return nil, nil, fmt.Errorf("start bus: %w", err)
	}
	return ctrl, func() { stopBus(ctrl, pins) }, nil
}

// stopBus closes the controller then the pins. Failures are logged and the
// pins are closed regardless.
func stopBus(ctrl io.Closer, pins io.Closer) {
	if err := ctrl.Close(); err != nil {
		log.Printf("close controller: %v", err)
	}
	if err := pins.Close(); err != nil {
		log.Printf("close bus: %v", err)
	}
}
