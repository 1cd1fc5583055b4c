package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"i2console/config"
	"i2console/host/client"
	"i2console/protocol"
)

// openDevice opens the configured I2C bus and checks the device is there.
func openDevice(s *config.Settings, log *slog.Logger) (*client.Device, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(s.Bus.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus %q: %w", s.Bus.Name, err)
	}
	speed := physic.Frequency(s.Bus.SpeedKHz) * physic.KiloHertz
	if err := bus.SetSpeed(speed); err != nil {
		log.Warn("bus speed not applied", "speed", speed, "err", err)
	}

	dev := client.New(bus, s.Bus.Address)
	if err := dev.Detect(); err != nil {
		_ = bus.Close()
		return nil, nil, err
	}
	log.Debug("device detected", "dev", dev.String())
	return dev, bus, nil
}

func runProbe(_ context.Context, s *config.Settings, log *slog.Logger, _ []string) error {
	dev, closer, err := openDevice(s, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	version, err := dev.Version()
	if err != nil {
		return err
	}
	addr, err := dev.Address()
	if err != nil {
		return err
	}
	stretch, err := dev.ClockStretch()
	if err != nil {
		return err
	}
	pending, err := dev.Pending()
	if err != nil {
		return err
	}

	fmt.Printf("I2Console at 0x%02X on %s\n", s.Bus.Address, closer)
	fmt.Printf("  device id:     0x%04X\n", protocol.DeviceID)
	fmt.Printf("  firmware:      %s\n", version)
	fmt.Printf("  address:       0x%02X\n", addr)
	fmt.Printf("  clock stretch: %t\n", stretch)
	fmt.Printf("  tx pending:    %d\n", pending.Tx)
	fmt.Printf("  rx pending:    %d\n", pending.Rx)
	return nil
}

func runSetAddress(_ context.Context, s *config.Settings, log *slog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: set-address <addr>")
	}
	addr, err := protocol.ParseAddress(args[0])
	if err != nil {
		return err
	}
	dev, closer, err := openDevice(s, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := dev.SetAddress(addr); err != nil {
		return err
	}
	// The device saves the record from its main loop; give it a moment
	// before confirming at the new address.
	time.Sleep(50 * time.Millisecond)
	if err := dev.Detect(); err != nil {
		return fmt.Errorf("device did not answer at 0x%02X: %w", addr, err)
	}
	fmt.Printf("Device moved 0x%02X -> 0x%02X\n", s.Bus.Address, addr)
	return nil
}

func runClockStretch(_ context.Context, s *config.Settings, log *slog.Logger, args []string) error {
	dev, closer, err := openDevice(s, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if len(args) == 0 {
		on, err := dev.ClockStretch()
		if err != nil {
			return err
		}
		fmt.Printf("clock stretch: %t\n", on)
		return nil
	}
	switch args[0] {
	case "on":
		return dev.SetClockStretch(true)
	case "off":
		return dev.SetClockStretch(false)
	}
	return fmt.Errorf("clock-stretch: want on or off, got %q", args[0])
}

func runSend(_ context.Context, s *config.Settings, log *slog.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: send <text>|-")
	}
	dev, closer, err := openDevice(s, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if len(args) == 1 && args[0] == "-" {
		n, err := io.Copy(dev, os.Stdin)
		log.Debug("sent stdin", "bytes", n)
		return err
	}
	_, err = dev.Write([]byte(strings.Join(args, " ") + "\n"))
	return err
}

func runRecv(ctx context.Context, s *config.Settings, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("recv", flag.ContinueOnError)
	follow := fs.Bool("follow", false, "keep polling for input")
	interval := fs.Duration("interval", 50*time.Millisecond, "poll interval with -follow")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dev, closer, err := openDevice(s, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	buf := make([]byte, 255)
	for {
		n, err := dev.Read(buf)
		if err != nil {
			return err
		}
		if n > 0 {
			if err := copyOut(os.Stdout, buf[:n]); err != nil {
				return err
			}
			continue
		}
		if !*follow {
			return nil
		}
		if err := sleepCtx(ctx, *interval); err != nil {
			return err
		}
	}
}
