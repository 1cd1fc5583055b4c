package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"i2console/bridge"
	"i2console/config"
	"i2console/host/serial"
)

func runPorts(_ context.Context, _ *config.Settings, _ *slog.Logger, _ []string) error {
	ports, err := serial.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func openConsole(s *config.Settings) (serial.Port, error) {
	return serial.Open(&serial.Config{
		Device:      s.Serial.Device,
		Baud:        s.Serial.Baud,
		ReadTimeout: s.Serial.ReadTimeout(),
	})
}

// runMonitor copies the console port to stdout and stdin to the port, which
// reaches the master through the device's rx ring.
func runMonitor(ctx context.Context, s *config.Settings, log *slog.Logger, _ []string) error {
	port, err := openConsole(s)
	if err != nil {
		return err
	}
	defer port.Close()
	_ = port.Flush()
	log.Info("monitoring console", "device", s.Serial.Device)

	go func() {
		if _, err := io.Copy(port, os.Stdin); err != nil {
			log.Warn("stdin to console stopped", "err", err)
		}
	}()

	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := port.Read(buf)
		if n > 0 {
			if err := copyOut(os.Stdout, buf[:n]); err != nil {
				return err
			}
		}
		if err != nil {
			return fmt.Errorf("console read: %w", err)
		}
	}
	return ctx.Err()
}

func runTelemetry(_ context.Context, _ *config.Settings, _ *slog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: telemetry <file>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	return bridge.ReadTelemetry(f, func(t bridge.Telemetry) error {
		fmt.Printf("%s addr=0x%02X stretch=%t tx=%d rx=%d txb=%d rxb=%d err=%d usb=%t\n",
			t.At.Format("15:04:05.000"), t.Address, t.ClockStretch, t.TxAvailable, t.RxAvailable,
			t.TxBytes, t.RxBytes, t.Errors(), t.Connected)
		return nil
	})
}
