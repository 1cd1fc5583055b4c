// Command i2console talks to an I2Console from a Linux host: over an I2C bus
// as the master, over the USB console port, or to a fully emulated device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"i2console/config"
	"i2console/host/logging"
	"i2console/protocol"
)

var (
	configPath = flag.String("config", "", "YAML settings file")
	busName    = flag.String("bus", "", "I2C bus name, e.g. /dev/i2c-1 (empty picks the first bus)")
	address    = flag.String("addr", "", "device address, e.g. 0x37")
	device     = flag.String("device", "", "console serial device")
	logLevel   = flag.String("log-level", "", "debug, info, warn or error")
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, s *config.Settings, log *slog.Logger, args []string) error
}

var commands = []command{
	{"probe", "detect the device and print its registers", runProbe},
	{"set-address", "<addr>  move the device to a new address", runSetAddress},
	{"clock-stretch", "[on|off]  show or set clock stretching", runClockStretch},
	{"send", "<text>|-  write text (or stdin) to the console", runSend},
	{"recv", "[-follow]  print console input waiting for the master", runRecv},
	{"ports", "list serial ports", runPorts},
	{"monitor", "attach the terminal to the console serial port", runMonitor},
	{"emulate", "run an emulated device with an interactive master prompt", runEmulate},
	{"telemetry", "<file>  dump a CBOR telemetry log", runTelemetry},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: i2console [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-14s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	settings, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	name, args := flag.Arg(0), flag.Args()[1:]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		usage()
		os.Exit(2)
	}

	log, err := logging.Install(os.Stderr, settings.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, settings, log, args); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadSettings reads -config when given and lets explicit flags override it.
func loadSettings() (*config.Settings, error) {
	s := config.DefaultSettings()
	if *configPath != "" {
		var err error
		if s, err = config.LoadSettings(*configPath); err != nil {
			return nil, err
		}
	}

	var errs []error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bus":
			s.Bus.Name = *busName
		case "addr":
			addr, err := protocol.ParseAddress(*address)
			if err != nil {
				errs = append(errs, err)
				return
			}
			s.Bus.Address = addr
		case "device":
			s.Serial.Device = *device
		case "log-level":
			s.LogLevel = strings.ToLower(*logLevel)
		}
	})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, s.Validate()
}

// sleepCtx waits d or until ctx ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func copyOut(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	return err
}
