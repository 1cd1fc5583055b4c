package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"

	"i2console/bridge"
	"i2console/config"
	"i2console/host/emulator"
	"i2console/host/logging"
	"i2console/host/serial"
)

// outputOnly is the console transport when the emulator's console side is the
// terminal itself: output is printed, and input comes only from the master
// prompt, so nothing is ever read.
type outputOnly struct{ w io.Writer }

func (o outputOnly) Connected() bool             { return true }
func (o outputOnly) Read([]byte) (int, error)    { return 0, nil }
func (o outputOnly) Write(p []byte) (int, error) { return o.w.Write(p) }

func runEmulate(ctx context.Context, s *config.Settings, _ *slog.Logger, _ []string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "master> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Route logs through readline so they do not garble the prompt.
	if _, err := logging.Install(rl.Stderr(), s.LogLevel); err != nil {
		return err
	}

	var transport bridge.Transport = outputOnly{w: rl.Stdout()}
	if s.Emulator.Console != "" {
		port, err := serial.Open(&serial.Config{
			Device:      s.Emulator.Console,
			Baud:        s.Serial.Baud,
			ReadTimeout: s.Serial.ReadTimeout(),
		})
		if err != nil {
			return err
		}
		pump := serial.NewPump(port)
		defer pump.Close()
		transport = pump
	}

	emu, err := emulator.New(emulator.Options{
		FlashImage:   s.Emulator.FlashImage,
		Interval:     s.Emulator.TelemetryInterval(),
		TelemetryLog: s.Emulator.TelemetryLog,
	}, transport)
	if err != nil {
		return err
	}
	defer emu.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- emu.Run(ctx) }()

	fmt.Fprintln(rl.Stdout(), "I2Console emulator. Type 'help' for master commands.")
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			break
		}
		line = strings.TrimSpace(line)
		if err := emu.Exec(line, rl.Stdout()); err != nil {
			if errors.Is(err, emulator.ErrQuit) {
				break
			}
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
	}

	cancel()
	return <-done
}
