package emulator

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"i2console/protocol"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

// Exec runs one master prompt command against the emulated device and writes
// the result to out.
func (e *Emulator) Exec(line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	m := e.master

	switch cmd {
	case "help", "?":
		printHelp(out)

	case "quit", "exit", "q":
		return ErrQuit

	case "detect":
		if err := m.Detect(); err != nil {
			return err
		}
		fmt.Fprintln(out, "I2Console detected")

	case "version":
		v, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)

	case "send":
		text := strings.TrimPrefix(strings.TrimSpace(line), cmd)
		text = strings.TrimSpace(text) + "\n"
		if _, err := m.Write([]byte(text)); err != nil {
			return err
		}

	case "recv":
		buf := make([]byte, 256)
		n, err := m.Read(buf)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%q\n", buf[:n])

	case "addr":
		if len(args) == 0 {
			addr, err := m.Address()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "0x%02X\n", addr)
			return nil
		}
		addr, err := protocol.ParseAddress(args[0])
		if err != nil {
			return err
		}
		if err := m.SetAddress(addr); err != nil {
			return err
		}
		fmt.Fprintf(out, "moved to 0x%02X\n", addr)

	case "stretch":
		if len(args) == 0 {
			on, err := m.ClockStretch()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, onOff(on))
			return nil
		}
		switch args[0] {
		case "on":
			return m.SetClockStretch(true)
		case "off":
			return m.SetClockStretch(false)
		default:
			return fmt.Errorf("stretch: want on or off, got %q", args[0])
		}

	case "pending":
		p, err := m.Pending()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "tx=%d rx=%d\n", p.Tx, p.Rx)

	case "status":
		t := e.Telemetry()
		fmt.Fprintf(out, "addr=0x%02X stretch=%s tx=%d/%d rx=%d/%d errors=%d usb=%t pending=%t\n",
			t.Address, onOff(t.ClockStretch), t.TxAvailable, TxCapacity, t.RxAvailable, RxCapacity,
			t.Errors(), t.Connected, t.ConfigPending)

	case "abort":
		n := 1
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 {
				return fmt.Errorf("abort: bad byte count %q", args[0])
			}
			n = v
		}
		e.bus.AbortNext(n)

	default:
		return fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Master commands:")
	fmt.Fprintln(out, "  detect          - check the device ID")
	fmt.Fprintln(out, "  version         - read the firmware version")
	fmt.Fprintln(out, "  send <text>     - write a line to the console")
	fmt.Fprintln(out, "  recv            - read pending console input")
	fmt.Fprintln(out, "  addr [new]      - show or change the slave address")
	fmt.Fprintln(out, "  stretch [on|off]- show or set clock stretching")
	fmt.Fprintln(out, "  pending         - ring fill levels")
	fmt.Fprintln(out, "  status          - device telemetry")
	fmt.Fprintln(out, "  abort [n]       - abort the next transaction after n bytes")
	fmt.Fprintln(out, "  quit            - exit")
}
