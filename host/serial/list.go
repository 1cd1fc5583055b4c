//go:build !tinygo

package serial

import (
	"fmt"
	"sort"

	bugserial "go.bug.st/serial"
)

// List returns the serial ports present on the host, sorted by name.
func List() ([]string, error) {
	ports, err := bugserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
