package bridge

import "time"

// Telemetry is the read-only status snapshot handed to a StatusDisplay.
// Field keys are fixed integers so encoded snapshots stay compact and stable.
type Telemetry struct {
	At            time.Time `cbor:"1,keyasint"`
	Address       uint8     `cbor:"2,keyasint"`
	ClockStretch  bool      `cbor:"3,keyasint"`
	TxAvailable   uint16    `cbor:"4,keyasint"`
	RxAvailable   uint16    `cbor:"5,keyasint"`
	TxBytes       uint32    `cbor:"6,keyasint"`
	RxBytes       uint32    `cbor:"7,keyasint"`
	TxOverflow    uint32    `cbor:"8,keyasint"`
	RxOverflow    uint32    `cbor:"9,keyasint"`
	BusErrors     uint32    `cbor:"10,keyasint"`
	PersistErrors uint32    `cbor:"11,keyasint"`
	Connected     bool      `cbor:"12,keyasint"`
	ConfigPending bool      `cbor:"13,keyasint"`
}

// Errors is the single error figure the status screen shows.
func (t Telemetry) Errors() uint32 {
	return t.TxOverflow + t.RxOverflow + t.BusErrors + t.PersistErrors
}

// StatusDisplay consumes telemetry at the bridge's cadence.
type StatusDisplay interface {
	Update(t Telemetry)
}

// DisplayFunc adapts a function to StatusDisplay.
type DisplayFunc func(t Telemetry)

func (f DisplayFunc) Update(t Telemetry) { f(t) }

// Displays fans telemetry out to several displays.
func Displays(ds ...StatusDisplay) StatusDisplay {
	return DisplayFunc(func(t Telemetry) {
		for _, d := range ds {
			if d != nil {
				d.Update(t)
			}
		}
	})
}
