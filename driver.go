// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

import (
	"context"
	"strings"
	"time"
)

// Config configures one Driver instance.
type Config struct {
	// Firmware is consulted only if the connected adapter is not already
	// running OpenULINK firmware.
	Firmware FirmwareImage

	// PreferSlowCommands records whether the firmware's SLOW_ command
	// variants are preferred; Driver.UseSlowCommands reports it. The
	// lowering functions do not read it: QueueScan follows ScanRequest.Slow,
	// QueueClockTms its slow argument, and the state moves queued by
	// QueueTlrReset, QueueRunTest and QueuePathMove always use the fast
	// CLOCK_TMS. OpenULINK's CONFIGURE_TCK_FREQ only sets
	// busy-wait delay counters; it never reports back what clock rate
	// those counters buy, so this is a static policy knob rather than
	// something Speed() could derive safely from a requested kHz value.
	PreferSlowCommands bool

	// BulkTimeout bounds every bulk transfer. Defaults to 5000ms.
	BulkTimeout time.Duration
}

func (c Config) bulkTimeoutMs() int {
	if c.BulkTimeout <= 0 {
		return usbDefaultTimeoutMs
	}
	return int(c.BulkTimeout / time.Millisecond)
}

// adapterConn is everything Driver needs from an open adapter connection.
// usbConn implements it against real hardware; tests substitute a fake.
type adapterConn interface {
	usbTransport
	firmwareTransport
	manufacturerString() (string, error)
	close()
}

// Driver is one open connection to a ULINK-class adapter: its USB transport,
// command queue, and TAP state shadow.
type Driver struct {
	conn   adapterConn
	queue  *CommandQueue
	tap    *TapShadow
	config Config
}

// Init opens the adapter, loading OpenULINK firmware onto it first if
// necessary, then runs a short self-test and logs the adapter's initial
// signal state.
func Init(config Config) (*Driver, error) {
	if err := InitUsb(); err != nil {
		return nil, err
	}

	conn, err := openUsbConn(config.bulkTimeoutMs())
	if err != nil {
		return nil, err
	}

	needsFirmware := false
	manufacturer, err := conn.manufacturerString()
	if err != nil {
		logger.Debugf("could not read manufacturer string: %v", err)
		needsFirmware = true
	} else if !strings.HasPrefix(manufacturer, manufacturerStringWant) {
		needsFirmware = true
	}

	if needsFirmware {
		if config.Firmware == nil {
			conn.close()
			return nil, newRefusedError("adapter is not running OpenULINK firmware and no firmware image was configured")
		}

		logger.Info("loading OpenULINK firmware, this is reversible by power-cycling the adapter")

		if err := loadFirmware(conn, config.Firmware); err != nil {
			conn.close()
			return nil, err
		}

		conn.close()
		time.Sleep(renumerationDelayMs * time.Millisecond)

		conn, err = openUsbConn(config.bulkTimeoutMs())
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("adapter is already running OpenULINK firmware")
	}

	driver := &Driver{
		conn:   conn,
		queue:  NewCommandQueue(conn, usbSelfTestTimeoutMs),
		tap:    NewTapShadow(),
		config: config,
	}

	if err := driver.selfTest(); err != nil {
		driver.Quit()
		return nil, err
	}

	var signals SignalState
	if err := QueueGetSignals(context.Background(), driver.queue, &signals); err != nil {
		driver.Quit()
		return nil, err
	}
	if err := driver.queue.Flush(context.Background()); err != nil {
		driver.Quit()
		return nil, err
	}
	logger.Infof("ULINK signal states: %s", signals)

	driver.queue.timeoutMs = config.bulkTimeoutMs()

	return driver, nil
}

// selfTest issues a TEST command with a short timeout. If the adapter
// doesn't answer, a previous session may have left it waiting on an
// un-fetched bulk IN packet; one opportunistic drain read gives the
// connection a chance to recover instead of failing outright.
func (d *Driver) selfTest() error {
	ctx := context.Background()

	if err := QueueTest(ctx, d.queue); err != nil {
		return err
	}

	err := d.queue.Flush(ctx)
	if err == nil {
		return nil
	}

	logger.Warnf("self-test failed (%v), attempting to drain a stale bulk IN packet", err)

	drain := make([]byte, maxPacketBytes)
	if _, drainErr := d.conn.BulkRead(ctx, drain); drainErr != nil {
		return newTransportError("cannot communicate with adapter, power-cycle and retry: " + drainErr.Error())
	}

	logger.Info("recovered from a stale bulk IN packet")
	return nil
}

// Queue returns the driver's command queue for callers that need to append
// lowered JTAG operations directly.
func (d *Driver) Queue() *CommandQueue {
	return d.queue
}

// Tap returns the driver's TAP state shadow.
func (d *Driver) Tap() *TapShadow {
	return d.tap
}

// UseSlowCommands reports whether lowered operations should prefer the
// firmware's SLOW_ command variants, per Config.PreferSlowCommands.
func (d *Driver) UseSlowCommands() bool {
	return d.config.PreferSlowCommands
}

// ExecuteQueue flushes any commands buffered since the last flush.
func (d *Driver) ExecuteQueue(ctx context.Context) error {
	return d.queue.Flush(ctx)
}

// Quit flushes any pending commands best-effort and closes the USB
// connection.
func (d *Driver) Quit() error {
	_ = d.queue.Flush(context.Background())
	d.conn.close()
	return nil
}

// jtagOnlyTransports is the transport list a ULINK adapter advertises to an
// upstream debugger framework: JTAG only, no SWD support (spec.md Non-goals).
var jtagOnlyTransports = []string{"jtag"}

// JTAGInterface is the registration surface an upstream debugger framework
// holds: a name, the supported transport list, and the init/quit/
// execute_queue/khz/speed/speed_div entry points spec.md §6 calls for.
// It closes over a *Driver instead of relying on gostlink's process-wide
// singleton handle (spec.md §9's "global driver singleton" design note).
type JTAGInterface struct {
	Name       string
	Transports []string

	driver *Driver
}

// NewJTAGInterface opens a ULINK adapter per config and wraps it as a named
// JTAG-interface provider, mirroring how gostlink's NewStLink/StLink pairing
// is consumed by its caller.
func NewJTAGInterface(config Config) (*JTAGInterface, error) {
	driver, err := Init(config)
	if err != nil {
		return nil, err
	}

	return &JTAGInterface{Name: "ulink", Transports: jtagOnlyTransports, driver: driver}, nil
}

func (i *JTAGInterface) Quit() error {
	return i.driver.Quit()
}

func (i *JTAGInterface) ExecuteQueue(ctx context.Context) error {
	return i.driver.ExecuteQueue(ctx)
}

func (i *JTAGInterface) Khz(khz uint32) (int, error) {
	return Khz(khz)
}

func (i *JTAGInterface) Speed(index int) error {
	return Speed(index)
}

func (i *JTAGInterface) SpeedDiv(index int) (uint32, error) {
	return SpeedDiv(index)
}

// Driver exposes the underlying Driver for operation lowering calls
// (QueueScan, QueueRunTest, ...), which take it directly rather than routing
// through the interface vtable.
func (i *JTAGInterface) Driver() *Driver {
	return i.driver
}
