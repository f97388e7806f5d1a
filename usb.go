// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

import (
	"context"
	"errors"
	"time"

	"github.com/google/gousb"
)

var libUsbCtx *gousb.Context = nil

// InitUsb sets up the shared libusb context. It is idempotent so a host
// application may call it once at startup regardless of how many adapters
// it opens.
func InitUsb() error {
	if libUsbCtx != nil {
		logger.Warn("libusb context already initialized")
		return nil
	}

	libUsbCtx = gousb.NewContext()
	if libUsbCtx == nil {
		return newTransportError("could not initialize libusb context")
	}
	return nil
}

// CloseUsb tears down the shared libusb context.
func CloseUsb() {
	if libUsbCtx == nil {
		logger.Warn("tried to close non-initialized libusb context")
		return
	}
	libUsbCtx.Close()
	libUsbCtx = nil
}

func usbFindDevices(vid, pid gousb.ID) ([]*gousb.Device, error) {
	devices, err := libUsbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == vid && desc.Product == pid {
			logger.Debugf("inspect usb device [%04x:%04x] on bus %03d:%03d...",
				uint16(desc.Vendor), uint16(desc.Product), desc.Bus, desc.Address)
			return true
		}
		return false
	})

	// OpenDevices' own error is ignored for the same reason gostlink ignores
	// it: it carries no information about which device failed, and as long
	// as we got at least one usable handle back there is no actual error.
	if len(devices) > 0 {
		return devices, nil
	}
	if err == nil {
		err = errors.New("no ULINK adapter found")
	}
	return nil, err
}

// usbConn is the open USB connection to one OpenULINK adapter: device
// handle, claimed interface, and the single bulk IN/OUT endpoint pair the
// protocol uses.
type usbConn struct {
	device    *gousb.Device
	config    *gousb.Config
	iface     *gousb.Interface
	inEp      *gousb.InEndpoint
	outEp     *gousb.OutEndpoint
	timeoutMs int
}

func openUsbConn(timeoutMs int) (*usbConn, error) {
	devices, err := usbFindDevices(ulinkVID, ulinkPID)
	if err != nil {
		return nil, newTransportError("usb device scan failed: " + err.Error())
	}

	if len(devices) > 1 {
		for _, d := range devices[1:] {
			d.Close()
		}
		logger.Warnf("multiple ULINK adapters found, using the first one enumerated")
	}

	device := devices[0]
	device.SetAutoDetach(true)

	conn := &usbConn{device: device, timeoutMs: timeoutMs}

	conn.config, err = device.Config(1)
	if err != nil {
		device.Close()
		return nil, newTransportError("could not request usb configuration #1: " + err.Error())
	}

	conn.iface, err = conn.config.Interface(usbInterfaceNo, 0)
	if err != nil {
		conn.close()
		return nil, newTransportError("could not claim usb interface: " + err.Error())
	}

	conn.inEp, err = conn.iface.InEndpoint(usbInEndpointNo)
	if err != nil {
		conn.close()
		return nil, newTransportError("could not open bulk in endpoint: " + err.Error())
	}

	conn.outEp, err = conn.iface.OutEndpoint(usbOutEndpointNo)
	if err != nil {
		conn.close()
		return nil, newTransportError("could not open bulk out endpoint: " + err.Error())
	}

	return conn, nil
}

func (c *usbConn) close() {
	if c.iface != nil {
		c.iface.Close()
	}
	if c.config != nil {
		c.config.Close()
	}
	if c.device != nil {
		c.device.Close()
	}
}

// manufacturerString reads the device's manufacturer string descriptor,
// used by Init to confirm OpenULINK firmware is already running.
func (c *usbConn) manufacturerString() (string, error) {
	s, err := c.device.GetStringDescriptor(manufacturerStringIndex)
	if err != nil {
		return "", err
	}
	return s, nil
}

// BulkWrite implements usbTransport.
func (c *usbConn) BulkWrite(ctx context.Context, data []byte) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, time.Duration(c.timeoutMs)*time.Millisecond)
	defer cancel()

	n, err := c.outEp.WriteContext(opCtx, data)
	if err != nil {
		return n, err
	}
	logger.Tracef("%d bytes -> EP%d", n, c.outEp.Desc.Number)
	return n, nil
}

// BulkRead implements usbTransport.
func (c *usbConn) BulkRead(ctx context.Context, buf []byte) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, time.Duration(c.timeoutMs)*time.Millisecond)
	defer cancel()

	n, err := c.inEp.ReadContext(opCtx, buf)
	if err != nil {
		return n, err
	}
	logger.Tracef("EP%d -> %d bytes", c.inEp.Desc.Number, n)
	return n, nil
}

// controlWrite issues a vendor-specific OUT control transfer, used only
// during EZ-USB firmware load (CPUCS reset/resume and code download).
func (c *usbConn) controlWrite(request uint8, value, index uint16, data []byte) error {
	n, err := c.device.Control(
		gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		request, value, index, data,
	)
	if err != nil {
		return err
	}
	if n != len(data) {
		return errors.New("short control transfer")
	}
	return nil
}
