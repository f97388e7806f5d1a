// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

// FirmwareSection is one contiguous block of an EZ-USB firmware image: load
// it at Address, byte for byte. Parsing an Intel HEX file into sections is
// outside this package's scope; callers supply an already-decoded image.
type FirmwareSection struct {
	Address uint16
	Data    []byte
}

// FirmwareImage is the EZ-USB firmware to load onto a ULINK adapter that is
// not already running OpenULINK.
type FirmwareImage interface {
	Sections() []FirmwareSection
}

// firmwareTransport is the minimal control-transfer surface firmware loading
// needs from the adapter connection. usbConn implements it; tests substitute
// a fake so the chunking logic can be checked without real USB hardware.
type firmwareTransport interface {
	controlWrite(request uint8, value, index uint16, data []byte) error
}

// loadFirmware halts the EZ-USB CPU, streams every section of image to it in
// chunks of at most maxPacketBytes via vendor control transfers, and resumes
// the CPU. The adapter disconnects and re-enumerates on its own once resumed;
// the caller is responsible for closing and reopening the USB connection.
func loadFirmware(conn firmwareTransport, image FirmwareImage) error {
	if err := conn.controlWrite(requestFirmwareLoad, cpuResetControlRegister, 0, []byte{cpuResetAssert}); err != nil {
		return newTransportError("could not halt ulink cpu: " + err.Error())
	}

	for _, section := range image.Sections() {
		if err := writeFirmwareSection(conn, section); err != nil {
			return err
		}
	}

	if err := conn.controlWrite(requestFirmwareLoad, cpuResetControlRegister, 0, []byte{cpuResetRelease}); err != nil {
		return newTransportError("could not resume ulink cpu: " + err.Error())
	}

	return nil
}

func writeFirmwareSection(conn firmwareTransport, section FirmwareSection) error {
	addr := section.Address
	data := section.Data

	for len(data) > 0 {
		chunkSize := len(data)
		if chunkSize > maxPacketBytes {
			chunkSize = maxPacketBytes
		}

		if err := conn.controlWrite(requestFirmwareLoad, addr, 0, data[:chunkSize]); err != nil {
			return newTransportError("firmware section write failed: " + err.Error())
		}

		addr += uint16(chunkSize)
		data = data[chunkSize:]
	}

	return nil
}
