// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

// CommandId identifies an OpenULINK on-wire command: one byte, followed by
// that command's payload_out bytes.
type CommandId uint8

const (
	cmdScanIn     CommandId = 0x80
	cmdSlowScanIn CommandId = 0x81

	cmdScanOut     CommandId = 0x82
	cmdSlowScanOut CommandId = 0x83

	cmdScanIO     CommandId = 0x84
	cmdSlowScanIO CommandId = 0x85

	cmdClockTMS     CommandId = 0x86
	cmdSlowClockTMS CommandId = 0x87

	cmdClockTCK CommandId = 0x88

	cmdSleepUs CommandId = 0x89
	cmdSleepMs CommandId = 0x8a

	cmdGetSignals CommandId = 0x8b
	cmdSetSignals CommandId = 0x8c

	cmdConfigureTckFreq CommandId = 0x8d

	cmdSetLeds CommandId = 0x8e

	cmdTest CommandId = 0x8f
)

func (id CommandId) String() string {
	switch id {
	case cmdScanIn:
		return "SCAN_IN"
	case cmdSlowScanIn:
		return "SLOW_SCAN_IN"
	case cmdScanOut:
		return "SCAN_OUT"
	case cmdSlowScanOut:
		return "SLOW_SCAN_OUT"
	case cmdScanIO:
		return "SCAN_IO"
	case cmdSlowScanIO:
		return "SLOW_SCAN_IO"
	case cmdClockTMS:
		return "CLOCK_TMS"
	case cmdSlowClockTMS:
		return "SLOW_CLOCK_TMS"
	case cmdClockTCK:
		return "CLOCK_TCK"
	case cmdSleepUs:
		return "SLEEP_US"
	case cmdSleepMs:
		return "SLEEP_MS"
	case cmdGetSignals:
		return "GET_SIGNALS"
	case cmdSetSignals:
		return "SET_SIGNALS"
	case cmdConfigureTckFreq:
		return "CONFIGURE_TCK_FREQ"
	case cmdSetLeds:
		return "SET_LEDS"
	case cmdTest:
		return "TEST"
	default:
		return "UNKNOWN"
	}
}

// ScanType selects which direction(s) of a JTAG scan move data.
type ScanType uint8

const (
	ScanIn ScanType = iota
	ScanOut
	ScanIO
)

func (t ScanType) hasOut() bool { return t == ScanOut || t == ScanIO }
func (t ScanType) hasIn() bool  { return t == ScanIn || t == ScanIO }

func (t ScanType) commandId(slow bool) CommandId {
	switch t {
	case ScanIn:
		if slow {
			return cmdSlowScanIn
		}
		return cmdScanIn
	case ScanOut:
		if slow {
			return cmdSlowScanOut
		}
		return cmdScanOut
	default:
		if slow {
			return cmdSlowScanIO
		}
		return cmdScanIO
	}
}

// JTAG signal bits as used by GET_SIGNALS / SET_SIGNALS. TRST and RESET
// (SRST) are active-low on the hardware.
const (
	signalTDI   byte = 1 << 0
	signalTDO   byte = 1 << 1
	signalTMS   byte = 1 << 2
	signalTCK   byte = 1 << 3
	signalTRST  byte = 1 << 4
	signalBrkIn byte = 1 << 5
	signalRST   byte = 1 << 6
	signalOCDSE byte = 1 << 7
)

// SET_LEDS bits. An off-bit beats the matching on-bit.
const (
	ledComOn  byte = 1 << 0
	ledRunOn  byte = 1 << 1
	ledComOff byte = 1 << 2
	ledRunOff byte = 1 << 3
)

// USB identification and endpoint layout (spec.md §6).
const (
	ulinkVID = 0xC251
	ulinkPID = 0x2710

	usbInterfaceNo = 0

	usbOutEndpointNo = 2
	usbInEndpointNo  = 2

	usbDefaultTimeoutMs  = 5000
	usbSelfTestTimeoutMs = 200

	cpuResetControlRegister = 0x7F92
	cpuResetAssert          = 0x01
	cpuResetRelease         = 0x00
	requestFirmwareLoad     = 0xA0

	renumerationDelayMs = 1500

	manufacturerStringIndex = 1
	manufacturerStringLen   = 20
	manufacturerStringWant  = "OpenULINK"
)

// Packet geometry. One byte of the 64-byte bulk packet is always the command
// ID; a scan command additionally spends 5 bytes on setup fields, leaving 58
// bytes of TDI/TDO payload per fragment.
const (
	maxPacketBytes     = 64
	scanSetupBytes     = 5
	maxScanFragmentLen = maxPacketBytes - 1 - scanSetupBytes // 58
)
