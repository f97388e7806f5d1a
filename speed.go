// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

// speedMap mirrors the adapter's fixed TCK frequency choices: index 0 is the
// default fast path, index 1 the firmware's SLOW_ variant timing.
type speedMap struct {
	khz   uint32
	index int
}

var ulinkSpeedMap = [...]speedMap{
	{khz: 150, index: 0},
	{khz: 100, index: 1},
}

const maxSupportedKhz = 150

// Khz resolves a requested TCK frequency to a speedMap index. ULINK does not
// support adaptive clocking, so khz == 0 (RCLK) is refused, as is any
// request above the adapter's ~150 kHz ceiling.
func Khz(khz uint32) (int, error) {
	if khz == 0 {
		return 0, newRefusedError("RCLK is not supported by this adapter")
	}
	if khz > maxSupportedKhz {
		return 0, newRefusedError("requested speed exceeds adapter maximum of 150 kHz")
	}

	logger.Infof("khz: %d kHz", khz)
	return 0, nil
}

// SpeedDiv reports the actual clock frequency realized by a given speedMap
// index.
func SpeedDiv(index int) (uint32, error) {
	for _, s := range ulinkSpeedMap {
		if s.index == index {
			return s.khz, nil
		}
	}
	return 0, newBugError("unknown speed index %d", index)
}

// Speed logs the given speedMap index and does nothing else: it queues no
// CONFIGURE_TCK_FREQ and does not select the SLOW_ command variants. That
// choice is a static policy decision (Config.PreferSlowCommands), not
// something CONFIGURE_TCK_FREQ's on-wire semantics let us infer safely;
// see Driver.UseSlowCommands.
func Speed(index int) error {
	logger.Infof("speed: index %d", index)
	return nil
}
