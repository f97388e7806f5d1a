// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package goulink

import "github.com/boljen/go-bitmap"

// TapState is one of the 16 states of the IEEE 1149.1 Test Access Port
// controller.
type TapState int

const (
	TapReset TapState = iota
	TapIdle
	TapDrSelect
	TapDrCapture
	TapDrShift
	TapDrExit1
	TapDrPause
	TapDrExit2
	TapDrUpdate
	TapIrSelect
	TapIrCapture
	TapIrShift
	TapIrExit1
	TapIrPause
	TapIrExit2
	TapIrUpdate

	tapStateCount = 16
)

func (s TapState) String() string {
	switch s {
	case TapReset:
		return "RESET"
	case TapIdle:
		return "IDLE"
	case TapDrSelect:
		return "DRSELECT"
	case TapDrCapture:
		return "DRCAPTURE"
	case TapDrShift:
		return "DRSHIFT"
	case TapDrExit1:
		return "DREXIT1"
	case TapDrPause:
		return "DRPAUSE"
	case TapDrExit2:
		return "DREXIT2"
	case TapDrUpdate:
		return "DRUPDATE"
	case TapIrSelect:
		return "IRSELECT"
	case TapIrCapture:
		return "IRCAPTURE"
	case TapIrShift:
		return "IRSHIFT"
	case TapIrExit1:
		return "IREXIT1"
	case TapIrPause:
		return "IRPAUSE"
	case TapIrExit2:
		return "IREXIT2"
	case TapIrUpdate:
		return "IRUPDATE"
	default:
		return "UNKNOWN"
	}
}

// tapTransition[s][tms] is the next state of the TAP FSM from state s when
// the given TMS bit is clocked in.
var tapTransition = [tapStateCount][2]TapState{
	TapReset:     {TapIdle, TapReset},
	TapIdle:      {TapIdle, TapDrSelect},
	TapDrSelect:  {TapDrCapture, TapIrSelect},
	TapDrCapture: {TapDrShift, TapDrExit1},
	TapDrShift:   {TapDrShift, TapDrExit1},
	TapDrExit1:   {TapDrPause, TapDrUpdate},
	TapDrPause:   {TapDrPause, TapDrExit2},
	TapDrExit2:   {TapDrShift, TapDrUpdate},
	TapDrUpdate:  {TapIdle, TapDrSelect},
	TapIrSelect:  {TapIrCapture, TapReset},
	TapIrCapture: {TapIrShift, TapIrExit1},
	TapIrShift:   {TapIrShift, TapIrExit1},
	TapIrExit1:   {TapIrPause, TapIrUpdate},
	TapIrPause:   {TapIrPause, TapIrExit2},
	TapIrExit2:   {TapIrShift, TapIrUpdate},
	TapIrUpdate:  {TapIdle, TapDrSelect},
}

// stableStates lists the 6 states a TAP may rest in between scans.
var stableStates = []TapState{TapReset, TapIdle, TapDrShift, TapDrPause, TapIrShift, TapIrPause}

var stableStateBitmap = func() bitmap.Bitmap {
	bm := bitmap.New(tapStateCount)
	for _, s := range stableStates {
		bm.Set(int(s), true)
	}
	return bm
}()

// IsStableState reports whether s is one of the 6 states the TAP may rest in
// between scans.
func IsStableState(s TapState) bool {
	return stableStateBitmap.Get(int(s))
}

// tmsPath is a canonical, minimal TMS bitstream between two stable states.
// Bits is LSB-first: bit 0 is clocked first.
type tmsPath struct {
	Bits  uint8
	Count int
}

// tmsPathTable[from][to] holds the canonical shortest TMS path between every
// pair of stable states, precomputed once by breadth-first search over the
// full 16-state FSM graph. Every entry has Count <= 7, satisfying the
// minimal-path invariant without depending on a path library we don't have.
var tmsPathTable = computeTmsPathTable()

func computeTmsPathTable() map[TapState]map[TapState]tmsPath {
	table := make(map[TapState]map[TapState]tmsPath, len(stableStates))

	for _, from := range stableStates {
		table[from] = make(map[TapState]tmsPath, len(stableStates))
		for _, to := range stableStates {
			table[from][to] = bfsShortestTmsPath(from, to)
		}
	}

	return table
}

type bfsNode struct {
	state TapState
	bits  uint8
	count int
}

// bfsShortestTmsPath finds the shortest TMS bit sequence that drives the TAP
// FSM from "from" to "to", breaking ties by preferring a TMS=0 step over a
// TMS=1 step at each branch (matches the conventional OpenOCD path tables).
func bfsShortestTmsPath(from, to TapState) tmsPath {
	if from == to {
		return tmsPath{Bits: 0, Count: 0}
	}

	visited := make(map[TapState]bool, tapStateCount)
	visited[from] = true

	queue := []bfsNode{{state: from, bits: 0, count: 0}}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for tms := 0; tms < 2; tms++ {
			next := tapTransition[node.state][tms]
			if visited[next] {
				continue
			}

			nextBits := node.bits | (uint8(tms) << uint(node.count))
			nextNode := bfsNode{state: next, bits: nextBits, count: node.count + 1}

			if next == to {
				return tmsPath{Bits: nextBits, Count: nextNode.count}
			}

			visited[next] = true
			queue = append(queue, nextNode)
		}
	}

	// unreachable: every stable state connects to every other within the
	// 16-state graph.
	panic(newBugError("no TMS path found from %s to %s", from, to))
}

// TapShadow tracks the driver's belief about the adapter's current TAP state.
// The adapter itself has no way to report its state; this is a pure local
// model that must be kept in lock-step with every queued TMS-affecting
// command.
type TapShadow struct {
	current TapState
}

// NewTapShadow returns a shadow initialized to RESET, the state the adapter
// is in immediately after TRST or power-up.
func NewTapShadow() *TapShadow {
	return &TapShadow{current: TapReset}
}

func (s *TapShadow) State() TapState {
	return s.current
}

// PathTo returns the canonical minimal TMS path from the shadow's current
// stable state to "to", or an error if either endpoint is not stable.
func (s *TapShadow) PathTo(to TapState) (tmsPath, error) {
	if !IsStableState(s.current) {
		return tmsPath{}, newBugError("tap shadow is not in a stable state: %s", s.current)
	}
	if !IsStableState(to) {
		return tmsPath{}, newBugError("requested tap end state is not stable: %s", to)
	}

	return tmsPathTable[s.current][to], nil
}

// MoveTo updates the shadow to record that the TAP has been driven to "to".
// Callers must have actually queued the TMS bits PathTo returned (or an
// equivalent sequence) before calling this.
func (s *TapShadow) MoveTo(to TapState) error {
	if !IsStableState(to) {
		return newBugError("cannot settle tap shadow in non-stable state: %s", to)
	}
	s.current = to
	return nil
}

// applyWide advances the shadow bit-by-bit through an arbitrary TMS
// sequence, used by PATHMOVE where the caller supplies a literal bit
// sequence rather than asking for a canonical path. endState must be
// stable; applyWide returns an error without mutating the shadow if the
// walk does not land there.
func (s *TapShadow) applyWide(bits uint64, count int, endState TapState) error {
	if !IsStableState(endState) {
		return newBugError("pathmove target is not a stable state: %s", endState)
	}

	cur := s.current
	for i := 0; i < count; i++ {
		tms := TapState((bits >> uint(i)) & 1)
		cur = tapTransition[cur][tms]
	}

	if cur != endState {
		return newBugError("tms sequence does not end in requested state: got %s, want %s", cur, endState)
	}

	s.current = cur
	return nil
}
