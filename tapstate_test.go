// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package goulink

import "testing"

func TestTmsPathsAreMinimalAndBounded(t *testing.T) {
	for _, from := range stableStates {
		for _, to := range stableStates {
			path := tmsPathTable[from][to]

			if path.Count > 7 {
				t.Errorf("path %s->%s has length %d, want <=7", from, to, path.Count)
			}

			if from == to && path.Count != 0 {
				t.Errorf("path %s->%s should be zero-length, got %d", from, to, path.Count)
			}
		}
	}
}

func TestTmsPathActuallyReachesTarget(t *testing.T) {
	for _, from := range stableStates {
		for _, to := range stableStates {
			path := tmsPathTable[from][to]

			cur := from
			for i := 0; i < path.Count; i++ {
				tms := (path.Bits >> uint(i)) & 1
				cur = tapTransition[cur][tms]
			}

			if cur != to {
				t.Errorf("path %s->%s walked to %s instead", from, to, cur)
			}
		}
	}
}

func TestIsStableState(t *testing.T) {
	for _, s := range stableStates {
		if !IsStableState(s) {
			t.Errorf("%s should be stable", s)
		}
	}

	if IsStableState(TapDrCapture) {
		t.Error("DRCAPTURE should not be stable")
	}
}

func TestTapShadowMoveToRejectsUnstableTarget(t *testing.T) {
	shadow := NewTapShadow()

	if err := shadow.MoveTo(TapDrCapture); err == nil {
		t.Fatal("expected error moving shadow to a non-stable state")
	}
}

func TestTapShadowPathToTracksCurrentState(t *testing.T) {
	shadow := NewTapShadow()

	if shadow.State() != TapReset {
		t.Fatalf("new shadow should start in RESET, got %s", shadow.State())
	}

	path, err := shadow.PathTo(TapIdle)
	if err != nil {
		t.Fatal(err)
	}
	if path.Count != 1 || path.Bits&1 != 0 {
		t.Errorf("RESET->IDLE should be a single TMS=0 clock, got %+v", path)
	}

	if err := shadow.MoveTo(TapIdle); err != nil {
		t.Fatal(err)
	}
	if shadow.State() != TapIdle {
		t.Fatalf("shadow should now be in IDLE, got %s", shadow.State())
	}
}

func TestTapShadowApplyWideVerifiesEndState(t *testing.T) {
	shadow := NewTapShadow()

	// RESET --0--> IDLE
	if err := shadow.applyWide(0, 1, TapIdle); err != nil {
		t.Fatal(err)
	}

	if err := shadow.applyWide(0, 1, TapDrShift); err == nil {
		t.Fatal("expected mismatch error when requested end state isn't reached")
	}
}
