// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import "sort"

// stageTally maps candidate ID to vote count for one stage. The tally is
// zero-filled: every candidate still in the running has an entry, even with
// no votes.
type stageTally map[string]int

func maxVotes(tally stageTally) int {
	max := 0
	for _, count := range tally {
		if count > max {
			max = count
		}
	}
	return max
}

// decideEliminations returns the candidate IDs cut after a stage, sorted for
// deterministic output.
//
// Two rules, applied to the zero-filled tally in order:
//
//  1. Zero votes always eliminates.
//  2. If more candidates survive rule 1 than there are winner slots
//     (targetRemaining), any candidate polling at or below half of the
//     leader's count is also cut. A count equal to half of the maximum is
//     eliminated.
//
// Rule 2 is gated on the field left after the zero cut, so a stage where the
// zero cut alone narrows the field to the target keeps every remaining
// candidate. The leader can never satisfy rule 2, so at least one candidate
// survives every stage that had votes.
func decideEliminations(tally stageTally, targetRemaining int) []string {
	if len(tally) == 0 {
		return nil
	}

	var eliminated []string
	survivors := 0
	for id, count := range tally {
		if count == 0 {
			eliminated = append(eliminated, id)
		} else {
			survivors++
		}
	}

	if survivors > targetRemaining && targetRemaining > 0 {
		max := maxVotes(tally)
		for id, count := range tally {
			if count > 0 && 2*count <= max {
				eliminated = append(eliminated, id)
			}
		}
	}

	sort.Strings(eliminated)
	return eliminated
}

// nextBallotLimit returns how many selections a ballot may carry in the next
// stage, given how many winner slots are still unfilled. The limit tightens
// as the slots fill so late stages force real choices.
func nextBallotLimit(remaining int) int {
	switch {
	case remaining <= 1:
		return 1
	case remaining == 2:
		return 2
	default:
		return 3
	}
}
