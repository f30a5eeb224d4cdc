package main

import (
	"math/rand"
	"slices"
)

// Tally counts ballots per target.
func Tally(votes map[string]Vote) map[string]int {
	counts := make(map[string]int)
	for _, v := range votes {
		counts[v.Target]++
	}
	return counts
}

// VoteResult is the verdict of the witch vote.
type VoteResult struct {
	Counts      map[string]int `json:"counts"`
	TopSuspects []string       `json:"top_suspects"`
	IsTie       bool           `json:"is_tie"`
	IsCorrect   bool           `json:"is_correct"`
}

// Result finds the targets sharing the highest count. The vote is correct
// when the culprit is among them, tie or not.
func Result(counts map[string]int, culprit string) VoteResult {
	r := VoteResult{Counts: counts}
	best := 0
	for target, n := range counts {
		switch {
		case n > best:
			best = n
			r.TopSuspects = []string{target}
		case n == best && n > 0:
			r.TopSuspects = append(r.TopSuspects, target)
		}
	}
	slices.Sort(r.TopSuspects)
	r.IsTie = len(r.TopSuspects) > 1
	r.IsCorrect = slices.Contains(r.TopSuspects, culprit)
	return r
}

// validVoteTargets lists everyone voter may accuse: all characters except
// the victim and the voter, the player included.
func validVoteTargets(reg *Registry, victim, voter string) []Character {
	var out []Character
	for _, c := range reg.All() {
		if c.ID != victim && c.ID != voter {
			out = append(out, c)
		}
	}
	return out
}

func IsValidVote(reg *Registry, victim string, v Vote) bool {
	if _, ok := reg.Get(v.Target); !ok {
		return false
	}
	return v.Target != victim && v.Target != v.Voter
}

// RepairVote replaces an invalid target with a uniformly random valid one.
// It reports whether the vote was changed.
func RepairVote(reg *Registry, victim string, v Vote, rng *rand.Rand) (Vote, bool) {
	if IsValidVote(reg, victim, v) {
		return v, false
	}
	targets := validVoteTargets(reg, victim, v.Voter)
	if len(targets) == 0 {
		return v, false
	}
	v.Target = targets[rng.Intn(len(targets))].ID
	if v.Reason == "" {
		v.Reason = defaultVoteReason
	}
	return v, true
}
