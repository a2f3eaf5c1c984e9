package engine

import "math/rand/v2"

// NewRand returns a generator for PickWinner. A zero seed draws a random one.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// PickWinner selects uniformly among the participants not present in winners.
// It reports false when nobody is eligible.
func PickWinner(participants []Participant, winners map[string]bool, rng *rand.Rand) (Participant, bool) {
	s := State{Participants: participants, Winners: winners}
	eligible := s.Eligible()
	if len(eligible) == 0 {
		return Participant{}, false
	}
	return eligible[rng.IntN(len(eligible))], true
}
