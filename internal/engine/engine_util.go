package engine

func NewState(participants []Participant) State {
	return State{
		Phase:        PhaseIdle,
		Participants: participants,
		Winners:      map[string]bool{},
		History:      []string{},
		CurrentIndex: 0,
	}
}

// displayIndex keeps slot 0 for the placeholder: with two or more
// participants the image at index 0 is shown through index 1 instead.
func displayIndex(i, n int) int {
	if i == 0 && n > 1 {
		return 1
	}
	return i
}
