package engine

import (
	"errors"
	"slices"
)

var ErrAlreadyDrawing = errors.New("draw already in progress")
var ErrEmptyRoster = errors.New("no participants")
var ErrNoEligibleWinner = errors.New("no eligible participant left to draw")
var ErrIllegalWinner = errors.New("illegal winner")
var ErrNotDrawing = errors.New("no draw in progress")
var ErrNoWinnerShown = errors.New("no winner shown")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDrawing     Phase = "drawing"
	PhaseWinnerShown Phase = "winner_shown"
)

type Result string

const (
	ResultNone             Result = ""
	ResultWinner           Result = "winner"
	ResultNoEligibleWinner Result = "no_eligible_winner"
)

// State is one draw session. Values returned by Apply never share
// Winners or History with the input state.
type State struct {
	Phase         Phase           `json:"phase"`
	Participants  []Participant   `json:"participants"`
	Winners       map[string]bool `json:"winners"`
	History       []string        `json:"history"`
	CurrentIndex  int             `json:"current_index"`
	Winner        *Participant    `json:"winner,omitempty"`
	NameRevealed  bool            `json:"name_revealed"`
	Congratulated bool            `json:"congratulated"`
	LastResult    Result          `json:"last_result,omitempty"`
}

type CommandType string

const (
	CmdStartDraw    CommandType = "StartDraw"
	CmdAdvance      CommandType = "Advance"
	CmdSettle       CommandType = "Settle"
	CmdRevealName   CommandType = "RevealName"
	CmdCongratulate CommandType = "Congratulate"
	CmdResetSession CommandType = "ResetSession"
)

/*
	CmdStartDraw    -> EvtDrawStarted
	CmdAdvance      -> EvtIndexAdvanced            (once per animation tick)
	CmdSettle       -> EvtWinnerSelected | EvtNoEligibleWinner
	CmdRevealName   -> EvtNameRevealed             (suspense beat after the winner lands)
	CmdCongratulate -> EvtCongratulated
	CmdResetSession -> EvtSessionReset
*/

type Command struct {
	Type CommandType
	// WinnerID is only read by CmdSettle. Empty means the selector found nobody eligible.
	WinnerID string
}

type EventType string

const (
	EvtDrawStarted      EventType = "DrawStarted"
	EvtIndexAdvanced    EventType = "IndexAdvanced"
	EvtWinnerSelected   EventType = "WinnerSelected"
	EvtNoEligibleWinner EventType = "NoEligibleWinner"
	EvtNameRevealed     EventType = "NameRevealed"
	EvtCongratulated    EventType = "Congratulated"
	EvtSessionReset     EventType = "SessionReset"
)

type Event struct {
	Type          EventType
	ParticipantID string
	Index         int
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s.clone()

	switch cmd.Type {
	case CmdStartDraw:
		if s.Phase == PhaseDrawing {
			return nil, s, ErrAlreadyDrawing
		}
		if len(s.Participants) == 0 {
			return nil, s, ErrEmptyRoster
		}
		if len(s.Eligible()) == 0 {
			return nil, s, ErrNoEligibleWinner
		}

		// Previous winner leaves the spotlight but stays in Winners.
		newState.Phase = PhaseDrawing
		newState.Winner = nil
		newState.NameRevealed = false
		newState.Congratulated = false
		newState.LastResult = ResultNone
		return []Event{{Type: EvtDrawStarted}}, newState, nil

	case CmdAdvance:
		if s.Phase != PhaseDrawing {
			return nil, s, ErrNotDrawing
		}

		n := len(s.Participants)
		newState.CurrentIndex = displayIndex((s.CurrentIndex+1)%n, n)
		return []Event{{Type: EvtIndexAdvanced, Index: newState.CurrentIndex}}, newState, nil

	case CmdSettle:
		if s.Phase != PhaseDrawing {
			return nil, s, ErrNotDrawing
		}

		// Selector came back empty: leave the draw without a winner.
		if cmd.WinnerID == "" {
			newState.Phase = PhaseIdle
			newState.LastResult = ResultNoEligibleWinner
			return []Event{{Type: EvtNoEligibleWinner}}, newState, nil
		}

		idx := s.indexOf(cmd.WinnerID)
		if idx < 0 || s.Winners[cmd.WinnerID] {
			return nil, s, ErrIllegalWinner
		}

		winner := s.Participants[idx]
		newState.Phase = PhaseWinnerShown
		newState.CurrentIndex = displayIndex(idx, len(s.Participants))
		newState.Winner = &winner
		newState.Winners[winner.ID] = true
		newState.History = append(newState.History, winner.ID)
		newState.LastResult = ResultWinner
		return []Event{{Type: EvtWinnerSelected, ParticipantID: winner.ID, Index: newState.CurrentIndex}}, newState, nil

	case CmdRevealName:
		if s.Phase != PhaseWinnerShown {
			return nil, s, ErrNoWinnerShown
		}

		newState.NameRevealed = true
		return []Event{{Type: EvtNameRevealed, ParticipantID: s.Winner.ID}}, newState, nil

	case CmdCongratulate:
		if s.Phase != PhaseWinnerShown || !s.NameRevealed {
			return nil, s, ErrNoWinnerShown
		}

		newState.Congratulated = true
		return []Event{{Type: EvtCongratulated, ParticipantID: s.Winner.ID}}, newState, nil

	case CmdResetSession:
		if s.Phase == PhaseDrawing {
			return nil, s, ErrAlreadyDrawing
		}

		reset := NewState(s.Participants)
		return []Event{{Type: EvtSessionReset}}, reset, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// Eligible returns the participants that have not won yet, in listing order.
func (s State) Eligible() []Participant {
	eligible := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if !s.Winners[p.ID] {
			eligible = append(eligible, p)
		}
	}
	return eligible
}

// Exhausted reports whether every participant has already won.
func (s State) Exhausted() bool {
	return len(s.Participants) > 0 && len(s.Eligible()) == 0
}

func (s State) indexOf(id string) int {
	return slices.IndexFunc(s.Participants, func(p Participant) bool { return p.ID == id })
}

func (s State) clone() State {
	c := s
	c.Winners = make(map[string]bool, len(s.Winners))
	for id := range s.Winners {
		c.Winners[id] = true
	}
	c.History = slices.Clone(s.History)
	if s.Winner != nil {
		w := *s.Winner
		c.Winner = &w
	}
	return c
}
