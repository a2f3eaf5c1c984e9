// Package presenter maps a draw session to what the screen should show.
package presenter

import (
	"strings"

	"github.com/DoyleJ11/raffle-draw-backend/internal/engine"
)

type Kind string

const (
	KindLoading     Kind = "loading"
	KindError       Kind = "error"
	KindEmptyRoster Kind = "empty_roster"
	KindReady       Kind = "ready"
	KindDrawing     Kind = "drawing"
	KindWinnerShown Kind = "winner_shown"
)

const (
	Title              = "Who's the Lucky Winner?"
	LoadingMessage     = "Loading participant data..."
	EmptyRosterMessage = `No participant photos found. Please add photos to the "participants" directory.`
	ExhaustedMessage   = "Every participant has already won."
	FetchFailedMessage = "Error: Failed to fetch participants"
	Congratulations    = "Congratulations!"
)

// Assets builds absolute image URLs from the public HTTP base.
type Assets struct {
	Base string
}

func (a Assets) Participant(p engine.Participant) string {
	return strings.TrimRight(a.Base, "/") + "/participants" + p.Image
}

func (a Assets) Placeholder(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimRight(a.Base, "/") + "/placeholders/" + name
}

type Input struct {
	Loading     bool
	Err         error
	State       engine.State
	Placeholder string
}

type View struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Message     string `json:"message,omitempty"`
	Image       string `json:"image,omitempty"`
	Placeholder bool   `json:"placeholder"`
	Highlight   bool   `json:"highlight"`
	WinnerName  string `json:"winner_name,omitempty"`
	Banner      string `json:"banner,omitempty"`
	Confetti    bool   `json:"confetti"`
	DrawEnabled bool   `json:"draw_enabled"`
}

func Render(in Input, assets Assets) View {
	v := View{Title: Title}

	switch {
	case in.Loading:
		v.Kind = KindLoading
		v.Message = LoadingMessage
		return v
	case in.Err != nil:
		v.Kind = KindError
		// The cause is logged by the session; clients only get the fixed text.
		v.Message = FetchFailedMessage
		return v
	case len(in.State.Participants) == 0:
		v.Kind = KindEmptyRoster
		v.Message = EmptyRosterMessage
		return v
	}

	s := in.State
	current := s.Participants[s.CurrentIndex]

	switch s.Phase {
	case engine.PhaseDrawing:
		v.Kind = KindDrawing
		v.Image = assets.Participant(current)

	case engine.PhaseWinnerShown:
		v.Kind = KindWinnerShown
		v.Image = assets.Participant(current)
		v.Highlight = true
		if s.NameRevealed && s.Winner != nil {
			v.WinnerName = s.Winner.Name
			v.Confetti = true
		}
		if s.Congratulated {
			v.Banner = Congratulations
		}
		v.DrawEnabled = !s.Exhausted()

	default:
		v.Kind = KindReady
		if s.CurrentIndex == 0 {
			v.Placeholder = true
			v.Image = assets.Placeholder(in.Placeholder)
		} else {
			v.Image = assets.Participant(current)
		}
		v.DrawEnabled = !s.Exhausted()
	}

	if s.Exhausted() && s.Phase != engine.PhaseDrawing {
		v.Message = ExhaustedMessage
	}
	return v
}
