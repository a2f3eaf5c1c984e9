// Package types holds the JSON shapes shared by the REST and websocket surfaces.
//
// Client -> Server (websocket text frames)
//
//	Draw:  {"type": "Draw"}   start a draw; rejected while one is running
//	Reset: {"type": "Reset"}  forget every winner of the session
//
// Server -> Client
//
//	StateSnapshot:
//	  snapshot.version: number, bumped on every transition
//	  snapshot.state:   phase "idle" | "drawing" | "winner_shown", participants,
//	                    winners, history, current_index, winner, name_revealed,
//	                    congratulated, last_result
//	  snapshot.view:    kind "loading" | "error" | "empty_roster" | "ready" |
//	                    "drawing" | "winner_shown", image URL, winner_name,
//	                    banner, confetti, draw_enabled
//
//	Error:
//	  error: string
package types
