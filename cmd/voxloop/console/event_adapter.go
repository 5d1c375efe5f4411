// Package console provides an interactive terminal UI for a running
// session, showing the conversation, turn state and stage errors.
package console

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/voxloop/voxloop/core/events"
)

// SessionEndedMsg reports that the session loop has exited.
type SessionEndedMsg struct {
	Err error
}

type stateChangedMsg struct {
	from string
	to   string
}

type speechStartedMsg struct{}

type interimTranscriptMsg struct {
	transcript string
}

type finalTranscriptMsg struct {
	transcript string
}

type responseSegmentMsg struct {
	segment string
}

type responseFinalMsg struct {
	response string
}

type playbackEndedMsg struct {
	spoken string
}

type interruptionMsg struct {
	at string
}

type segmentDiscardedMsg struct {
	frames int
}

type stageErrorMsg struct {
	stage string
	err   error
}

type sessionFatalMsg struct {
	stage string
	err   error
}

// EventAdapter converts session events into bubbletea messages.
type EventAdapter struct {
	program *tea.Program
}

// NewEventAdapter creates an adapter that forwards events to the program.
func NewEventAdapter(program *tea.Program) *EventAdapter {
	return &EventAdapter{program: program}
}

// OnEvent converts a session event into a TUI message.
func (a *EventAdapter) OnEvent(event events.Event) {
	msg := a.mapEvent(event)
	if msg != nil {
		a.program.Send(msg)
	}
}

func (a *EventAdapter) mapEvent(event events.Event) tea.Msg {
	switch e := event.(type) {
	case events.TurnStateChanged:
		return stateChangedMsg{from: e.Old, to: e.New}
	case events.UserSpeechStarted:
		return speechStartedMsg{}
	case events.UserTranscriptInterim:
		return interimTranscriptMsg{transcript: e.Transcript}
	case events.UserTranscriptFinal:
		return finalTranscriptMsg{transcript: e.Transcript}
	case events.AssistantResponseSegment:
		return responseSegmentMsg{segment: e.Segment}
	case events.AssistantResponseFinal:
		return responseFinalMsg{response: e.Response}
	case events.AssistantPlaybackEnded:
		return playbackEndedMsg{spoken: e.Transcript}
	case events.InterruptionDetected:
		return interruptionMsg{at: e.At}
	case events.UserSegmentDiscarded:
		return segmentDiscardedMsg{frames: e.Frames}
	case events.StageError:
		return stageErrorMsg{stage: e.Stage, err: e.Err}
	case events.SessionFatal:
		return sessionFatalMsg{stage: e.Stage, err: e.Err}
	default:
		return nil
	}
}
