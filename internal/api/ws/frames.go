package ws

import (
	"github.com/GriffinCanCode/termstream/internal/terminal/broadcast"
	"github.com/GriffinCanCode/termstream/internal/terminal/escape"
	"github.com/GriffinCanCode/termstream/internal/terminal/session"
)

// Frame types sent to the client
const (
	TypeOutput = "output"
	TypeExit   = "exit"
	TypeError  = "error"
)

// Frame types accepted from the client
const (
	TypeInput  = "input"
	TypeResize = "resize"
)

// OutputFrame carries one decoded chunk
type OutputFrame struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	Text      string             `json:"text"`
	Width     int                `json:"width"`
	Events    []escape.WireEvent `json:"events"`
	Dropped   int                `json:"dropped"`
}

// ExitFrame is the last frame of a stream whose session ended
type ExitFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	ExitCode  *int   `json:"exit_code,omitempty"`
}

// ErrorFrame reports a rejected client frame
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientFrame is any frame the client sends
type ClientFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

func outputFrame(msg broadcast.Message) OutputFrame {
	events := make([]escape.WireEvent, len(msg.Chunk.Events))
	for i, ev := range msg.Chunk.Events {
		events[i] = escape.Wire(ev)
	}
	return OutputFrame{
		Type:      TypeOutput,
		SessionID: msg.SessionID.String(),
		Text:      msg.Chunk.Text,
		Width:     msg.Chunk.Width,
		Events:    events,
		Dropped:   msg.Dropped,
	}
}

func exitFrame(info session.Info) ExitFrame {
	return ExitFrame{
		Type:      TypeExit,
		SessionID: info.ID.String(),
		Status:    info.Status.String(),
		ExitCode:  info.ExitCode,
	}
}
