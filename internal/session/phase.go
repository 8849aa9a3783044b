package session

import "fmt"

// Phase is the session state published to the UI.
type Phase uint8

const (
	Menu Phase = iota
	EnteringLevel
	InGame
	GameOver
	FadeOut

	EstablishingNetwork
	SendSyncMessage
	RecvSyncMessage
)

var phaseNames = [...]string{
	Menu:                "Menu",
	EnteringLevel:       "EnteringLevel",
	InGame:              "InGame",
	GameOver:            "GameOver",
	FadeOut:             "FadeOut",
	EstablishingNetwork: "EstablishingNetwork",
	SendSyncMessage:     "SendSyncMessage",
	RecvSyncMessage:     "RecvSyncMessage",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Connecting reports whether p belongs to the handshake.
func (p Phase) Connecting() bool {
	return p == EstablishingNetwork || p == SendSyncMessage || p == RecvSyncMessage
}

// Lockstep reports whether the tick driver runs in p.
func (p Phase) Lockstep() bool {
	return p == InGame || p == FadeOut
}

// Role is the peer's side of the session, fixed once the handshake assigns it.
type Role uint8

const (
	Primary   Role = 0
	Secondary Role = 1
)

// Other returns the opposite role.
func (r Role) Other() Role {
	return 1 - r
}

func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}
