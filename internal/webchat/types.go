// Package webchat drives one chat-widget conversation against the external
// webchat API: contact form, session creation, sends and reply polling.
package webchat

import (
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is immutable once appended. IDs are unique within a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Status string

const (
	StatusUninitialized       Status = "uninitialized"
	StatusAwaitingContactInfo Status = "awaiting_contact_info"
	StatusInitializing        Status = "initializing"
	StatusActive              Status = "active"
	StatusPollingDegraded     Status = "polling_degraded"
	StatusClosed              Status = "closed"
)

type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FieldErrors maps a contact form field ("name", "email") to its message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if msg, ok := fe["name"]; ok {
		return "name: " + msg
	}
	if msg, ok := fe["email"]; ok {
		return "email: " + msg
	}
	return "invalid contact info"
}

// View is a copy of the visible conversation state.
type View struct {
	Status      Status      `json:"status"`
	Open        bool        `json:"open"`
	Visible     bool        `json:"visible"`
	BotName     string      `json:"botName"`
	SessionID   string      `json:"sessionId,omitempty"`
	Contact     ContactInfo `json:"contact"`
	Messages    []Message   `json:"messages"`
	Sending     bool        `json:"sending"`
	FieldErrors FieldErrors `json:"fieldErrors,omitempty"`
	PollCursor  time.Time   `json:"pollCursor"`
}

const (
	DefaultWelcomeMessage = "Hola. Soy el asistente de Alto Tráfico. ¿En qué puedo ayudarte?"
	DefaultBotName        = "Asistente Alto Tráfico"

	connectFailedMessage = "No se pudo conectar. Inténtalo más tarde."
	welcomeID            = "welcome"

	// MaxPollFailures consecutive poll errors stop polling for good.
	MaxPollFailures = 5

	DefaultPollInterval   = 2500 * time.Millisecond
	DefaultSendTimeout    = 30 * time.Second
	DefaultRequestTimeout = 15 * time.Second
)

var (
	// ErrInert is returned by SubmitContactInfo when the widget is disabled or unconfigured.
	ErrInert = errors.New("webchat: widget is not configured")
	// ErrClosed is returned once the controller has been discarded.
	ErrClosed = errors.New("webchat: controller closed")
	// ErrBusy is returned when a contact submission arrives outside awaiting_contact_info.
	ErrBusy = errors.New("webchat: contact form not accepted in current state")
)
