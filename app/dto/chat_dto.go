package dto

// InboundMessageRequest is a normalized inbound chat message from the
// WhatsApp webhook. Intent extraction happens upstream; Body arrives as a
// plain command line.
type InboundMessageRequest struct {
	From string `json:"from" validate:"required,min=8,max=20"`
	Name string `json:"name,omitempty" validate:"omitempty,max=255"`
	Body string `json:"body" validate:"required,max=4096"`
}

// OutboundMessageResponse is the reply rendered for the sender
type OutboundMessageResponse struct {
	To   string `json:"to"`
	Body string `json:"body"`
}
