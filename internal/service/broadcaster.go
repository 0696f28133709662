package service

// Broadcaster pushes events to live activation feed subscribers (avoids import cycle with ws)
type Broadcaster interface {
	BroadcastToBusiness(businessID string, msgType string, payload interface{})
}

// MsgActivationLogged carries the entries of one logged evaluation
const MsgActivationLogged = "activation_logged"
