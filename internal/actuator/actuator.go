package actuator

import "context"

// Actuator delivers one bet message from an account to a destination chat.
// A nil error means the message was handed off successfully.
type Actuator interface {
	Dispatch(ctx context.Context, alias, chatID, text string) error
}
