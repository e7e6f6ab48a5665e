package notifier

import (
	"fmt"

	"github.com/bookstack-dev/library-reservations/internal/entity"
)

// Registered channel names.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelTelegram = "telegram"
)

// TextSender is the transport shared by the concrete clients in pkg/:
// email, sms and telegram all send a plain text message to an address.
type TextSender interface {
	Send(to, message string) error
}

// EmailChannel delivers to the user's email address.
type EmailChannel struct {
	Sender TextSender
}

func (c EmailChannel) Deliver(user entity.User, message string) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.ID)
	}
	return c.Sender.Send(user.Email, message)
}

// SMSChannel delivers to the user's phone number.
type SMSChannel struct {
	Sender TextSender
}

func (c SMSChannel) Deliver(user entity.User, message string) error {
	if user.Phone == "" {
		return fmt.Errorf("user %s has no phone number", user.ID)
	}
	return c.Sender.Send(user.Phone, message)
}

// TelegramChannel delivers to the user's linked telegram chat.
type TelegramChannel struct {
	Sender TextSender
}

func (c TelegramChannel) Deliver(user entity.User, message string) error {
	if user.TelegramID == "" {
		return fmt.Errorf("user %s has no linked telegram account", user.ID)
	}
	return c.Sender.Send(user.TelegramID, message)
}
