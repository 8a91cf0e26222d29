package validation

import (
	"context"

	"llnd-portal/internal/domain"
)

// Messages shown for registration fields.
const (
	MsgNameRequired   = "Please enter your full name"
	MsgEmailInvalid   = "Please enter a valid email address"
	MsgPhoneRequired  = "Please enter your phone number"
	MsgPasswordLength = "Password must be at least 6 characters"
	MsgAgreement      = "You must agree to the terms and conditions"
)

var registrationMessages = Messages{
	"name":     MsgNameRequired,
	"email":    MsgEmailInvalid,
	"phone":    MsgPhoneRequired,
	"password": MsgPasswordLength,
	"agreed":   MsgAgreement,
}

// Registration validates guest sign-up fields. All checks must hold before the quiz may start.
func Registration(r domain.Registration) error {
	var c Collector
	c.Struct(context.Background(), r, registrationMessages)
	return c.Err()
}
