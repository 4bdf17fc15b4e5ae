package payment

import "errors"

var (
	ErrGatewayUnreachable        = errors.New("payment gateway unreachable")
	ErrGatewayProtocolError      = errors.New("payment gateway returned a malformed response")
	ErrConfiguration             = errors.New("payment provider misconfigured")
	ErrNoGatewayRecord           = errors.New("no gateway record for payment")
	ErrCorrelationMismatch       = errors.New("gateway id does not match stored correlation id")
	ErrPaymentServiceUnavailable = errors.New("payment service unavailable")
)

// Messages shown to buyers and operators.
const (
	MsgServiceUnavailable = "We had trouble communicating with the payment service. Please try again and get in touch with us if this problem persists."
	MsgNoPaymentInfo      = "No payment information found."
	MsgValidationFailed   = "Sorry, we could not validate the payment result. Please try again or contact the event organizer to check if your payment was successful."
	MsgProviderDisabled   = "This payment method is currently not available."
)

// PaymentError is an error whose Message is safe to display to the user.
type PaymentError struct {
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// UserMessage extracts the displayable message of err, falling back to def.
func UserMessage(err error, def string) string {
	var pe *PaymentError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return def
}
