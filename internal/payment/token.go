package payment

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// ComputeAccessToken derives the callback capability token from an order secret.
func ComputeAccessToken(orderSecret string) string {
	sum := sha1.Sum([]byte(strings.ToLower(orderSecret)))
	return hex.EncodeToString(sum[:])
}

// TokensEqual compares two tokens in constant time.
func TokensEqual(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// MerchantTransactionID builds the gateway-side correlation reference.
func MerchantTransactionID(eventSlug, orderCode string, localID int) string {
	return fmt.Sprintf("%s-%s-P-%d", strings.ToUpper(eventSlug), orderCode, localID)
}

// WidgetURL is the script URL that renders the hosted checkout form.
func WidgetURL(endpointBase, checkoutID string) string {
	return endpointBase + "/v1/paymentWidgets.js?checkoutId=" + url.QueryEscape(checkoutID)
}

// CallbackPath builds the pay, return or notify path of a payment.
func CallbackPath(eventSlug, brand, action, orderCode, orderSecret string, paymentID uint) string {
	return fmt.Sprintf("/%s/%s/%s/%s/%s/%d/",
		eventSlug, brand, action, orderCode, ComputeAccessToken(orderSecret), paymentID)
}
