package notification

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidContact = errors.New("invalid Indian mobile number format for WhatsApp")

const (
	countryCode  = "91"
	deepLinkBase = "https://wa.me/"
)

// BookingNotice is what a confirmed booking hands to the dispatcher.
type BookingNotice struct {
	SlotID        int64  `json:"slotId"`
	DoctorID      string `json:"doctorId"`
	DoctorName    string `json:"doctorName,omitempty"`
	DoctorContact string `json:"doctorContact,omitempty"`
	PatientName   string `json:"patientName"`
	PhoneNumber   string `json:"phoneNumber"`
	Address       string `json:"address"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

// NormalizeContactNumber strips everything but digits, then accepts a bare
// 10-digit number (prefixed with 91) or a 12-digit number already starting
// with 91.
func NormalizeContactNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return countryCode + digits, nil
	case len(digits) == 12 && strings.HasPrefix(digits, countryCode):
		return digits, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidContact, raw)
	}
}

func BuildMessage(n BookingNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello Dr. %s,\n\n", n.DoctorName)
	b.WriteString("I would like to book an appointment.\n\n")
	fmt.Fprintf(&b, "*Patient Name:* %s\n", n.PatientName)
	fmt.Fprintf(&b, "*Phone Number:* %s\n", n.PhoneNumber)
	fmt.Fprintf(&b, "*Address:* %s\n", n.Address)
	fmt.Fprintf(&b, "*Preferred Date:* %s\n", n.Date)
	fmt.Fprintf(&b, "*Preferred Time:* %s\n\n", n.Time)
	b.WriteString("Thank you!")
	return b.String()
}

// DeepLink builds a wa.me link for an already normalized number.
func DeepLink(number, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return deepLinkBase + number + "?text=" + text
}
