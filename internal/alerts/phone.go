package alerts

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// FormatPhone returns a display form and a tel: URI for a lead phone.
// Numbers that do not parse for region are shown as given.
func FormatPhone(raw, region string) (display, dialURI string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	parsed, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return raw, "tel:" + strings.ReplaceAll(raw, " ", "")
	}
	return phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL),
		"tel:" + phonenumbers.Format(parsed, phonenumbers.E164)
}
