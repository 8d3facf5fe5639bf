package alerts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantPrefix string
		wantDial   string
	}{
		{"national mobile", "0612345678", "+212", "tel:+212612345678"},
		{"already international", "+212612345678", "+212", "tel:+212612345678"},
		{"unparseable", "call reception", "call reception", "tel:callreception"},
		{"empty", "  ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display, dial := FormatPhone(tt.raw, "MA")
			assert.True(t, strings.HasPrefix(display, tt.wantPrefix), display)
			assert.Equal(t, tt.wantDial, dial)
		})
	}
}
