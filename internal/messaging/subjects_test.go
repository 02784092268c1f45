package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDLQSubject(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"unparseable", "bridge.dlq.unparseable"},
		{"missing after", "bridge.dlq.missing_after"},
		{"After Is Not An Object", "bridge.dlq.after_is_not_an_object"},
		{"a.b>*", "bridge.dlq.a_b__"},
		{"  ", "bridge.dlq.unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.want, DLQSubject(tt.reason))
		})
	}
}
