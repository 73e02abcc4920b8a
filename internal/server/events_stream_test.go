package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNT-747/investtrack/internal/events"
)

func TestParseEventTypes(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		want    []events.EventType
		wantErr string
	}{
		{name: "empty means all", filter: "", want: events.AllTypes},
		{name: "only separators", filter: " , ", want: events.AllTypes},
		{name: "case insensitive", filter: "trade_executed", want: []events.EventType{events.TradeExecuted}},
		{
			name:   "deduplicated in order",
			filter: "HOLDING_CHANGED, trade_executed,holding_changed",
			want:   []events.EventType{events.HoldingChanged, events.TradeExecuted},
		},
		{name: "unknown type", filter: "TRADE_EXECUTED,NOPE", wantErr: "unknown event type: NOPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEventTypes(tt.filter)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"*", "https://app.example.com", " http://localhost:3000 ", ""})
	assert.Equal(t, []string{"*", "app.example.com", "localhost:3000"}, got)
}
