package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceType(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		fieldType string
		want      string
		wantOK    bool
	}{
		{"blank is null for any type", "   ", "Integer", "", true},
		{"uuid keeps its casing", "550E8400-E29B-41D4-A716-446655440000", "UUID", "550E8400-E29B-41D4-A716-446655440000", true},
		{"uuid malformed", "not-a-uuid", "UUID", "not-a-uuid", false},
		{"uuid wrong group length", "550e8400-e29b-41d4-a716-44665544000", "UUID", "550e8400-e29b-41d4-a716-44665544000", false},
		{"string trimmed", "  Solar Park A  ", "String(100)", "Solar Park A", true},
		{"integer", "42", "Integer", "42", true},
		{"integer leading zeros normalized", "007", "Integer", "7", true},
		{"integer rejects decimals", "3.5", "Integer", "3.5", false},
		{"integer64", "9223372036854775807", "Integer64", "9223372036854775807", true},
		{"decimal", "3.50", "Decimal(10,2)", "3.5", true},
		{"decimal plain int accepted", "4", "Decimal(10,2)", "4", true},
		{"decimal garbage", "abc", "Decimal(10,2)", "abc", false},
		{"boolean yes", "Yes", "Boolean", "true", true},
		{"boolean zero", "0", "Boolean", "false", true},
		{"boolean garbage", "maybe", "Boolean", "maybe", false},
		{"timestamp date only", "2024-03-01", "Timestamp", "2024-03-01T00:00:00", true},
		{"timestamp rfc3339", "2024-03-01T10:30:00Z", "Timestamp", "2024-03-01T10:30:00", true},
		{"timestamp space separated", "2024-03-01 10:30:00", "Timestamp", "2024-03-01T10:30:00", true},
		{"timestamp day first", "01/03/2024", "Timestamp", "2024-03-01T00:00:00", true},
		{"timestamp garbage", "yesterday", "Timestamp", "yesterday", false},
		{"enum type passes through", "SOLAR", "ProjectType", "SOLAR", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceType("FIELD", tt.value, tt.fieldType)
			assert.Equal(t, tt.wantOK, got.OK(), "reason: %s", got.Reason())
			assert.Equal(t, tt.want, got.Value())
			if tt.wantOK {
				assert.Empty(t, got.Reason())
			} else {
				assert.NotEmpty(t, got.Reason())
			}
		})
	}
}
