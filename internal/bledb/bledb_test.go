package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "16-bit short form", input: "180d", expected: "180d"},
		{name: "16-bit upper case", input: "180D", expected: "180d"},
		{name: "16-bit with 0x prefix", input: "0x180d", expected: "180d"},
		{name: "Full Bluetooth SIG UUID with dashes", input: "0000180d-0000-1000-8000-00805f9b34fb", expected: "180d"},
		{name: "Full Bluetooth SIG UUID without dashes", input: "0000180d00001000800000805f9b34fb", expected: "180d"},
		{name: "Custom 128-bit UUID (not SIG base)", input: "6e400001-b5a3-f393-e0a9-e50e24dcca9e", expected: "6e400001b5a3f393e0a9e50e24dcca9e"},
		{name: "UUID with braces", input: "{0000180d-0000-1000-8000-00805f9b34fb}", expected: "180d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		lookup   func(string) string
		uuid     string
		expected string
	}{
		{name: "short service", lookup: ServiceName, uuid: "180d", expected: "Heart Rate"},
		{name: "full service", lookup: ServiceName, uuid: "0000180F-0000-1000-8000-00805F9B34FB", expected: "Battery Service"},
		{name: "unknown service", lookup: ServiceName, uuid: "6e400001-b5a3-f393-e0a9-e50e24dcca9e", expected: ""},
		{name: "characteristic", lookup: CharacteristicName, uuid: "2a37", expected: "Heart Rate Measurement"},
		{name: "service is not a characteristic", lookup: CharacteristicName, uuid: "180d", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.lookup(tt.uuid))
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "1809 (Health Thermometer)", Describe("1809"))
	assert.Equal(t, "abcd", Describe("abcd"))
}
