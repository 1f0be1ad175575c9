// Package bledb resolves Bluetooth SIG assigned numbers to display names.
package bledb

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed assigned.yaml
var assignedYAML []byte

// sigBaseSuffix is the Bluetooth SIG base UUID tail shared by every 16-bit UUID.
const sigBaseSuffix = "00001000800000805f9b34fb"

type table struct {
	Services        map[string]string `yaml:"services"`
	Characteristics map[string]string `yaml:"characteristics"`
}

var (
	loadOnce sync.Once
	db       table
)

func load() {
	loadOnce.Do(func() {
		if err := yaml.Unmarshal(assignedYAML, &db); err != nil {
			panic(fmt.Sprintf("bledb: corrupt assigned numbers table: %v", err))
		}
	})
}

// NormalizeUUID converts a UUID to lookup form: lowercase, no dashes, braces or
// 0x prefix. UUIDs built on the Bluetooth SIG base are shortened to 16 bits.
func NormalizeUUID(uuid string) string {
	s := strings.ToLower(strings.TrimSpace(uuid))
	s = strings.TrimPrefix(s, "0x")
	s = strings.Trim(s, "{}")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, sigBaseSuffix) {
		return s[4:8]
	}
	return s
}

// ServiceName returns the assigned name of a service UUID, or "".
func ServiceName(uuid string) string {
	load()
	return db.Services[NormalizeUUID(uuid)]
}

// CharacteristicName returns the assigned name of a characteristic UUID, or "".
func CharacteristicName(uuid string) string {
	load()
	return db.Characteristics[NormalizeUUID(uuid)]
}

// Describe formats uuid with its service name when one is known: "180d (Heart Rate)".
func Describe(uuid string) string {
	if name := ServiceName(uuid); name != "" {
		return fmt.Sprintf("%s (%s)", uuid, name)
	}
	return uuid
}
