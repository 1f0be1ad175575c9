package goble

import (
	"sort"

	"github.com/go-ble/ble"

	"github.com/srg/blelink/internal/bledb"
)

// Characteristic is a discovered characteristic.
type Characteristic struct {
	UUID       string
	Properties ble.Property
}

// Service is a discovered service with its characteristics keyed by normalized UUID.
type Service struct {
	UUID            string
	Characteristics map[string]*Characteristic
}

// Profile is the discovered GATT profile of a Device. It implements lifecycle.Services.
type Profile struct {
	services map[string]*Service
}

// NewProfile indexes a go-ble profile. A nil profile yields an empty Profile.
func NewProfile(p *ble.Profile) *Profile {
	profile := &Profile{services: make(map[string]*Service)}
	if p == nil {
		return profile
	}
	for _, bleSvc := range p.Services {
		svcUUID := bledb.NormalizeUUID(bleSvc.UUID.String())
		svc, ok := profile.services[svcUUID]
		if !ok {
			svc = &Service{UUID: svcUUID, Characteristics: make(map[string]*Characteristic)}
			profile.services[svcUUID] = svc
		}
		for _, bleChar := range bleSvc.Characteristics {
			charUUID := bledb.NormalizeUUID(bleChar.UUID.String())
			svc.Characteristics[charUUID] = &Characteristic{UUID: charUUID, Properties: bleChar.Property}
		}
	}
	return profile
}

// UUIDs returns the normalized service UUIDs in sorted order.
func (p *Profile) UUIDs() []string {
	out := make([]string, 0, len(p.services))
	for uuid := range p.services {
		out = append(out, uuid)
	}
	sort.Strings(out)
	return out
}

// Service looks up a service by UUID in any supported notation.
func (p *Profile) Service(uuid string) (*Service, error) {
	svc, ok := p.services[bledb.NormalizeUUID(uuid)]
	if !ok {
		return nil, &NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return svc, nil
}

// Characteristic looks up a characteristic by service and characteristic UUID.
func (p *Profile) Characteristic(service, uuid string) (*Characteristic, error) {
	svc, err := p.Service(service)
	if err != nil {
		return nil, err
	}
	char, ok := svc.Characteristics[bledb.NormalizeUUID(uuid)]
	if !ok {
		return nil, &NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}
	return char, nil
}
