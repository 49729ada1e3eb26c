package task

import (
	"errors"
	"fmt"

	"github.com/tryon-ai/tryon/pkg/types"
)

// ErrUnknownKind is returned for a task kind with no registered endpoint.
var ErrUnknownKind = errors.New("unknown task kind")

// ErrMissingImage is returned when a required image slot is empty.
var ErrMissingImage = errors.New("missing required image")

// Slot binds a client-side image slot to its multipart field on the service.
type Slot struct {
	Name     string
	Field    string
	Required bool
}

// Endpoint describes one generation pipeline of the remote service.
type Endpoint struct {
	Kind   types.TaskKind
	Prefix string
	Slots  []Slot
}

// AccessoryEndpoint is the accessory try-on pipeline.
var AccessoryEndpoint = Endpoint{
	Kind:   types.KindAccessory,
	Prefix: "accessory-try-on",
	Slots: []Slot{
		{Name: types.SlotJewelry, Field: "accessory_image", Required: true},
		{Name: types.SlotPerson, Field: "person_image", Required: true},
		{Name: types.SlotDetail, Field: "accessory_detail_image"},
	},
}

// ClothingEndpoint is the clothing try-on pipeline.
var ClothingEndpoint = Endpoint{
	Kind:   types.KindClothing,
	Prefix: "clothing-try-on",
	Slots: []Slot{
		{Name: types.SlotClothing, Field: "clothing_image", Required: true},
		{Name: types.SlotPerson, Field: "person_image", Required: true},
	},
}

// DefaultEndpoints returns the built-in pipelines.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{AccessoryEndpoint, ClothingEndpoint}
}

// cacheSet returns images restricted to the endpoint's slots, with every
// declared slot present as a key. Slots the caller left out are stored absent.
func (e Endpoint) cacheSet(images types.ImageSet) types.ImageSet {
	set := make(types.ImageSet, len(e.Slots))
	for _, s := range e.Slots {
		set[s.Name] = images[s.Name]
	}
	return set
}

func (e Endpoint) validate(images types.ImageSet) error {
	for _, s := range e.Slots {
		if s.Required && images[s.Name] == nil {
			return fmt.Errorf("%w: %s", ErrMissingImage, s.Name)
		}
	}
	return nil
}
