package types

import "time"

// Well-known image slot names used by the built-in endpoints.
const (
	SlotJewelry  = "jewelryImage"
	SlotClothing = "clothingImage"
	SlotPerson   = "personImage"
	SlotDetail   = "detailImage"
)

// Image is one binary payload held in an image slot.
type Image struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// ImageSet maps slot names to images. A nil value marks a declared but absent slot,
// which is distinct from a slot that was never declared.
type ImageSet map[string]*Image

// Present returns the number of slots that carry a payload.
func (s ImageSet) Present() int {
	n := 0
	for _, img := range s {
		if img != nil {
			n++
		}
	}
	return n
}

// CachedImages is an ImageSet as read back from the asset store.
type CachedImages struct {
	TaskID  string    `json:"task_id"`
	SavedAt time.Time `json:"saved_at"`
	Images  ImageSet  `json:"-"`
}

// SlotInfo describes a cached slot without its payload.
type SlotInfo struct {
	Slot     string `json:"slot"`
	Present  bool   `json:"present"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
}

// CacheEntry summarises one stored task for listings.
type CacheEntry struct {
	TaskID  string     `json:"task_id"`
	SavedAt time.Time  `json:"saved_at"`
	Slots   []SlotInfo `json:"slots"`
}

// SweepResult reports what a sweep visited and removed.
type SweepResult struct {
	Scanned int      `json:"scanned"`
	Removed []string `json:"removed"`
}
