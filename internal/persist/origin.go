package persist

import "fmt"

// Origin records where the current document came from, which decides where
// Save writes it.
type Origin int

const (
	OriginNone Origin = iota
	OriginNewlyCreated
	OriginLoadedCopy
	OriginRecoveredDraft
	OriginExternalFile
	OriginOwnedStore
)

var originNames = [...]string{
	OriginNone:           "none",
	OriginNewlyCreated:   "newly-created",
	OriginLoadedCopy:     "loaded-copy",
	OriginRecoveredDraft: "recovered-draft",
	OriginExternalFile:   "external-file",
	OriginOwnedStore:     "owned-store",
}

func (o Origin) String() string {
	if o < 0 || int(o) >= len(originNames) {
		return "unknown"
	}
	return originNames[o]
}

// Durable reports whether Save writes back to the origin itself.
func (o Origin) Durable() bool {
	return o == OriginExternalFile || o == OriginOwnedStore
}

// MarshalText renders the origin by name in JSON and logs.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (o *Origin) UnmarshalText(b []byte) error {
	for i, name := range originNames {
		if name == string(b) {
			*o = Origin(i)
			return nil
		}
	}
	return fmt.Errorf("persist: unknown origin %q", b)
}
