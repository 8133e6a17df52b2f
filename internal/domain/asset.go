package domain

// AssetState is the processing state of a file held by the remote store.
type AssetState string

const (
	// AssetStatePending indicates the remote store is still processing the file.
	AssetStatePending AssetState = "pending"

	// AssetStateReady indicates the file can be referenced by model requests.
	AssetStateReady AssetState = "ready"

	// AssetStateFailed indicates the remote store rejected the file.
	AssetStateFailed AssetState = "failed"
)

// String returns the string representation of the state.
func (s AssetState) String() string {
	return string(s)
}

// IsTerminal returns true once the asset left the pending state.
func (s AssetState) IsTerminal() bool {
	return s == AssetStateReady || s == AssetStateFailed
}

// RemoteAsset is a reference to a file uploaded to the remote store.
//
// Name is the opaque identifier (e.g. "files/abc123") returned by the
// store; URI and MIMEType are what model requests reference.
type RemoteAsset struct {
	Name     string     `json:"fileName"`
	URI      string     `json:"uri,omitempty"`
	MIMEType string     `json:"mimeType,omitempty"`
	State    AssetState `json:"state"`
}

// IsReady returns true if the asset may be used in a comparison.
func (a RemoteAsset) IsReady() bool {
	return a.State == AssetStateReady
}

// BaselineSet maps each room to the remote asset name of its baseline photo.
type BaselineSet map[Room]string

// Missing returns the rooms that have no baseline reference, in canonical order.
func (b BaselineSet) Missing() []Room {
	var missing []Room
	for _, room := range AllRooms() {
		if b[room] == "" {
			missing = append(missing, room)
		}
	}
	return missing
}
