package session

import (
	"encoding/json"
	"maps"

	"github.com/dmitrymomot/consolekit/pkg/loginstate"
)

// Record is what a session id points to.
type Record struct {
	LoginState  loginstate.State  `json:"loginState"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Clone returns a copy whose preferences can be mutated independently.
func (r Record) Clone() Record {
	r.Preferences = maps.Clone(r.Preferences)
	return r
}

func (r Record) encode() ([]byte, error) {
	return json.Marshal(r)
}

func decodeRecord(blob []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(blob, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}
