package model

import (
	"encoding/json"
	"fmt"
)

// SystemOwner marks a shared default view that no individual user owns.
const SystemOwner = "system"

type Meta struct {
	Owner       string `json:"owner"`
	TimeCreated int64  `json:"timeCreated"`
	TimeUpdated int64  `json:"timeUpdated"`
	Version     string `json:"version"`
}

// View is a stored UI view document. ID, Name and Meta are the fields the
// gateway manages; everything else is the caller's opaque payload and is
// round-tripped untouched.
type View struct {
	ID      string
	Name    string
	Meta    Meta
	Payload map[string]json.RawMessage
}

// Reserved top-level keys owned by the gateway rather than the payload.
const (
	keyID   = "id"
	keyMeta = "meta"
	keyName = "name"
)

func (v View) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(v.Payload)+3)
	for k, raw := range v.Payload {
		doc[k] = raw
	}
	doc[keyID] = v.ID
	doc[keyMeta] = v.Meta
	// A non-string name stays in Payload; it is only replaced by a real title.
	if _, kept := v.Payload[keyName]; !kept || v.Name != "" {
		doc[keyName] = v.Name
	}
	return json.Marshal(doc)
}

func (v *View) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("view document is not an object")
	}

	*v = View{}
	if raw, ok := doc[keyID]; ok {
		if err := json.Unmarshal(raw, &v.ID); err != nil {
			return fmt.Errorf("view id: %w", err)
		}
	}
	if raw, ok := doc[keyName]; ok {
		// Callers own the payload, so name may be any JSON value. Only a
		// string (or null) is the view's title; anything else is left in Payload.
		var name string
		if json.Unmarshal(raw, &name) == nil {
			v.Name = name
			delete(doc, keyName)
		}
	}
	if raw, ok := doc[keyMeta]; ok {
		if err := json.Unmarshal(raw, &v.Meta); err != nil {
			return fmt.Errorf("view meta: %w", err)
		}
	}
	delete(doc, keyID)
	delete(doc, keyMeta)
	v.Payload = doc
	return nil
}

// IsSystem reports whether the view is a shared default view.
func (v *View) IsSystem() bool {
	return v.Meta.Owner == SystemOwner
}

// Summary returns the payload-free listing form of the view.
func (v *View) Summary() Summary {
	return Summary{ID: v.ID, Meta: v.Meta, Name: v.Name}
}

// Summary is the listing form of a view.
type Summary struct {
	ID   string `json:"id"`
	Meta Meta   `json:"meta"`
	Name string `json:"name"`
}

// Payload is the caller-defined part of a view sent on create and update.
type Payload map[string]json.RawMessage

// Without returns a copy of p without the given top-level keys.
func (p Payload) Without(keys ...string) Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

type CreateViewRequest struct {
	Name string  `json:"name"`
	View Payload `json:"view"`
}

type UpdateViewRequest struct {
	View Payload `json:"view"`
}

type ViewResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	View    *View  `json:"view"`
}

type DeleteViewResponse struct {
	Message  string `json:"message"`
	NextView *View  `json:"nextView"`
	Success  bool   `json:"success"`
}
