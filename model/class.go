package model

// ClassMetadata describes one class of the inventory data model.
type ClassMetadata struct {
	Name        string
	Parent      string // empty for the root class
	DisplayName string
	Abstract    bool
}

// ClassInfoLight is the summary returned by subclass listings.
type ClassInfoLight struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Abstract    bool   `json:"abstract,omitempty"`
	Parent      string `json:"parent,omitempty"`
}

// Light returns the summary form of the class.
func (c ClassMetadata) Light() ClassInfoLight {
	return ClassInfoLight{Name: c.Name, DisplayName: c.DisplayName, Abstract: c.Abstract, Parent: c.Parent}
}
