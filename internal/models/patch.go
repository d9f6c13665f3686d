package models

// Patch carries the subset of mutable task fields to change. Nil fields are
// left untouched.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Important   *bool   `json:"important,omitempty"`
}

// Validate checks the fields that are present. The title is trimmed in place.
func (p *Patch) Validate() error {
	if p.Title != nil {
		title, err := ValidateTitle(*p.Title)
		if err != nil {
			return err
		}
		p.Title = &title
	}
	if p.Status != nil && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Important == nil
}

// Fields returns the present fields keyed by their stored name.
func (p Patch) Fields() map[string]any {
	fields := make(map[string]any, 4)
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.Important != nil {
		fields["important"] = *p.Important
	}
	return fields
}

// Apply shallow-merges the patch into t.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Important != nil {
		t.Important = *p.Important
	}
}

// StatusPatch builds a patch that only changes the status.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

// ImportantPatch builds a patch that only changes the importance flag.
func ImportantPatch(important bool) Patch {
	return Patch{Important: &important}
}
