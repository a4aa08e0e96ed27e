package subject

// Patch is a partial profile update. Absent fields keep the current value.
type Patch struct {
	Title       Option[string] `json:"title"`
	FirstName   Option[string] `json:"first_name"`
	MiddleName  Option[string] `json:"middle_name"`
	LastName    Option[string] `json:"last_name"`
	Email       Option[string] `json:"email"`
	Mobile      Option[string] `json:"mobile"`
	Institution Option[string] `json:"institution"`
	JobPosition Option[string] `json:"job_position"`
	Gender      Option[string] `json:"gender"`
	Biography   Option[string] `json:"biography"`
	PictureURL  Option[string] `json:"picture_url"`

	ConferenceKitReceived Option[bool] `json:"conference_kit_received"`
	HasAccompanyingPerson Option[bool] `json:"has_accompanying_person"`
}

// Empty reports whether no field is set.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply returns s with every present field of p applied. s is not modified.
func (p Patch) Apply(s Subject) Subject {
	s.Title = p.Title.Or(s.Title)
	s.Name.First = p.FirstName.Or(s.Name.First)
	s.Name.Middle = p.MiddleName.Or(s.Name.Middle)
	s.Name.Last = p.LastName.Or(s.Name.Last)
	s.Email = p.Email.Or(s.Email)
	s.Mobile = p.Mobile.Or(s.Mobile)
	s.Institution = p.Institution.Or(s.Institution)
	s.JobPosition = p.JobPosition.Or(s.JobPosition)
	s.Gender = p.Gender.Or(s.Gender)
	s.Biography = p.Biography.Or(s.Biography)
	s.PictureURL = p.PictureURL.Or(s.PictureURL)
	s.ConferenceKitReceived = p.ConferenceKitReceived.Or(s.ConferenceKitReceived)
	s.HasAccompanyingPerson = p.HasAccompanyingPerson.Or(s.HasAccompanyingPerson)
	return s
}
