package domain

// DonorCard is the scoped directory view: what a recipient (or donor) may
// see about another donor before any request between them is accepted.
// Contact fields are deliberately absent from the type so they cannot leak
// through serialization.
type DonorCard struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	BloodType   string `json:"blood_type"`
	City        string `json:"city,omitempty"`
	IsAvailable bool   `json:"is_available"`
}

// DonorContact is the unscoped view with full contact fields. Hospitals see
// it unconditionally; donors and recipients only as the counterpart on an
// accepted or completed request.
type DonorContact struct {
	DonorCard
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

func NewDonorCard(u *User) DonorCard {
	return DonorCard{
		ID:          u.ID,
		Name:        u.Name,
		BloodType:   u.BloodType,
		City:        u.City,
		IsAvailable: u.IsAvailable,
	}
}

func NewDonorContact(u *User) DonorContact {
	return DonorContact{
		DonorCard: NewDonorCard(u),
		Email:     u.Email,
		Phone:     u.Phone,
		Address:   u.Address,
	}
}

// CanViewContact is the contact-field exposure rule from the capability
// matrix. linked means the actor and the donor are counterparts on an
// accepted or completed request.
func CanViewContact(actorRole string, actorID int64, donor *User, linked bool) bool {
	if actorID == donor.ID {
		return true
	}
	switch actorRole {
	case RoleHospital:
		return true
	case RoleRecipient, RoleDonor:
		return linked
	default:
		return false
	}
}

// ScopeDonor returns the widest view the actor is entitled to, as a value
// ready for serialization.
func ScopeDonor(actorRole string, actorID int64, donor *User, linked bool) any {
	if CanViewContact(actorRole, actorID, donor, linked) {
		return NewDonorContact(donor)
	}
	return NewDonorCard(donor)
}
