package domain

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
	RequestExpired   RequestStatus = "expired"
)

func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch RequestStatus(s) {
	case RequestPending, RequestAccepted, RequestRejected, RequestCompleted, RequestExpired:
		return RequestStatus(s), true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further transition is permitted.
// Every state except pending and accepted is terminal; accepted only
// admits completion.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestRejected, RequestCompleted, RequestExpired:
		return true
	default:
		return false
	}
}

// CanTransition encodes the lifecycle edges:
// pending -> accepted | rejected | expired, accepted -> completed.
func (s RequestStatus) CanTransition(to RequestStatus) bool {
	switch s {
	case RequestPending:
		return to == RequestAccepted || to == RequestRejected || to == RequestExpired
	case RequestAccepted:
		return to == RequestCompleted
	default:
		return false
	}
}

type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

func ParseUrgency(s string) (Urgency, bool) {
	switch Urgency(s) {
	case UrgencyNormal, UrgencyUrgent, UrgencyEmergency:
		return Urgency(s), true
	default:
		return "", false
	}
}

type DonationRequest struct {
	ID           int64         `json:"id"`
	RecipientID  int64         `json:"recipient_id"`
	DonorID      int64         `json:"donor_id"`
	HospitalID   *int64        `json:"hospital_id,omitempty"`
	BroadcastID  *string       `json:"broadcast_id,omitempty"`
	Status       RequestStatus `json:"status"`
	BloodType    string        `json:"blood_type"`
	UnitsNeeded  int           `json:"units_needed"`
	Urgency      Urgency       `json:"urgency"`
	PatientName  string        `json:"patient_name"`
	ContactPhone string        `json:"contact_phone"`
	Message      string        `json:"message,omitempty"`
	AcceptedAt   *time.Time    `json:"accepted_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// IsDonor reports whether the given user is the targeted donor.
func (r *DonationRequest) IsDonor(userID int64) bool {
	return r.DonorID == userID
}

// IsParty reports whether the given user is the donor or the recipient on
// this request. Completion may be marked by either party.
func (r *DonationRequest) IsParty(userID int64) bool {
	return r.DonorID == userID || r.RecipientID == userID
}

// UnitsNeeded is a pointer so an omitted field (defaults to one unit) is
// distinguishable from an explicit zero, which is invalid.
type CreateRequestPayload struct {
	DonorID      int64  `json:"donor_id"`
	BloodType    string `json:"blood_type"`
	UnitsNeeded  *int   `json:"units_needed"`
	Urgency      string `json:"urgency"`
	PatientName  string `json:"patient_name"`
	ContactPhone string `json:"contact_phone"`
	Message      string `json:"message"`
}

// Normalize applies the creation defaults: one unit, normal urgency.
func (p *CreateRequestPayload) Normalize() {
	if p.UnitsNeeded == nil {
		one := 1
		p.UnitsNeeded = &one
	}
	if p.Urgency == "" {
		p.Urgency = string(UrgencyNormal)
	}
}

func (p *CreateRequestPayload) Validate() error {
	if p.DonorID <= 0 {
		return Validationf("donor_id is required")
	}
	if !IsValidBloodType(p.BloodType) {
		return Validationf("invalid blood type")
	}
	if p.UnitsNeeded == nil || *p.UnitsNeeded < 1 {
		return Validationf("units_needed must be at least 1")
	}
	if _, ok := ParseUrgency(p.Urgency); !ok {
		return Validationf("invalid urgency")
	}
	if p.PatientName == "" {
		return Validationf("patient_name is required")
	}
	if p.ContactPhone == "" {
		return Validationf("contact_phone is required")
	}
	return nil
}

type BroadcastPayload struct {
	BloodType    string `json:"blood_type"`
	UnitsNeeded  *int   `json:"units_needed"`
	PatientName  string `json:"patient_name"`
	ContactPhone string `json:"contact_phone"`
	Message      string `json:"message"`
}

func (p *BroadcastPayload) Normalize() {
	if p.UnitsNeeded == nil {
		one := 1
		p.UnitsNeeded = &one
	}
}

func (p *BroadcastPayload) Validate() error {
	if !IsValidBloodType(p.BloodType) {
		return Validationf("invalid blood type")
	}
	if p.UnitsNeeded == nil || *p.UnitsNeeded < 1 {
		return Validationf("units_needed must be at least 1")
	}
	if p.PatientName == "" {
		return Validationf("patient_name is required")
	}
	if p.ContactPhone == "" {
		return Validationf("contact_phone is required")
	}
	return nil
}

type BroadcastResult struct {
	BroadcastID string            `json:"broadcast_id"`
	Requests    []DonationRequest `json:"requests"`
}
