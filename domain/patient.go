package domain

import (
	"strings"
	"time"
)

type Patient struct {
	ID        int64     `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	BirthDate *string   `db:"birth_date" json:"birth_date,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PatientRef is the slice of a patient attached to a sale listing.
type PatientRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (p PatientRef) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p Patient) Ref() PatientRef {
	return PatientRef{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, Phone: p.Phone}
}

const birthDateLayout = "2006-01-02"

func (p Patient) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return NewValidationError("first_name and last_name are required")
	}
	if strings.TrimSpace(p.Phone) == "" {
		return NewValidationError("phone is required")
	}
	if p.BirthDate != nil {
		if _, err := time.Parse(birthDateLayout, *p.BirthDate); err != nil {
			return NewValidationError("birth_date must be in YYYY-MM-DD format")
		}
	}
	return nil
}

// Age returns completed years at now. ok is false when no usable birth date is on file.
func (p Patient) Age(now time.Time) (age int, ok bool) {
	if p.BirthDate == nil {
		return 0, false
	}
	birth, err := time.Parse(birthDateLayout, *p.BirthDate)
	if err != nil {
		return 0, false
	}
	age = now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, true
}
