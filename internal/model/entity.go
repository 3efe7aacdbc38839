package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Incident is a piece of evidence that an article reports a real incident
type Incident struct {
	ID    int64  `json:"id"`
	URLID int64  `json:"url_id"`
	Text  string `json:"text"` // Free-text evidence snippet from the model
}

// Person is a confirmed natural person linked to a URL (suspect or victim)
type Person struct {
	ID    int64  `json:"id"`
	URLID int64  `json:"url_id"`
	Name  string `json:"name"`
}

// Suspect is a named suspect that passed the natural-person gate
type Suspect = Person

// Victim is a named victim that passed the natural-person gate
type Victim = Person

// Age is a person's age. The model returns either a JSON number or a numeric string.
type Age int

// ageAbsent marks a placeholder age ("", "N/A", "unknown", out of range).
// Normalize turns it into a nil field.
const ageAbsent Age = -1

// UnmarshalJSON accepts 34, 34.0 and "34". Fractions are rounded to the
// nearest year. Placeholder strings and implausible values decode as absent;
// only non-number, non-string values are an error.
func (a *Age) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*a = ageAbsent
			return nil
		}
		*a = ageFrom(f)
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("age %s is not a number", string(data))
	}
	*a = ageFrom(f)
	return nil
}

func ageFrom(f float64) Age {
	if math.IsNaN(f) || f < 0 || f > 150 {
		return ageAbsent
	}
	return Age(math.Round(f))
}

func normalizeAge(a *Age) *Age {
	if a == nil || *a < 0 {
		return nil
	}
	return a
}

// SuspectForm holds the detailed, optional attributes of a suspect.
// A nil field means the article did not state it.
type SuspectForm struct {
	ID        int64  `json:"-"`
	URLID     int64  `json:"-"`
	SuspectID int64  `json:"-"`
	Name      string `json:"-"`

	Gender                       *string `json:"gender"`
	DateOfBirth                  *string `json:"date_of_birth"`
	Age                          *Age    `json:"age"`
	AddressNotes                 *string `json:"address_notes"`
	PhoneNumber                  *string `json:"phone_number"`
	Nationality                  *string `json:"nationality"`
	Occupation                   *string `json:"occupation"`
	Role                         *string `json:"role"`
	Appearance                   *string `json:"appearance"`
	VehicleDescription           *string `json:"vehicle_description"`
	VehiclePlateNumber           *string `json:"vehicle_plate_number"`
	Evidence                     *string `json:"evidence"`
	ArrestedStatus               *string `json:"arrested_status"`
	ArrestDate                   *string `json:"arrest_date"`
	CrimesPersonChargedWith      *string `json:"crimes_person_charged_with"`
	WillingPVNames               *string `json:"willing_pv_names"`
	SuspectInPoliceCustody       *string `json:"suspect_in_police_custody"`
	SuspectCurrentLocation       *string `json:"suspect_current_location"`
	SuspectLastKnownLocation     *string `json:"suspect_last_known_location"`
	SuspectLastKnownLocationDate *string `json:"suspect_last_known_location_date"`
}

// TextFields returns pointers to every string field in a stable order.
// The order matches the suspect_forms column order used by the store.
func (f *SuspectForm) TextFields() []**string {
	return []**string{
		&f.Gender, &f.DateOfBirth, &f.AddressNotes, &f.PhoneNumber, &f.Nationality,
		&f.Occupation, &f.Role, &f.Appearance, &f.VehicleDescription, &f.VehiclePlateNumber,
		&f.Evidence, &f.ArrestedStatus, &f.ArrestDate, &f.CrimesPersonChargedWith,
		&f.WillingPVNames, &f.SuspectInPoliceCustody, &f.SuspectCurrentLocation,
		&f.SuspectLastKnownLocation, &f.SuspectLastKnownLocationDate,
	}
}

// Normalize turns blank strings into absent values and lower-cases gender
func (f *SuspectForm) Normalize() {
	normalizeText(f.TextFields())
	f.Gender = normalizeGender(f.Gender)
	f.Age = normalizeAge(f.Age)
}

// VictimForm holds the detailed, optional attributes of a victim.
// A nil field means the article did not state it.
type VictimForm struct {
	ID       int64  `json:"-"`
	URLID    int64  `json:"-"`
	VictimID int64  `json:"-"`
	Name     string `json:"-"`

	Gender             *string `json:"gender"`
	DateOfBirth        *string `json:"date_of_birth"`
	Age                *Age    `json:"age"`
	AddressNotes       *string `json:"address_notes"`
	PhoneNumber        *string `json:"phone_number"`
	Nationality        *string `json:"nationality"`
	Occupation         *string `json:"occupation"`
	Appearance         *string `json:"appearance"`
	VehicleDescription *string `json:"vehicle_description"`
	VehiclePlateNumber *string `json:"vehicle_plate_number"`
	Destination        *string `json:"destination"`
	JobOffered         *string `json:"job_offered"`
}

// TextFields returns pointers to every string field in victim_forms column order
func (f *VictimForm) TextFields() []**string {
	return []**string{
		&f.Gender, &f.DateOfBirth, &f.AddressNotes, &f.PhoneNumber, &f.Nationality,
		&f.Occupation, &f.Appearance, &f.VehicleDescription, &f.VehiclePlateNumber,
		&f.Destination, &f.JobOffered,
	}
}

// Normalize turns blank strings into absent values and lower-cases gender
func (f *VictimForm) Normalize() {
	normalizeText(f.TextFields())
	f.Gender = normalizeGender(f.Gender)
	f.Age = normalizeAge(f.Age)
}

func normalizeText(fields []**string) {
	for _, p := range fields {
		if *p == nil {
			continue
		}
		v := strings.TrimSpace(**p)
		if v == "" || strings.EqualFold(v, "null") {
			*p = nil
			continue
		}
		*p = &v
	}
}

func normalizeGender(g *string) *string {
	if g == nil {
		return nil
	}
	v := strings.ToLower(*g)
	return &v
}
