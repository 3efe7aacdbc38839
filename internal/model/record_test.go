package model

import (
	"encoding/json"
	"testing"
)

func TestDomainName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.news24.com/news24/southafrica/article", "news24"},
		{"https://citizen.co.za/news/x", "citizen"},
		{"http://iol.co.za", "iol"},
		{"https://edition.cnn.com/2024/01/01/africa/story", "cnn"},
		{"https://192.168.1.10/page", "192.168.1.10"},
		{"not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := DomainName(tt.url); got != tt.want {
				t.Errorf("DomainName(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestNewURLRecord_UnknownStates(t *testing.T) {
	rec := NewURLRecord("https://www.news24.com/a", SourceGoogleSearch)

	if rec.Accessible != AccessUnknown {
		t.Errorf("Expected accessible unknown, got %v", rec.Accessible)
	}
	if rec.ActualIncident != IncidentUnknown {
		t.Errorf("Expected incident unknown, got %v", rec.ActualIncident)
	}
	if rec.DomainName != "news24" {
		t.Errorf("Expected domain news24, got %s", rec.DomainName)
	}
}

func TestURLRecord_NeedsVerification(t *testing.T) {
	tests := []struct {
		name string
		rec  URLRecord
		want bool
	}{
		{"unresolved", URLRecord{Accessible: AccessYes, ActualIncident: IncidentUnresolved, Content: "x"}, true},
		{"interrupted", URLRecord{Accessible: AccessYes, ActualIncident: IncidentUnknown, Content: "x"}, true},
		{"inaccessible", URLRecord{Accessible: AccessNo, ActualIncident: IncidentUnknown}, false},
		{"negative", URLRecord{Accessible: AccessYes, ActualIncident: IncidentNo, Content: "x"}, false},
		{"positive", URLRecord{Accessible: AccessYes, ActualIncident: IncidentYes, Content: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.NeedsVerification(); got != tt.want {
				t.Errorf("NeedsVerification() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAge_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{`34`, 34, false},
		{`34.0`, 34, false},
		{`34.5`, 35, false},
		{`"27"`, 27, false},
		{`" 41 "`, 41, false},
		{`"19.4"`, 19, false},
		{`""`, int(ageAbsent), false},
		{`"null"`, int(ageAbsent), false},
		{`"N/A"`, int(ageAbsent), false},
		{`"unknown"`, int(ageAbsent), false},
		{`-3`, int(ageAbsent), false},
		{`200`, int(ageAbsent), false},
		{`true`, 0, true},
		{`{"years": 3}`, 0, true},
		{`[34]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var a Age
			err := json.Unmarshal([]byte(tt.input), &a)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %s", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if int(a) != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, a)
			}
		})
	}
}

func TestSuspectForm_PlaceholderAgeKeepsForm(t *testing.T) {
	for _, age := range []string{`""`, `"null"`, `"N/A"`, `"unknown"`} {
		t.Run(age, func(t *testing.T) {
			raw := `{"gender":"male","nationality":"Kenyan","role":"recruiter","age":` + age + `}`

			var form SuspectForm
			if err := json.Unmarshal([]byte(raw), &form); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			form.Normalize()

			if form.Age != nil {
				t.Errorf("Expected absent age, got %v", *form.Age)
			}
			if form.Nationality == nil || *form.Nationality != "Kenyan" {
				t.Errorf("Expected nationality to survive, got %v", form.Nationality)
			}
			if form.Role == nil || *form.Role != "recruiter" {
				t.Errorf("Expected role to survive, got %v", form.Role)
			}
		})
	}
}

func TestVictimForm_NormalizeDropsAbsentAge(t *testing.T) {
	var form VictimForm
	if err := json.Unmarshal([]byte(`{"gender":"Female","age":"n/a","destination":"Durban"}`), &form); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	form.Normalize()

	if form.Age != nil {
		t.Errorf("Expected absent age, got %v", *form.Age)
	}
	if form.Destination == nil || *form.Destination != "Durban" {
		t.Errorf("Expected destination Durban, got %v", form.Destination)
	}
}

func TestSuspectForm_NullsStayAbsent(t *testing.T) {
	raw := `{"gender": "Male", "age": null, "nationality": "", "role": "recruiter"}`

	var form SuspectForm
	if err := json.Unmarshal([]byte(raw), &form); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	form.Normalize()

	if form.Age != nil {
		t.Errorf("Expected nil age, got %v", *form.Age)
	}
	if form.Nationality != nil {
		t.Errorf("Expected blank nationality to be absent, got %q", *form.Nationality)
	}
	if form.PhoneNumber != nil {
		t.Errorf("Expected omitted phone number to be absent")
	}
	if form.Gender == nil || *form.Gender != "male" {
		t.Errorf("Expected gender male, got %v", form.Gender)
	}
	if form.Role == nil || *form.Role != "recruiter" {
		t.Errorf("Expected role recruiter, got %v", form.Role)
	}
}

func TestVictimForm_TextFieldsCount(t *testing.T) {
	var f VictimForm
	if n := len(f.TextFields()); n != 11 {
		t.Errorf("Expected 11 text fields, got %d", n)
	}
	var s SuspectForm
	if n := len(s.TextFields()); n != 19 {
		t.Errorf("Expected 19 text fields, got %d", n)
	}
}
