// AngelaMos | 2026
// family_test.go

package registration

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/consultancy-api/internal/config"
	"github.com/angelamos/consultancy-api/internal/core"
)

func testCatalog() *Catalog {
	return NewCatalog(config.CatalogConfig{
		TrainingTypes:   []string{"Coding", "Data Analysis"},
		DeliveryMethods: []string{"online", "in_person"},
		ResearchLevels:  []string{"undergraduate", "masters", "phd"},
		BusinessStages:  []string{"idea", "startup", "growth"},
	})
}

const (
	tutorJSON = `{
		"subjects": ["Mathematics"],
		"grade_levels": ["Grade 10"],
		"available_days": ["monday", "wednesday"],
		"start_time": "16:00",
		"end_time": "18:00",
		"delivery_method": "online",
		"years_experience": 4,
		"qualification": "BSc Mathematics"
	}`
	tuteeJSON = `{
		"subjects": ["Physics"],
		"grade_level": "Grade 11",
		"available_days": ["saturday"],
		"start_time": "09:00",
		"end_time": "11:30",
		"delivery_method": "in_person"
	}`
	trainingJSON = `{
		"training_types": ["Coding"],
		"delivery_method": "online",
		"experience_level": "beginner",
		"preferred_start_date": "2026-05-01"
	}`
	researchJSON = `{
		"research_level": "masters",
		"study_area": "Public Health",
		"services": ["Proposal writing"],
		"delivery_method": "online",
		"deadline": "2026-09-30"
	}`
	entrepreneurshipJSON = `{
		"business_name": "Acme Farms",
		"business_stage": "startup",
		"support_areas": ["Funding"],
		"delivery_method": "in_person"
	}`
)

func validAttributes(f Family) json.RawMessage {
	switch f {
	case FamilyTutor:
		return json.RawMessage(tutorJSON)
	case FamilyTutee:
		return json.RawMessage(tuteeJSON)
	case FamilyTraining:
		return json.RawMessage(trainingJSON)
	case FamilyResearch:
		return json.RawMessage(researchJSON)
	default:
		return json.RawMessage(entrepreneurshipJSON)
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()

	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)

	out := map[string]string{}
	for _, f := range vErr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestParseFamily(t *testing.T) {
	for _, f := range Families() {
		got, err := ParseFamily(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseFamily("consulting")
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestHasInstructor(t *testing.T) {
	assert.False(t, FamilyTutor.HasInstructor())
	assert.False(t, FamilyTutee.HasInstructor())
	assert.True(t, FamilyTraining.HasInstructor())
	assert.True(t, FamilyResearch.HasInstructor())
	assert.True(t, FamilyEntrepreneurship.HasInstructor())
}

func TestDecodeAttributesAcceptsEveryFamily(t *testing.T) {
	v := core.NewValidator()
	catalog := testCatalog()

	for _, f := range Families() {
		t.Run(string(f), func(t *testing.T) {
			attrs, err := DecodeAttributes(f, validAttributes(f), v, catalog)
			require.NoError(t, err)
			assert.Equal(t, f, attrs.Family())
		})
	}
}

func TestDecodeAttributesRejects(t *testing.T) {
	v := core.NewValidator()
	catalog := testCatalog()

	tests := []struct {
		name   string
		family Family
		raw    string
		field  string
	}{
		{
			name:   "missing body",
			family: FamilyTutor,
			raw:    ``,
			field:  "attributes",
		},
		{
			name:   "unknown field",
			family: FamilyTutee,
			raw:    `{"subjects":["x"],"favourite_colour":"red"}`,
			field:  "attributes",
		},
		{
			name:   "bad weekday",
			family: FamilyTutee,
			raw: `{"subjects":["Physics"],"grade_level":"G","available_days":["funday"],
				"start_time":"09:00","end_time":"10:00","delivery_method":"online"}`,
			field: "available_days[0]",
		},
		{
			name:   "end before start",
			family: FamilyTutee,
			raw: `{"subjects":["Physics"],"grade_level":"G","available_days":["monday"],
				"start_time":"14:00","end_time":"13:00","delivery_method":"online"}`,
			field: "end_time",
		},
		{
			name:   "malformed time",
			family: FamilyTutor,
			raw: `{"subjects":["Math"],"grade_levels":["G1"],"available_days":["monday"],
				"start_time":"4pm","end_time":"18:00","delivery_method":"online",
				"qualification":"BSc"}`,
			field: "start_time",
		},
		{
			name:   "unknown delivery method",
			family: FamilyTraining,
			raw:    `{"training_types":["Coding"],"delivery_method":"carrier pigeon"}`,
			field:  "delivery_method",
		},
		{
			name:   "training type outside catalog",
			family: FamilyTraining,
			raw:    `{"training_types":["Coding","Juggling"],"delivery_method":"online"}`,
			field:  "training_types[1]",
		},
		{
			name:   "empty training types",
			family: FamilyTraining,
			raw:    `{"training_types":[],"delivery_method":"online"}`,
			field:  "training_types",
		},
		{
			name:   "unknown research level",
			family: FamilyResearch,
			raw: `{"research_level":"postdoc","study_area":"Biology",
				"services":["Editing"],"delivery_method":"online"}`,
			field: "research_level",
		},
		{
			name:   "bad deadline",
			family: FamilyResearch,
			raw: `{"research_level":"phd","study_area":"Biology","services":["Editing"],
				"delivery_method":"online","deadline":"30/09/2026"}`,
			field: "deadline",
		},
		{
			name:   "unknown business stage",
			family: FamilyEntrepreneurship,
			raw: `{"business_name":"Acme","business_stage":"unicorn",
				"support_areas":["Funding"],"delivery_method":"online"}`,
			field: "business_stage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAttributes(tt.family, json.RawMessage(tt.raw), v, catalog)
			require.Error(t, err)
			assert.Contains(t, fieldsOf(t, err), tt.field)
		})
	}
}

func TestDecodeAttributesUnknownFamily(t *testing.T) {
	_, err := DecodeAttributes("consulting", json.RawMessage(`{}`), core.NewValidator(), testCatalog())
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusAccepted, StatusAccepted, true},
		{StatusRejected, StatusRejected, true},
		{StatusAccepted, StatusRejected, false},
		{StatusRejected, StatusAccepted, false},
		{StatusAccepted, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestAdminUpdateRequestMutation(t *testing.T) {
	accepted := "accepted"
	instructor := "0b5d3c1e-8a1f-4c7e-9b2d-3e4f5a6b7c8d"

	m := AdminUpdateRequest{Status: &accepted, InstructorID: &instructor}.Mutation()
	require.NotNil(t, m.Status)
	assert.Equal(t, StatusAccepted, *m.Status)
	assert.True(t, m.SetInstructor)
	assert.Equal(t, &instructor, m.InstructorID)

	m = AdminUpdateRequest{ClearInstructor: true, InstructorID: &instructor}.Mutation()
	assert.True(t, m.SetInstructor)
	assert.Nil(t, m.InstructorID)

	assert.True(t, AdminUpdateRequest{}.Mutation().IsEmpty())
}
