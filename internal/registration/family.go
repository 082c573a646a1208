// AngelaMos | 2026
// family.go

package registration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/angelamos/consultancy-api/internal/config"
	"github.com/angelamos/consultancy-api/internal/core"
)

type Family string

const (
	FamilyTutor            Family = "tutor"
	FamilyTutee            Family = "tutee"
	FamilyTraining         Family = "training"
	FamilyResearch         Family = "research"
	FamilyEntrepreneurship Family = "entrepreneurship"
)

var ErrUnknownFamily = errors.New("unknown registration family")

func Families() []Family {
	return []Family{
		FamilyTutor,
		FamilyTutee,
		FamilyTraining,
		FamilyResearch,
		FamilyEntrepreneurship,
	}
}

func ParseFamily(s string) (Family, error) {
	for _, f := range Families() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}

// HasInstructor reports whether rows of this family may reference an
// instructor.
func (f Family) HasInstructor() bool {
	switch f {
	case FamilyTraining, FamilyResearch, FamilyEntrepreneurship:
		return true
	default:
		return false
	}
}

// Catalog is the fixed set of selectable options attributes are checked
// against.
type Catalog struct {
	trainingTypes   map[string]struct{}
	deliveryMethods map[string]struct{}
	researchLevels  map[string]struct{}
	businessStages  map[string]struct{}
}

func NewCatalog(cfg config.CatalogConfig) *Catalog {
	return &Catalog{
		trainingTypes:   toSet(cfg.TrainingTypes),
		deliveryMethods: toSet(cfg.DeliveryMethods),
		researchLevels:  toSet(cfg.ResearchLevels),
		businessStages:  toSet(cfg.BusinessStages),
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}

// Attributes is the family-specific part of a registration.
type Attributes interface {
	Family() Family
	check(c *Catalog, v *core.ValidationError)
}

type TutorAttributes struct {
	Subjects        []string `json:"subjects"         validate:"required,min=1,dive,required,max=100"`
	GradeLevels     []string `json:"grade_levels"     validate:"required,min=1,dive,required,max=50"`
	AvailableDays   []string `json:"available_days"   validate:"required,min=1,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime       string   `json:"start_time"       validate:"required,datetime=15:04"`
	EndTime         string   `json:"end_time"         validate:"required,datetime=15:04"`
	DeliveryMethod  string   `json:"delivery_method"  validate:"required"`
	YearsExperience int      `json:"years_experience" validate:"min=0,max=60"`
	Qualification   string   `json:"qualification"    validate:"required,max=200"`
	Bio             string   `json:"bio"              validate:"max=2000"`
	CVPath          string   `json:"cv_path"`
}

func (a *TutorAttributes) Family() Family { return FamilyTutor }

func (a *TutorAttributes) check(c *Catalog, v *core.ValidationError) {
	checkDelivery(c, a.DeliveryMethod, v)
	checkWindow(a.StartTime, a.EndTime, v)
}

type TuteeAttributes struct {
	Subjects       []string `json:"subjects"        validate:"required,min=1,dive,required,max=100"`
	GradeLevel     string   `json:"grade_level"     validate:"required,max=50"`
	AvailableDays  []string `json:"available_days"  validate:"required,min=1,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime      string   `json:"start_time"      validate:"required,datetime=15:04"`
	EndTime        string   `json:"end_time"        validate:"required,datetime=15:04"`
	DeliveryMethod string   `json:"delivery_method" validate:"required"`
	LearningGoals  string   `json:"learning_goals"  validate:"max=2000"`
}

func (a *TuteeAttributes) Family() Family { return FamilyTutee }

func (a *TuteeAttributes) check(c *Catalog, v *core.ValidationError) {
	checkDelivery(c, a.DeliveryMethod, v)
	checkWindow(a.StartTime, a.EndTime, v)
}

type TrainingAttributes struct {
	TrainingTypes      []string `json:"training_types"       validate:"required,min=1,dive,required"`
	DeliveryMethod     string   `json:"delivery_method"      validate:"required"`
	ExperienceLevel    string   `json:"experience_level"     validate:"omitempty,oneof=beginner intermediate advanced"`
	PreferredStartDate string   `json:"preferred_start_date" validate:"omitempty,datetime=2006-01-02"`
}

func (a *TrainingAttributes) Family() Family { return FamilyTraining }

func (a *TrainingAttributes) check(c *Catalog, v *core.ValidationError) {
	checkDelivery(c, a.DeliveryMethod, v)
	for i, t := range a.TrainingTypes {
		if !inSet(c.trainingTypes, t) {
			v.Add(
				fmt.Sprintf("training_types[%d]", i),
				"is not an offered training type",
			)
		}
	}
}

type ResearchAttributes struct {
	ResearchLevel  string   `json:"research_level"  validate:"required"`
	StudyArea      string   `json:"study_area"      validate:"required,max=200"`
	ResearchTopic  string   `json:"research_topic"  validate:"max=500"`
	Services       []string `json:"services"        validate:"required,min=1,dive,required,max=100"`
	DeliveryMethod string   `json:"delivery_method" validate:"required"`
	Deadline       string   `json:"deadline"        validate:"omitempty,datetime=2006-01-02"`
}

func (a *ResearchAttributes) Family() Family { return FamilyResearch }

func (a *ResearchAttributes) check(c *Catalog, v *core.ValidationError) {
	checkDelivery(c, a.DeliveryMethod, v)
	if !inSet(c.researchLevels, a.ResearchLevel) {
		v.Add("research_level", "is not a supported research level")
	}
}

type EntrepreneurshipAttributes struct {
	BusinessName   string   `json:"business_name"   validate:"required,max=200"`
	BusinessStage  string   `json:"business_stage"  validate:"required"`
	Industry       string   `json:"industry"        validate:"max=100"`
	SupportAreas   []string `json:"support_areas"   validate:"required,min=1,dive,required,max=100"`
	DeliveryMethod string   `json:"delivery_method" validate:"required"`
}

func (a *EntrepreneurshipAttributes) Family() Family {
	return FamilyEntrepreneurship
}

func (a *EntrepreneurshipAttributes) check(c *Catalog, v *core.ValidationError) {
	checkDelivery(c, a.DeliveryMethod, v)
	if !inSet(c.businessStages, a.BusinessStage) {
		v.Add("business_stage", "is not a supported business stage")
	}
}

func checkDelivery(c *Catalog, method string, v *core.ValidationError) {
	if method != "" && !inSet(c.deliveryMethods, method) {
		v.Add("delivery_method", "is not a supported delivery method")
	}
}

// checkWindow requires end strictly after start on the same day.
func checkWindow(start, end string, v *core.ValidationError) {
	s, errS := time.Parse("15:04", start)
	e, errE := time.Parse("15:04", end)
	if errS != nil || errE != nil {
		return
	}
	if !e.After(s) {
		v.Add("end_time", "must be after start_time")
	}
}

func newAttributes(f Family) (Attributes, error) {
	switch f {
	case FamilyTutor:
		return &TutorAttributes{}, nil
	case FamilyTutee:
		return &TuteeAttributes{}, nil
	case FamilyTraining:
		return &TrainingAttributes{}, nil
	case FamilyResearch:
		return &ResearchAttributes{}, nil
	case FamilyEntrepreneurship:
		return &EntrepreneurshipAttributes{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, f)
	}
}

// DecodeAttributes parses raw JSON into the family's attribute set and
// validates it. Validation problems come back as *core.ValidationError.
func DecodeAttributes(
	f Family,
	raw json.RawMessage,
	validate *validator.Validate,
	catalog *Catalog,
) (Attributes, error) {
	attrs, err := newAttributes(f)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, core.NewValidationError("attributes", "is required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(attrs); err != nil {
		return nil, core.NewValidationError("attributes", "malformed: "+err.Error())
	}

	return attrs, ValidateAttributes(attrs, validate, catalog)
}

func ValidateAttributes(
	attrs Attributes,
	validate *validator.Validate,
	catalog *Catalog,
) error {
	vErr := &core.ValidationError{}
	if err := validate.Struct(attrs); err != nil {
		vErr = core.FromValidator(err)
	}

	attrs.check(catalog, vErr)
	return vErr.OrNil()
}

func attributesFrom(f Family, data core.JSONB) (Attributes, error) {
	attrs, err := newAttributes(f)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, attrs); err != nil {
		return nil, fmt.Errorf("decode %s attributes: %w", f, err)
	}
	return attrs, nil
}
