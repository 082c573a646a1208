// AngelaMos | 2026
// entity.go

package instructor

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

var (
	ErrAlreadyRated = errors.New("instructor already rated by this identity")
	ErrNotAssigned  = errors.New("identity was never assigned to this instructor")
)

type Course struct {
	Title  string   `json:"title"            validate:"required,max=200"`
	Level  string   `json:"level,omitempty"  validate:"max=50"`
	Format string   `json:"format,omitempty" validate:"max=50"`
	Topics []string `json:"topics"           validate:"dive,required,max=100"`
}

// Courses is stored as a jsonb array; order is preserved and topics are
// de-duplicated on write.
type Courses []Course

func (c Courses) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal courses: %w", err)
	}
	return string(b), nil
}

func (c *Courses) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = Courses{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan courses: unsupported type %T", src)
	}
	return json.Unmarshal(data, c)
}

func (c Courses) normalized() Courses {
	out := make(Courses, 0, len(c))
	for _, course := range c {
		seen := make(map[string]struct{}, len(course.Topics))
		topics := make([]string, 0, len(course.Topics))
		for _, t := range course.Topics {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			topics = append(topics, t)
		}
		course.Topics = topics
		out = append(out, course)
	}
	return out
}

type Instructor struct {
	ID              string    `db:"id"`
	FirstName       string    `db:"first_name"`
	LastName        string    `db:"last_name"`
	Email           string    `db:"email"`
	Phone           string    `db:"phone"`
	Address         string    `db:"address"`
	Bio             string    `db:"bio"`
	YearsExperience int       `db:"years_experience"`
	HourlyRate      float64   `db:"hourly_rate"`
	Courses         Courses   `db:"courses"`
	CVPath          *string   `db:"cv_path"`
	AverageRating   float64   `db:"average_rating"`
	RatingCount     int       `db:"rating_count"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (i *Instructor) IsActive() bool {
	return i.Status == StatusActive
}

type Rating struct {
	InstructorID string    `db:"instructor_id"`
	IdentityID   string    `db:"identity_id"`
	Rating       int       `db:"rating"`
	CreatedAt    time.Time `db:"created_at"`
}

// Aggregate is the instructor's rating state right after a rating landed.
type Aggregate struct {
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	RatingCount   int     `db:"rating_count"   json:"rating_count"`
}
