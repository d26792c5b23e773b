package models

import "time"

// Test group values derived from studentClass.
const (
	TestGroupCollege = "college"
	TestGroupSchool  = "school"
)

// ValidStudentClasses is the closed set accepted for studentClass.
var ValidStudentClasses = []string{"8th", "9th", "10th", "11th", "12th"}

// ValidStreams is the closed set accepted for stream.
var ValidStreams = []string{"Science", "Commerce", "Arts", "Not decided yet"}

// User is the internal user record as stored. Optional scalar fields are
// pointers so an unset field round-trips as null, never as "".
type User struct {
	UserBucket         int                `db:"user_bucket"`
	UserID             string             `json:"userId" db:"user_id"`
	Mobile             *string            `json:"mobile" db:"mobile"`
	Email              *string            `json:"email" db:"email"`
	AuthProvider       string             `json:"authProvider" db:"auth_provider"`
	FirstName          *string            `json:"firstName" db:"first_name"`
	LastName           *string            `json:"lastName" db:"last_name"`
	City               *string            `json:"city" db:"city"`
	State              *string            `json:"state" db:"state"`
	StudentClass       *string            `json:"studentClass" db:"student_class"`
	TestGroup          *string            `json:"testGroup" db:"test_group"`
	Stream             *string            `json:"stream" db:"stream"`
	SubjectPerformance map[string]string  `json:"subjectPerformance" db:"subject_performance"`
	SubjectRatings     map[string]float64 `json:"subjectRatings" db:"subject_ratings"`
	TestCompleted      bool               `json:"testCompleted" db:"test_completed"`
	PaymentDone        bool               `json:"paymentDone" db:"payment_done"`
	ReportReady        bool               `json:"reportReady" db:"report_ready"`
	AIMessagesUsed     int                `json:"aiMessagesUsed" db:"ai_messages_used"`
	CreatedAt          time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time          `json:"updatedAt" db:"updated_at"`
}

// Profile is the stable public view of a user record. Every key is always
// present: absent scalars render as null, mappings as empty objects,
// flags as false, counters as zero.
type Profile struct {
	UserID             string             `json:"userId"`
	FirstName          *string            `json:"firstName"`
	LastName           *string            `json:"lastName"`
	Email              *string            `json:"email"`
	Mobile             *string            `json:"mobile"`
	City               *string            `json:"city"`
	State              *string            `json:"state"`
	StudentClass       *string            `json:"studentClass"`
	TestGroup          *string            `json:"testGroup"`
	Stream             *string            `json:"stream"`
	SubjectPerformance map[string]string  `json:"subjectPerformance"`
	SubjectRatings     map[string]float64 `json:"subjectRatings"`
	TestCompleted      bool               `json:"testCompleted"`
	PaymentDone        bool               `json:"paymentDone"`
	ReportReady        bool               `json:"reportReady"`
	AIMessagesUsed     int                `json:"aiMessagesUsed"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// ProfileFields is the view echoed by a profile update. Identity fields and
// core-managed flags are not part of this view.
type ProfileFields struct {
	UserID             string             `json:"userId"`
	FirstName          *string            `json:"firstName"`
	LastName           *string            `json:"lastName"`
	City               *string            `json:"city"`
	State              *string            `json:"state"`
	StudentClass       *string            `json:"studentClass"`
	TestGroup          *string            `json:"testGroup"`
	Stream             *string            `json:"stream"`
	SubjectPerformance map[string]string  `json:"subjectPerformance"`
	SubjectRatings     map[string]float64 `json:"subjectRatings"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// PublicProfile projects the record into the full public view.
func (u *User) PublicProfile() *Profile {
	return &Profile{
		UserID:             u.UserID,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Email:              u.Email,
		Mobile:             u.Mobile,
		City:               u.City,
		State:              u.State,
		StudentClass:       u.StudentClass,
		TestGroup:          u.TestGroup,
		Stream:             u.Stream,
		SubjectPerformance: nonNilPerformance(u.SubjectPerformance),
		SubjectRatings:     nonNilRatings(u.SubjectRatings),
		TestCompleted:      u.TestCompleted,
		PaymentDone:        u.PaymentDone,
		ReportReady:        u.ReportReady,
		AIMessagesUsed:     u.AIMessagesUsed,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// ProfileFields projects the record into the update-echo view.
func (u *User) ProfileFieldsView() *ProfileFields {
	return &ProfileFields{
		UserID:             u.UserID,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		City:               u.City,
		State:              u.State,
		StudentClass:       u.StudentClass,
		TestGroup:          u.TestGroup,
		Stream:             u.Stream,
		SubjectPerformance: nonNilPerformance(u.SubjectPerformance),
		SubjectRatings:     nonNilRatings(u.SubjectRatings),
		UpdatedAt:          u.UpdatedAt,
	}
}

func nonNilPerformance(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilRatings(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
