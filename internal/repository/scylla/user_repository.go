package scylla

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"verify-service/internal/bucketing"
	"verify-service/internal/models"
	"verify-service/internal/util"
)

// profileColumns maps public profile field names to their columns. Only
// fields reachable through the service-layer allow-list appear here.
var profileColumns = map[string]string{
	"firstName":          "first_name",
	"lastName":           "last_name",
	"city":               "city",
	"state":              "state",
	"studentClass":       "student_class",
	"testGroup":          "test_group",
	"stream":             "stream",
	"subjectPerformance": "subject_performance",
	"subjectRatings":     "subject_ratings",
}

type userRepository struct {
	client       *ScyllaClient
	bucketingMgr *bucketing.BucketingManager
}

func NewUserRepository(client *ScyllaClient, bucketingMgr *bucketing.BucketingManager, logger *zap.Logger) UserRepository {
	return &userRepository{
		client:       client,
		bucketingMgr: bucketingMgr,
	}
}

// CreateUser inserts a full default record guarded by a not-exists
// precondition. Exactly one writer wins per userId; the loser observes
// ErrAlreadyExists.
func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.UserBucket = r.bucketingMgr.GetUserBucket(user.UserID)

	query := r.client.Prepared.CreateUser.WithContext(ctx).Bind(
		user.UserBucket, user.UserID,
		deref(user.Mobile), deref(user.Email), user.AuthProvider,
		deref(user.FirstName), deref(user.LastName), deref(user.City),
		deref(user.State), deref(user.StudentClass), deref(user.TestGroup),
		deref(user.Stream), user.SubjectPerformance, user.SubjectRatings,
		user.TestCompleted, user.PaymentDone, user.ReportReady,
		user.AIMessagesUsed, user.CreatedAt, user.UpdatedAt)

	applied, err := query.MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to create user",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	if !applied {
		return ErrAlreadyExists
	}

	util.Info("User record created",
		zap.String("user_id", user.UserID),
		zap.Int("user_bucket", user.UserBucket))

	return nil
}

func (r *userRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	bucket := r.bucketingMgr.GetUserBucket(userID)

	var (
		user                                 models.User
		mobile, email, firstName, lastName   string
		city, state, studentClass, testGroup string
		stream                               string
	)

	query := r.client.Prepared.GetUserByID.WithContext(ctx).Bind(bucket, userID)

	err := r.client.ScanWithRetry(query,
		&user.UserBucket, &user.UserID, &mobile, &email, &user.AuthProvider,
		&firstName, &lastName, &city, &state, &studentClass, &testGroup,
		&stream, &user.SubjectPerformance, &user.SubjectRatings,
		&user.TestCompleted, &user.PaymentDone, &user.ReportReady,
		&user.AIMessagesUsed, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get user by ID",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	user.Mobile = optional(mobile)
	user.Email = optional(email)
	user.FirstName = optional(firstName)
	user.LastName = optional(lastName)
	user.City = optional(city)
	user.State = optional(state)
	user.StudentClass = optional(studentClass)
	user.TestGroup = optional(testGroup)
	user.Stream = optional(stream)

	return &user, nil
}

// UpdateProfileFields applies one atomic partial update guarded by an
// exists precondition. All submitted fields land in a single statement;
// updated_at is always stamped.
func (r *userRepository) UpdateProfileFields(ctx context.Context, userID string, fields map[string]interface{}) error {
	bucket := r.bucketingMgr.GetUserBucket(userID)

	// Deterministic column order keeps the statement cacheable server-side
	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := profileColumns[name]; !ok {
			return fmt.Errorf("field %q is not updatable", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	assignments := make([]string, 0, len(names)+1)
	values := make([]interface{}, 0, len(names)+3)
	for _, name := range names {
		assignments = append(assignments, profileColumns[name]+" = ?")
		values = append(values, fields[name])
	}
	assignments = append(assignments, "updated_at = ?")
	values = append(values, time.Now().UTC())
	values = append(values, bucket, userID)

	stmt := fmt.Sprintf(
		"UPDATE users SET %s WHERE user_bucket = ? AND user_id = ? IF EXISTS",
		strings.Join(assignments, ", "))

	applied, err := r.client.Query(stmt, values...).WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to update user profile",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	if !applied {
		return ErrNotFound
	}

	util.Info("User profile updated",
		zap.String("user_id", userID),
		zap.Int("field_count", len(names)))

	return nil
}

func (r *userRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// optional converts a stored value to its public form: Scylla renders null
// text columns as "", which the record model treats as unset.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
