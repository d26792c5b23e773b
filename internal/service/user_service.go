package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"verify-service/internal/client"
	"verify-service/internal/models"
	"verify-service/internal/repository/scylla"
	"verify-service/internal/util"
)

// updatableFields is the closed set of profile keys a caller may change.
// Anything else in the payload is dropped before validation.
var updatableFields = map[string]bool{
	"firstName":          true,
	"lastName":           true,
	"city":               true,
	"state":              true,
	"studentClass":       true,
	"stream":             true,
	"subjectPerformance": true,
	"subjectRatings":     true,
}

// freeTextFields are sanitized before storage.
var freeTextFields = map[string]bool{
	"firstName": true,
	"lastName":  true,
	"city":      true,
	"state":     true,
}

// CreateUserRequest carries the identity fields for a new record.
type CreateUserRequest struct {
	Mobile       string `json:"mobile"`
	Email        string `json:"email"`
	AuthProvider string `json:"authProvider"`
}

// CreateUserResult is the creation echo.
type CreateUserResult struct {
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserService struct {
	userRepo scylla.UserRepository
	producer *client.KafkaProducer
	audit    *client.ClickHouseClient
	logger   *zap.Logger
}

func NewUserService(
	userRepo scylla.UserRepository,
	producer *client.KafkaProducer,
	audit *client.ClickHouseClient,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		producer: producer,
		audit:    audit,
		logger:   logger,
	}
}

// CreateUser assigns a fresh userId and writes a full default record behind
// an existence precondition. A collision surfaces as ErrAlreadyExists; the
// caller retries with a newly generated id.
func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResult, error) {
	if req.AuthProvider == "" {
		return nil, fmt.Errorf("%w: authProvider is required", ErrInvalidInput)
	}
	if req.Mobile == "" && req.Email == "" {
		return nil, fmt.Errorf("%w: mobile or email is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	user := &models.User{
		UserID:             uuid.New().String(),
		Mobile:             optionalField(req.Mobile),
		Email:              optionalField(req.Email),
		AuthProvider:       req.AuthProvider,
		SubjectPerformance: map[string]string{},
		SubjectRatings:     map[string]float64{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, scylla.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: user %s", ErrAlreadyExists, user.UserID)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.emit(client.EventUserCreated, user.UserID, map[string]interface{}{
		"authProvider": user.AuthProvider,
	})
	s.recordAudit("user", user.UserID, "created", user.AuthProvider)

	util.Info("User created",
		zap.String("user_id", user.UserID),
		zap.String("auth_provider", user.AuthProvider))

	return &CreateUserResult{UserID: user.UserID, CreatedAt: user.CreatedAt}, nil
}

// GetProfile returns the stable public view. Every key is present whether
// or not the underlying field was ever set.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user.PublicProfile(), nil
}

// UpdateProfile applies an allow-listed partial update. Unknown keys are
// silently dropped; a payload with nothing applicable is rejected. When
// studentClass changes, testGroup is re-derived in the same write.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}) (*models.ProfileFields, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	fields := make(map[string]interface{})
	for key, value := range updates {
		if !updatableFields[key] {
			continue
		}
		converted, err := convertFieldValue(key, value)
		if err != nil {
			return nil, err
		}
		fields[key] = converted
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: No valid fields to update", ErrInvalidInput)
	}

	if studentClass, ok := fields["studentClass"]; ok {
		fields["testGroup"] = deriveTestGroup(studentClass)
	}

	if err := s.userRepo.UpdateProfileFields(ctx, userID, fields); err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read back profile: %w", err)
	}

	fieldNames := make([]string, 0, len(fields))
	for key := range fields {
		fieldNames = append(fieldNames, key)
	}
	s.emit(client.EventUserUpdated, userID, map[string]interface{}{
		"fields": fieldNames,
	})
	s.recordAudit("user", userID, "updated", strings.Join(fieldNames, ","))

	util.Info("Profile updated",
		zap.String("user_id", userID),
		zap.Int("field_count", len(fields)))

	return user.ProfileFieldsView(), nil
}

func (s *UserService) HealthCheck(ctx context.Context) error {
	return s.userRepo.HealthCheck(ctx)
}

// convertFieldValue checks the decoded JSON value against the field's
// expected shape. An explicit null is accepted everywhere and clears the
// field.
func convertFieldValue(key string, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch key {
	case "subjectPerformance":
		raw, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: subjectPerformance must be an object of strings", ErrInvalidInput)
		}
		converted := make(map[string]string, len(raw))
		for k, v := range raw {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: subjectPerformance must be an object of strings", ErrInvalidInput)
			}
			converted[k] = s
		}
		return converted, nil

	case "subjectRatings":
		raw, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: subjectRatings must be an object of numbers", ErrInvalidInput)
		}
		converted := make(map[string]float64, len(raw))
		for k, v := range raw {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("%w: subjectRatings must be an object of numbers", ErrInvalidInput)
			}
			converted[k] = f
		}
		return converted, nil

	default:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, key)
		}
		switch key {
		case "studentClass":
			if !contains(models.ValidStudentClasses, s) {
				return nil, fmt.Errorf("%w: studentClass must be one of: %s",
					ErrInvalidInput, strings.Join(models.ValidStudentClasses, ", "))
			}
		case "stream":
			if !contains(models.ValidStreams, s) {
				return nil, fmt.Errorf("%w: stream must be one of: %s",
					ErrInvalidInput, strings.Join(models.ValidStreams, ", "))
			}
		}
		if freeTextFields[key] {
			s = util.SanitizeInput(s)
		}
		return s, nil
	}
}

// deriveTestGroup maps studentClass to its cohort. A cleared studentClass
// clears testGroup with it.
func deriveTestGroup(studentClass interface{}) interface{} {
	s, ok := studentClass.(string)
	if !ok {
		return nil
	}
	if s == "11th" || s == "12th" {
		return models.TestGroupCollege
	}
	return models.TestGroupSchool
}

func contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

func optionalField(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *UserService) emit(eventType, key string, payload interface{}) {
	if s.producer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.producer.PublishEvent(ctx, eventType, key, payload); err != nil {
			util.Warn("Failed to publish domain event",
				zap.String("event_type", eventType),
				zap.Error(err))
		}
	}()
}

func (s *UserService) recordAudit(entity, entityID, action, detail string) {
	if s.audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.RecordAudit(ctx, entity, entityID, action, detail); err != nil {
			util.Warn("Failed to record audit event",
				zap.String("entity", entity),
				zap.String("action", action),
				zap.Error(err))
		}
	}()
}
