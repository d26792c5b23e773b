package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"verify-service/internal/models"
	"verify-service/internal/repository/scylla"
)

type fakeUserRepo struct {
	users     map[string]*models.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.users[user.UserID]; exists {
		return scylla.ErrAlreadyExists
	}
	clone := *user
	f.users[user.UserID] = &clone
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, scylla.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) UpdateProfileFields(ctx context.Context, userID string, fields map[string]interface{}) error {
	user, ok := f.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "firstName":
			user.FirstName = asStringPtr(value)
		case "lastName":
			user.LastName = asStringPtr(value)
		case "city":
			user.City = asStringPtr(value)
		case "state":
			user.State = asStringPtr(value)
		case "studentClass":
			user.StudentClass = asStringPtr(value)
		case "testGroup":
			user.TestGroup = asStringPtr(value)
		case "stream":
			user.Stream = asStringPtr(value)
		case "subjectPerformance":
			if value == nil {
				user.SubjectPerformance = nil
			} else {
				user.SubjectPerformance = value.(map[string]string)
			}
		case "subjectRatings":
			if value == nil {
				user.SubjectRatings = nil
			} else {
				user.SubjectRatings = value.(map[string]float64)
			}
		}
	}
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeUserRepo) HealthCheck(ctx context.Context) error { return nil }

func asStringPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

func newUserService(repo *fakeUserRepo) *UserService {
	return NewUserService(repo, nil, nil, zap.NewNop())
}

func createTestUser(t *testing.T, svc *UserService) string {
	t.Helper()
	result, err := svc.CreateUser(context.Background(), &CreateUserRequest{
		Mobile:       "+911234567890",
		AuthProvider: "mobile",
	})
	require.NoError(t, err)
	return result.UserID
}

func TestCreateUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserService(repo)

	result, err := svc.CreateUser(context.Background(), &CreateUserRequest{
		Mobile:       "+911234567890",
		AuthProvider: "mobile",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.UserID)
	assert.False(t, result.CreatedAt.IsZero())

	stored := repo.users[result.UserID]
	require.NotNil(t, stored)
	assert.Equal(t, "mobile", stored.AuthProvider)
	require.NotNil(t, stored.Mobile)
	assert.Equal(t, "+911234567890", *stored.Mobile)
	assert.Nil(t, stored.Email)
	assert.Nil(t, stored.StudentClass)
	assert.Nil(t, stored.TestGroup)
}

func TestCreateUserValidation(t *testing.T) {
	svc := newUserService(newFakeUserRepo())

	_, err := svc.CreateUser(context.Background(), &CreateUserRequest{Mobile: "+911234567890"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "authProvider is required")

	_, err = svc.CreateUser(context.Background(), &CreateUserRequest{AuthProvider: "email"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "mobile or email is required")
}

func TestCreateUserCollision(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = scylla.ErrAlreadyExists
	svc := newUserService(repo)

	_, err := svc.CreateUser(context.Background(), &CreateUserRequest{
		Email:        "a@example.com",
		AuthProvider: "email",
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetProfileDefaults(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserService(repo)
	userID := createTestUser(t, svc)

	profile, err := svc.GetProfile(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, userID, profile.UserID)
	assert.Nil(t, profile.FirstName)
	assert.Nil(t, profile.StudentClass)
	assert.Nil(t, profile.TestGroup)
	assert.Nil(t, profile.Stream)
	// Mapping fields are empty objects, never null
	assert.NotNil(t, profile.SubjectPerformance)
	assert.Empty(t, profile.SubjectPerformance)
	assert.NotNil(t, profile.SubjectRatings)
	assert.Empty(t, profile.SubjectRatings)
	assert.False(t, profile.TestCompleted)
	assert.False(t, profile.PaymentDone)
	assert.False(t, profile.ReportReady)
	assert.Zero(t, profile.AIMessagesUsed)
}

func TestGetProfileNotFound(t *testing.T) {
	svc := newUserService(newFakeUserRepo())

	_, err := svc.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetProfile(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateProfileDerivesTestGroup(t *testing.T) {
	cases := []struct {
		studentClass interface{}
		testGroup    *string
	}{
		{"12th", strPtr("college")},
		{"11th", strPtr("college")},
		{"10th", strPtr("school")},
		{"8th", strPtr("school")},
		{nil, nil},
	}

	for _, tc := range cases {
		repo := newFakeUserRepo()
		svc := newUserService(repo)
		userID := createTestUser(t, svc)

		result, err := svc.UpdateProfile(context.Background(), userID,
			map[string]interface{}{"studentClass": tc.studentClass})
		require.NoError(t, err)

		if tc.testGroup == nil {
			assert.Nil(t, result.TestGroup)
		} else {
			require.NotNil(t, result.TestGroup)
			assert.Equal(t, *tc.testGroup, *result.TestGroup)
		}
	}
}

func TestUpdateProfileAllowList(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserService(repo)
	userID := createTestUser(t, svc)

	// Unknown keys are dropped silently when valid keys remain
	result, err := svc.UpdateProfile(context.Background(), userID, map[string]interface{}{
		"firstName":   "Asha",
		"paymentDone": true,
		"userId":      "hijack",
	})
	require.NoError(t, err)
	require.NotNil(t, result.FirstName)
	assert.Equal(t, "Asha", *result.FirstName)
	assert.Equal(t, userID, result.UserID)
	assert.False(t, repo.users[userID].PaymentDone)

	// A payload with nothing applicable is rejected
	_, err = svc.UpdateProfile(context.Background(), userID, map[string]interface{}{
		"paymentDone": true,
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "No valid fields to update")
}

func TestUpdateProfileEnumValidation(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserService(repo)
	userID := createTestUser(t, svc)

	_, err := svc.UpdateProfile(context.Background(), userID,
		map[string]interface{}{"studentClass": "13th"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "studentClass must be one of")

	_, err = svc.UpdateProfile(context.Background(), userID,
		map[string]interface{}{"stream": "Astrology"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "stream must be one of")
}

func TestUpdateProfileTypeValidation(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserService(repo)
	userID := createTestUser(t, svc)

	_, err := svc.UpdateProfile(context.Background(), userID,
		map[string]interface{}{"firstName": 42.0})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateProfile(context.Background(), userID,
		map[string]interface{}{"subjectRatings": map[string]interface{}{"maths": "high"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateProfileMappings(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserService(repo)
	userID := createTestUser(t, svc)

	result, err := svc.UpdateProfile(context.Background(), userID, map[string]interface{}{
		"subjectPerformance": map[string]interface{}{"maths": "strong"},
		"subjectRatings":     map[string]interface{}{"maths": 4.5},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"maths": "strong"}, result.SubjectPerformance)
	assert.Equal(t, map[string]float64{"maths": 4.5}, result.SubjectRatings)

	// Clearing a mapping renders as empty, never null
	result, err = svc.UpdateProfile(context.Background(), userID, map[string]interface{}{
		"subjectPerformance": nil,
	})
	require.NoError(t, err)
	assert.NotNil(t, result.SubjectPerformance)
	assert.Empty(t, result.SubjectPerformance)
}

func TestUpdateProfileSanitizesFreeText(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserService(repo)
	userID := createTestUser(t, svc)

	result, err := svc.UpdateProfile(context.Background(), userID, map[string]interface{}{
		"firstName": "  <b>Asha</b>  ",
	})
	require.NoError(t, err)
	require.NotNil(t, result.FirstName)
	assert.Equal(t, "&lt;b&gt;Asha&lt;/b&gt;", *result.FirstName)
}

func TestUpdateProfileNotFound(t *testing.T) {
	svc := newUserService(newFakeUserRepo())

	_, err := svc.UpdateProfile(context.Background(), "missing",
		map[string]interface{}{"firstName": "Asha"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func strPtr(s string) *string { return &s }
