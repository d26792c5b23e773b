package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"verify-service/internal/models"
	"verify-service/internal/repository/scylla"
	"verify-service/internal/util"
)

type fakeOTPRepo struct {
	records   map[string]*models.OTP
	createErr error
	markErr   error
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{records: make(map[string]*models.OTP)}
}

func (f *fakeOTPRepo) CreateOTP(ctx context.Context, otp *models.OTP) error {
	if f.createErr != nil {
		return f.createErr
	}
	clone := *otp
	f.records[otp.OTPID] = &clone
	return nil
}

func (f *fakeOTPRepo) GetOTPByID(ctx context.Context, otpID string) (*models.OTP, error) {
	otp, ok := f.records[otpID]
	if !ok {
		return nil, scylla.ErrNotFound
	}
	clone := *otp
	return &clone, nil
}

func (f *fakeOTPRepo) MarkVerified(ctx context.Context, otpID string, ttlSeconds int) error {
	if f.markErr != nil {
		return f.markErr
	}
	otp, ok := f.records[otpID]
	if !ok {
		return scylla.ErrNotFound
	}
	otp.Verified = true
	return nil
}

func (f *fakeOTPRepo) HealthCheck(ctx context.Context) error { return nil }

type sentCode struct {
	target  string
	otpType string
	code    string
}

type fakeGateway struct {
	sent []sentCode
	err  error
}

func (f *fakeGateway) Send(ctx context.Context, target, otpType, code string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentCode{target: target, otpType: otpType, code: code})
	return nil
}

func newOTPService(repo *fakeOTPRepo, gw *fakeGateway) *OTPService {
	return NewOTPService(repo, nil, gw, nil, nil, zap.NewNop())
}

func TestIssueReturnsFreshRecord(t *testing.T) {
	repo := newFakeOTPRepo()
	gw := &fakeGateway{}
	svc := newOTPService(repo, gw)

	result, err := svc.Issue(context.Background(), models.OTPTypeMobile, "+911234567890")
	require.NoError(t, err)

	assert.NotEmpty(t, result.OTPID)
	assert.Equal(t, 600, result.ExpiresIn)

	require.Len(t, gw.sent, 1)
	assert.Equal(t, "+911234567890", gw.sent[0].target)
	assert.Len(t, gw.sent[0].code, 6)

	stored := repo.records[result.OTPID]
	require.NotNil(t, stored)
	assert.Equal(t, util.HashOTP(gw.sent[0].code), stored.OTPHash)
	assert.NotContains(t, stored.OTPHash, gw.sent[0].code)
	assert.False(t, stored.Verified)
}

func TestIssueDistinctIDsAndCodes(t *testing.T) {
	repo := newFakeOTPRepo()
	gw := &fakeGateway{}
	svc := newOTPService(repo, gw)

	first, err := svc.Issue(context.Background(), models.OTPTypeEmail, "a@example.com")
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), models.OTPTypeEmail, "a@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, first.OTPID, second.OTPID)
	// Both outstanding records coexist for the same target
	assert.Len(t, repo.records, 2)
}

func TestIssueValidation(t *testing.T) {
	svc := newOTPService(newFakeOTPRepo(), &fakeGateway{})

	_, err := svc.Issue(context.Background(), "carrier-pigeon", "+911234567890")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Issue(context.Background(), models.OTPTypeMobile, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIssueDeliveryFailureKeepsRecord(t *testing.T) {
	repo := newFakeOTPRepo()
	gw := &fakeGateway{err: errors.New("provider unavailable")}
	svc := newOTPService(repo, gw)

	_, err := svc.Issue(context.Background(), models.OTPTypeMobile, "+911234567890")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)

	// The record survives so a resend does not need to regenerate
	assert.Len(t, repo.records, 1)
}

func TestVerifySuccess(t *testing.T) {
	repo := newFakeOTPRepo()
	gw := &fakeGateway{}
	svc := newOTPService(repo, gw)

	issued, err := svc.Issue(context.Background(), models.OTPTypeMobile, "+911234567890")
	require.NoError(t, err)

	result, err := svc.Verify(context.Background(), issued.OTPID, gw.sent[0].code)
	require.NoError(t, err)
	assert.Equal(t, issued.OTPID, result.OTPID)
	assert.True(t, result.Verified)
	assert.True(t, repo.records[issued.OTPID].Verified)
}

func TestVerifyIdempotent(t *testing.T) {
	repo := newFakeOTPRepo()
	gw := &fakeGateway{}
	svc := newOTPService(repo, gw)

	issued, err := svc.Issue(context.Background(), models.OTPTypeMobile, "+911234567890")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), issued.OTPID, gw.sent[0].code)
	require.NoError(t, err)

	result, err := svc.Verify(context.Background(), issued.OTPID, gw.sent[0].code)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerifyMismatch(t *testing.T) {
	repo := newFakeOTPRepo()
	gw := &fakeGateway{}
	svc := newOTPService(repo, gw)

	issued, err := svc.Issue(context.Background(), models.OTPTypeMobile, "+911234567890")
	require.NoError(t, err)

	wrong := "000000"
	if gw.sent[0].code == wrong {
		wrong = "000001"
	}

	_, err = svc.Verify(context.Background(), issued.OTPID, wrong)
	assert.ErrorIs(t, err, ErrOTPMismatch)
	assert.False(t, repo.records[issued.OTPID].Verified)
}

func TestVerifyExpired(t *testing.T) {
	repo := newFakeOTPRepo()
	svc := newOTPService(repo, &fakeGateway{})

	now := time.Now().UTC()
	repo.records["stale"] = &models.OTP{
		OTPID:     "stale",
		Target:    "+911234567890",
		Type:      models.OTPTypeMobile,
		OTPHash:   util.HashOTP("123456"),
		ExpiresAt: now.Add(-time.Minute).Unix(),
		CreatedAt: now.Add(-11 * time.Minute),
	}

	_, err := svc.Verify(context.Background(), "stale", "123456")
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestVerifyNotFound(t *testing.T) {
	svc := newOTPService(newFakeOTPRepo(), &fakeGateway{})

	_, err := svc.Verify(context.Background(), "no-such-id", "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyValidation(t *testing.T) {
	svc := newOTPService(newFakeOTPRepo(), &fakeGateway{})

	_, err := svc.Verify(context.Background(), "", "123456")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Verify(context.Background(), "some-id", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
