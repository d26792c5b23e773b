package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"verify-service/internal/config"
	"verify-service/internal/util"
)

// Expected schema:
//
//	CREATE TABLE users (
//	    user_bucket int, user_id text, mobile text, email text,
//	    auth_provider text, first_name text, last_name text, city text,
//	    state text, student_class text, test_group text, stream text,
//	    subject_performance map<text, text>, subject_ratings map<text, double>,
//	    test_completed boolean, payment_done boolean, report_ready boolean,
//	    ai_messages_used int, created_at timestamp, updated_at timestamp,
//	    PRIMARY KEY ((user_bucket, user_id)));
//
//	CREATE TABLE otps (
//	    otp_id text PRIMARY KEY, target text, otp_type text, otp_hash text,
//	    verified boolean, expires_at bigint, created_at timestamp);
//
// OTP rows are written USING TTL so the store garbage-collects them at
// expiry; users are conditionally inserted/updated via LWT.

// PreparedStatements holds the statements used by the repositories
type PreparedStatements struct {
	CreateUser  *gocql.Query
	GetUserByID *gocql.Query

	CreateOTP       *gocql.Query
	GetOTPByID      *gocql.Query
	MarkOTPVerified *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 "/root/certs/ca.pem",
			CertPath:               "/root/certs/server.pem",
			KeyPath:                "/root/certs/server.key",
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateUser = s.Session.Query(`
        INSERT INTO users (
            user_bucket, user_id, mobile, email, auth_provider,
            first_name, last_name, city, state, student_class, test_group,
            stream, subject_performance, subject_ratings, test_completed,
            payment_done, report_ready, ai_messages_used, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        IF NOT EXISTS`)

	prepared.GetUserByID = s.Session.Query(`
        SELECT user_bucket, user_id, mobile, email, auth_provider,
            first_name, last_name, city, state, student_class, test_group,
            stream, subject_performance, subject_ratings, test_completed,
            payment_done, report_ready, ai_messages_used, created_at, updated_at
        FROM users WHERE user_bucket = ? AND user_id = ?`)

	prepared.CreateOTP = s.Session.Query(`
        INSERT INTO otps (otp_id, target, otp_type, otp_hash, verified,
            expires_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?) USING TTL ?`)

	prepared.GetOTPByID = s.Session.Query(`
        SELECT otp_id, target, otp_type, otp_hash, verified, expires_at,
            created_at
        FROM otps WHERE otp_id = ?`)

	prepared.MarkOTPVerified = s.Session.Query(`
        UPDATE otps USING TTL ? SET verified = true WHERE otp_id = ? IF EXISTS`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created successfully")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

// ExecuteWithRetry retries transient execution failures with linear backoff.
// Conditional-check outcomes are not errors and never reach this path.
func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			lastErr = err
			if err == gocql.ErrNotFound {
				return err
			}
			if i < 2 {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
