package services

import (
	"context"
	"testing"
	"time"

	"github.com/calebmoran/roster/internal/models"
	pkgauth "github.com/calebmoran/roster/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Sunlit#Harbor42qz"

func TestAccountService_Create_Success(t *testing.T) {
	var captured *models.Account
	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		GetByNicknameFunc: func(ctx context.Context, nickname string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, acct *models.Account) (*models.Account, error) {
			acct.ID = "acct_1"
			captured = acct
			return acct, nil
		},
	}
	mockEmail := &MockEmailService{}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, mockEmail)

	created, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "New.User@Example.com",
		Password: testPassword,
		Nickname: "new_user",
	})

	require.NoError(t, err)
	assert.Equal(t, "new.user@example.com", created.Email)
	assert.Equal(t, "new_user", created.Nickname)
	assert.NotEqual(t, testPassword, captured.HashedPassword)
	assert.NoError(t, pkgauth.ComparePassword(captured.HashedPassword, testPassword))
	require.NotNil(t, captured.VerificationToken)
	assert.NotEmpty(t, *captured.VerificationToken)
	assert.False(t, captured.EmailVerified)
	assert.Equal(t, []string{"new.user@example.com"}, mockEmail.SentTo)
}

func TestAccountService_Create_GeneratesNicknameWhenAbsent(t *testing.T) {
	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		GetByNicknameFunc: func(ctx context.Context, nickname string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, acct *models.Account) (*models.Account, error) {
			acct.ID = "acct_1"
			return acct, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	created, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "user@example.com",
		Password: testPassword,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.Nickname)
}

func TestAccountService_Create_DuplicateEmail(t *testing.T) {
	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return NewTestAccount("acct_1", email, "taken"), nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "user@example.com",
		Password: testPassword,
		Nickname: "someone",
	})

	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAccountService_Create_DuplicateNickname(t *testing.T) {
	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		GetByNicknameFunc: func(ctx context.Context, nickname string) (*models.Account, error) {
			return NewTestAccount("acct_2", "other@example.com", nickname), nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "user@example.com",
		Password: testPassword,
		Nickname: "taken",
	})

	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAccountService_Create_InvalidEmail(t *testing.T) {
	svc := newTestAccountService(&MockAccountRepository{}, &MockLoginAuditRecorder{}, &MockEmailService{})

	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "not-an-email",
		Password: testPassword,
	})

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAccountService_Create_WeakPassword(t *testing.T) {
	svc := newTestAccountService(&MockAccountRepository{}, &MockLoginAuditRecorder{}, &MockEmailService{})

	_, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "user@example.com",
		Password: "short1A",
	})

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAccountService_Create_EmailSendFailureDoesNotUndoCreation(t *testing.T) {
	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		GetByNicknameFunc: func(ctx context.Context, nickname string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, acct *models.Account) (*models.Account, error) {
			acct.ID = "acct_1"
			return acct, nil
		},
	}
	mockEmail := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string) error {
			return assert.AnError
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, mockEmail)

	created, err := svc.Create(context.Background(), CreateAccountRequest{
		Email:    "user@example.com",
		Password: testPassword,
		Nickname: "resilient",
	})

	require.NoError(t, err)
	assert.Equal(t, "acct_1", created.ID)
}

func TestAccountService_Update_PartialPatch(t *testing.T) {
	existing := NewTestAccount("acct_1", "user@example.com", "user_one")
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return existing, nil
		},
		UpdateFunc: func(ctx context.Context, id string, acct *models.Account) (*models.Account, error) {
			return acct, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	bio := "Gopher at large"
	updated, err := svc.Update(context.Background(), "acct_1", UpdateAccountRequest{Bio: &bio})

	require.NoError(t, err)
	assert.Equal(t, "Gopher at large", *updated.Bio)
	assert.Equal(t, "user@example.com", updated.Email)
	assert.Equal(t, "user_one", updated.Nickname)
}

func TestAccountService_Update_NicknameConflict(t *testing.T) {
	existing := NewTestAccount("acct_1", "user@example.com", "user_one")
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return existing, nil
		},
		GetByNicknameFunc: func(ctx context.Context, nickname string) (*models.Account, error) {
			return NewTestAccount("acct_2", "other@example.com", nickname), nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	nick := "taken"
	_, err := svc.Update(context.Background(), "acct_1", UpdateAccountRequest{Nickname: &nick})

	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAccountService_Update_NotFound(t *testing.T) {
	svc := newTestAccountService(&MockAccountRepository{}, &MockLoginAuditRecorder{}, &MockEmailService{})

	bio := "bio"
	_, err := svc.Update(context.Background(), "missing", UpdateAccountRequest{Bio: &bio})

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountService_Login_Success_ResetsFailureState(t *testing.T) {
	hashed, err := pkgauth.HashPassword(testPassword)
	require.NoError(t, err)

	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.HashedPassword = hashed
	acct.FailedLoginAttempts = 2

	var persisted *models.Account
	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return acct, nil
		},
		UpdateFunc: func(ctx context.Context, id string, a *models.Account) (*models.Account, error) {
			persisted = a
			return a, nil
		},
	}
	audit := &MockLoginAuditRecorder{}
	svc := newTestAccountService(mockRepo, audit, &MockEmailService{})

	result, err := svc.Login(context.Background(), "User@Example.com", testPassword, LoginMetadata{IPAddress: "10.0.0.1"})

	require.NoError(t, err)
	assert.Equal(t, 0, persisted.FailedLoginAttempts)
	require.NotNil(t, result.LastLoginAt)
	assert.WithinDuration(t, time.Now(), *result.LastLoginAt, 5*time.Second)
	require.Len(t, audit.Recorded, 1)
	assert.True(t, audit.Recorded[0].Success)
}

func TestAccountService_Login_UnknownEmail(t *testing.T) {
	audit := &MockLoginAuditRecorder{}
	svc := newTestAccountService(&MockAccountRepository{}, audit, &MockEmailService{})

	_, err := svc.Login(context.Background(), "nobody@example.com", testPassword, LoginMetadata{})

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	require.Len(t, audit.Recorded, 1)
	assert.False(t, audit.Recorded[0].Success)
	assert.Equal(t, "unknown_email", *audit.Recorded[0].FailureReason)
}

func TestAccountService_Login_UnverifiedEmail(t *testing.T) {
	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.EmailVerified = false

	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return acct, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	_, err := svc.Login(context.Background(), "user@example.com", testPassword, LoginMetadata{})

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_Login_LockedAccountRejectsCorrectPassword(t *testing.T) {
	hashed, err := pkgauth.HashPassword(testPassword)
	require.NoError(t, err)

	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.HashedPassword = hashed
	acct.IsLocked = true

	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return acct, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	_, err = svc.Login(context.Background(), "user@example.com", testPassword, LoginMetadata{})

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_Login_LockoutAfterMaxFailures(t *testing.T) {
	hashed, err := pkgauth.HashPassword(testPassword)
	require.NoError(t, err)

	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.HashedPassword = hashed

	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return acct, nil
		},
		UpdateFunc: func(ctx context.Context, id string, a *models.Account) (*models.Account, error) {
			return a, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	// MaxLoginAttempts is 3 in the test config
	for i := 0; i < 3; i++ {
		_, err := svc.Login(context.Background(), "user@example.com", "Wrong#Password99x", LoginMetadata{})
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	}

	assert.True(t, acct.IsLocked)
	assert.Equal(t, 3, acct.FailedLoginAttempts)

	// Correct password is still rejected while locked
	_, err = svc.Login(context.Background(), "user@example.com", testPassword, LoginMetadata{})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_IsAccountLocked_AbsentAccountIsNotLocked(t *testing.T) {
	svc := newTestAccountService(&MockAccountRepository{}, &MockLoginAuditRecorder{}, &MockEmailService{})

	locked, err := svc.IsAccountLocked(context.Background(), "nobody@example.com")

	assert.NoError(t, err)
	assert.False(t, locked)
}

func TestAccountService_IsAccountLocked_Locked(t *testing.T) {
	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.IsLocked = true

	mockRepo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return acct, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	locked, err := svc.IsAccountLocked(context.Background(), "user@example.com")

	assert.NoError(t, err)
	assert.True(t, locked)
}

func TestAccountService_ResetPassword_ClearsLockout(t *testing.T) {
	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.IsLocked = true
	acct.FailedLoginAttempts = 3

	var persisted *models.Account
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return acct, nil
		},
		UpdateFunc: func(ctx context.Context, id string, a *models.Account) (*models.Account, error) {
			persisted = a
			return a, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.ResetPassword(context.Background(), "acct_1", testPassword)

	require.NoError(t, err)
	assert.False(t, persisted.IsLocked)
	assert.Equal(t, 0, persisted.FailedLoginAttempts)
	assert.NoError(t, pkgauth.ComparePassword(persisted.HashedPassword, testPassword))
}

func TestAccountService_ResetPassword_WeakPassword(t *testing.T) {
	svc := newTestAccountService(&MockAccountRepository{}, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.ResetPassword(context.Background(), "acct_1", "weak")

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAccountService_VerifyEmail_Success_PromotesAnonymous(t *testing.T) {
	token := "verification-token-123"
	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.EmailVerified = false
	acct.Role = models.RoleAnonymous
	acct.VerificationToken = &token

	var persisted *models.Account
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return acct, nil
		},
		UpdateFunc: func(ctx context.Context, id string, a *models.Account) (*models.Account, error) {
			persisted = a
			return a, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.VerifyEmail(context.Background(), "acct_1", token)

	require.NoError(t, err)
	assert.True(t, persisted.EmailVerified)
	assert.Nil(t, persisted.VerificationToken)
	assert.Equal(t, models.RoleAuthenticated, persisted.Role)
}

func TestAccountService_VerifyEmail_DoesNotDemoteElevatedRole(t *testing.T) {
	token := "verification-token-123"
	acct := NewTestAccount("acct_1", "admin@example.com", "admin_one")
	acct.EmailVerified = false
	acct.Role = models.RoleAdmin
	acct.VerificationToken = &token

	var persisted *models.Account
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return acct, nil
		},
		UpdateFunc: func(ctx context.Context, id string, a *models.Account) (*models.Account, error) {
			persisted = a
			return a, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.VerifyEmail(context.Background(), "acct_1", token)

	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, persisted.Role)
}

func TestAccountService_VerifyEmail_AlreadyVerified(t *testing.T) {
	acct := NewTestAccount("acct_1", "user@example.com", "user_one")

	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return acct, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.VerifyEmail(context.Background(), "acct_1", "any-token")

	assert.ErrorIs(t, err, models.ErrAlreadyVerified)
}

func TestAccountService_VerifyEmail_WrongToken(t *testing.T) {
	token := "the-real-token"
	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.EmailVerified = false
	acct.VerificationToken = &token

	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return acct, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.VerifyEmail(context.Background(), "acct_1", "a-forged-token")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_UnlockAccount_Success(t *testing.T) {
	acct := NewTestAccount("acct_1", "user@example.com", "user_one")
	acct.IsLocked = true
	acct.FailedLoginAttempts = 3

	var persisted *models.Account
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return acct, nil
		},
		UpdateFunc: func(ctx context.Context, id string, a *models.Account) (*models.Account, error) {
			persisted = a
			return a, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.UnlockAccount(context.Background(), "acct_1")

	require.NoError(t, err)
	assert.False(t, persisted.IsLocked)
	assert.Equal(t, 0, persisted.FailedLoginAttempts)
}

func TestAccountService_UnlockAccount_NotLocked(t *testing.T) {
	acct := NewTestAccount("acct_1", "user@example.com", "user_one")

	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return acct, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.UnlockAccount(context.Background(), "acct_1")

	assert.ErrorIs(t, err, models.ErrAccountNotLocked)
}

func TestAccountService_UnlockAccount_NotFound(t *testing.T) {
	svc := newTestAccountService(&MockAccountRepository{}, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.UnlockAccount(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountService_Delete_Success(t *testing.T) {
	deleted := false
	mockRepo := &MockAccountRepository{
		DeleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.Delete(context.Background(), "acct_1")

	assert.NoError(t, err)
	assert.True(t, deleted)
}

func TestAccountService_Delete_NotFound(t *testing.T) {
	mockRepo := &MockAccountRepository{
		DeleteFunc: func(ctx context.Context, id string) error {
			return models.ErrNotFound
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	err := svc.Delete(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountService_Search_ReturnsSummaries(t *testing.T) {
	locked := NewTestAccount("acct_2", "locked@example.com", "locked_user")
	locked.IsLocked = true

	mockRepo := &MockAccountRepository{
		SearchFunc: func(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.Account, error) {
			return []*models.Account{
				NewTestAccount("acct_1", "active@example.com", "active_user"),
				locked,
			}, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	results, err := svc.Search(context.Background(), models.SearchFilters{}, 10, 0)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Active", results[0].AccountStatus)
	assert.Equal(t, "Locked", results[1].AccountStatus)
}

func TestAccountService_Count(t *testing.T) {
	mockRepo := &MockAccountRepository{
		CountFunc: func(ctx context.Context) (int64, error) {
			return 42, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockLoginAuditRecorder{}, &MockEmailService{})

	count, err := svc.Count(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(42), count)
}
