package sessiongate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessiongate/internal/flows"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/google/uuid"
)

func (e *Engine) buildFlows() flows.Service {
	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	warn := func(msg string, args ...any) { e.logger.Warn(msg, args...) }
	audit := flows.AuditFunc(e.emitAudit)

	sessionDeps := flows.SessionDeps{
		SessionTTL:  e.config.Session.TTL,
		Now:         e.clock,
		NewID:       uuid.NewString,
		IssueAccess: e.jwtManager.CreateAccess,
		Store:       e.sessionStore,
		LedgerCreate: func(ctx context.Context, row flows.LedgerRow) error {
			return e.sessionLedger.CreateSession(ctx, LedgerSession{
				ID:          row.ID,
				UserID:      row.UserID,
				AccessToken: row.AccessToken,
				IPAddress:   row.IPAddress,
				UserAgent:   row.UserAgent,
				Active:      true,
				CreatedAt:   row.CreatedAt,
				UpdatedAt:   row.CreatedAt,
				ExpiresAt:   row.ExpiresAt,
			})
		},
		LedgerExtend:        e.sessionLedger.ExtendSession,
		LedgerDeactivate:    e.sessionLedger.DeactivateSession,
		LedgerDeactivateAll: e.sessionLedger.DeactivateUserSessions,
		MetricInc:           metricInc,
		MetricAdd:           func(id int, n uint64) { e.metrics.Add(MetricID(id), n) },
		Warn:                warn,
		Metrics: flows.SessionMetrics{
			SessionCreated:     int(MetricSessionCreated),
			SessionInvalidated: int(MetricSessionInvalidated),
		},
		Errors: flows.SessionErrors{
			EngineNotReady:            ErrEngineNotReady,
			SessionCreationFailed:     ErrSessionCreationFailed,
			SessionNotFound:           ErrSessionNotFound,
			SessionInvalidationFailed: ErrSessionInvalidationFailed,
			StoreUnavailable:          ErrStoreUnavailable,
		},
	}

	createSession := func(ctx context.Context, user flows.UserRecord, ip, userAgent string) (flows.SessionIssue, error) {
		return flows.RunCreateSession(ctx, user.UserID, user.Email, ip, userAgent, sessionDeps)
	}
	revokeAll := func(ctx context.Context, userID string) (int, error) {
		return flows.RunRevokeAllSessions(ctx, userID, sessionDeps)
	}

	resetDeps := flows.PasswordResetDeps{
		MinPasswordLength:    e.config.Password.MinLength,
		MaxPasswordLength:    e.config.Password.MaxLength,
		Now:                  e.clock,
		NewID:                uuid.NewString,
		ClientIPFromContext:  ClientIPFromContext,
		UserAgentFromContext: UserAgentFromContext,
		CreateResetToken:     e.jwtManager.CreateReset,
		ParseReset:           e.jwtManager.ParseReset,
		LedgerCreate: func(ctx context.Context, row flows.ResetTokenRow) error {
			return e.resetLedger.CreateResetToken(ctx, ResetTokenRecord{
				ID:        row.ID,
				UserID:    row.UserID,
				Token:     row.Token,
				CreatedAt: row.CreatedAt,
				UpdatedAt: row.CreatedAt,
				ExpiresAt: row.ExpiresAt,
			})
		},
		LedgerFindActive: func(ctx context.Context, token, userID string, now time.Time) (flows.ResetTokenRow, error) {
			rec, err := e.resetLedger.FindActiveResetToken(ctx, token, userID, now)
			if err != nil {
				return flows.ResetTokenRow{}, err
			}
			return flows.ResetTokenRow{
				ID:        rec.ID,
				UserID:    rec.UserID,
				Token:     rec.Token,
				Used:      rec.Used,
				CreatedAt: rec.CreatedAt,
				ExpiresAt: rec.ExpiresAt,
			}, nil
		},
		LedgerMarkUsed:     e.resetLedger.MarkResetTokenUsed,
		IsLedgerNotFound:   isResetNotFound,
		FindUserByID:       e.findUserByID,
		IsUserNotFound:     isUserNotFound,
		HashPassword:       e.passwordHash.Hash,
		UpdatePasswordHash: e.userProvider.UpdateUserPasswordHash,
		SetForcedResetFlag: e.userProvider.SetForcedResetFlag,
		RevokeAllSessions:  revokeAll,
		CreateSession:      createSession,
		MetricInc:          metricInc,
		EmitAudit:          audit,
		Warn:               warn,
		Metrics: flows.PasswordResetMetrics{
			PasswordResetIssued:  int(MetricPasswordResetIssued),
			PasswordResetSuccess: int(MetricPasswordResetSuccess),
			PasswordResetFailure: int(MetricPasswordResetFailure),
		},
		Events: flows.PasswordResetEvents{
			PasswordResetSuccess: auditEventPasswordResetSuccess,
			PasswordResetFailure: auditEventPasswordResetFailure,
		},
		Errors: flows.PasswordResetErrors{
			EngineNotReady:       ErrEngineNotReady,
			PasswordResetInvalid: ErrPasswordResetInvalid,
			PasswordPolicy:       ErrPasswordPolicy,
			StoreUnavailable:     ErrStoreUnavailable,
		},
	}

	var assignDefaultRole func(context.Context, string) error
	if e.config.Permission.DefaultRole != "" {
		assignDefaultRole = func(ctx context.Context, userID string) error {
			return e.roleProvider.AssignRole(ctx, userID, e.config.Permission.DefaultRole)
		}
	}

	return flows.New(flows.Deps{
		Session: sessionDeps,
		Validate: flows.ValidateDeps{
			ParseAccess: e.jwtManager.ParseAccess,
			ValidateSession: func(ctx context.Context, sessionID, token string) (*session.Session, error) {
				return flows.RunValidateSession(ctx, sessionID, token, sessionDeps)
			},
			FindUserByID:    e.findUserByID,
			IsUserNotFound:  isUserNotFound,
			SessionNotFound: ErrSessionNotFound,
		},
		Login: flows.LoginDeps{
			PasswordUpgradeOnLogin: true,
			ClientIPFromContext:    ClientIPFromContext,
			UserAgentFromContext:   UserAgentFromContext,
			FindUserByEmail:        e.findUserByEmail,
			IsUserNotFound:         isUserNotFound,
			UpdatePasswordHash:     e.userProvider.UpdateUserPasswordHash,
			VerifyPassword:         e.passwordHash.Verify,
			VerifyDummy:            e.passwordHash.VerifyDummy,
			PasswordNeedsUpgrade:   e.passwordHash.NeedsUpgrade,
			HashPassword:           e.passwordHash.Hash,
			CreateSession:          createSession,
			IssueReset: func(ctx context.Context, user flows.UserRecord) (flows.ResetIssue, error) {
				return flows.RunIssuePasswordReset(ctx, user, resetDeps)
			},
			MetricInc: metricInc,
			EmitAudit: audit,
			Warn:      warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:       int(MetricLoginSuccess),
				LoginFailure:       int(MetricLoginFailure),
				LoginResetRequired: int(MetricLoginResetRequired),
				AccountDisabled:    int(MetricAccountDisabled),
			},
			Events: flows.LoginEvents{
				LoginSuccess:       auditEventLoginSuccess,
				LoginFailure:       auditEventLoginFailure,
				LoginResetRequired: auditEventLoginResetRequired,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				AccountDisabled:    ErrAccountDisabled,
				StoreUnavailable:   ErrStoreUnavailable,
			},
		},
		Account: flows.AccountDeps{
			MinPasswordLength:    e.config.Password.MinLength,
			MaxPasswordLength:    e.config.Password.MaxLength,
			ClientIPFromContext:  ClientIPFromContext,
			UserAgentFromContext: UserAgentFromContext,
			HashPassword:         e.passwordHash.Hash,
			CreateUser: func(ctx context.Context, in flows.AccountCreateUserInput) (flows.UserRecord, error) {
				user, err := e.userProvider.CreateUser(ctx, CreateUserInput{
					Email:        in.Email,
					FirstName:    in.FirstName,
					LastName:     in.LastName,
					Phone:        in.Phone,
					PasswordHash: in.PasswordHash,
				})
				if err != nil {
					return flows.UserRecord{}, err
				}
				return toFlowUser(user), nil
			},
			IsDuplicate:       func(err error) bool { return errors.Is(err, ErrAccountExists) },
			AssignDefaultRole: assignDefaultRole,
			CreateSession:     createSession,
			MetricInc:         metricInc,
			EmitAudit:         audit,
			Warn:              warn,
			Metrics: flows.AccountMetrics{
				RegisterSuccess:   int(MetricRegisterSuccess),
				RegisterDuplicate: int(MetricRegisterDuplicate),
				LoginSuccess:      int(MetricLoginSuccess),
			},
			Events: flows.AccountEvents{
				RegisterSuccess:   auditEventRegisterSuccess,
				RegisterFailure:   auditEventRegisterFailure,
				RegisterDuplicate: auditEventRegisterDuplicate,
				LoginSuccess:      auditEventLoginSuccess,
			},
			Errors: flows.AccountErrors{
				EngineNotReady:        ErrEngineNotReady,
				InvalidInput:          ErrInvalidInput,
				PasswordPolicy:        ErrPasswordPolicy,
				AccountExists:         ErrAccountExists,
				SessionCreationFailed: ErrSessionCreationFailed,
			},
		},
		Refresh: flows.RefreshDeps{
			GetSession:     e.sessionStore.Get,
			FindUserByID:   e.findUserByID,
			IsUserNotFound: isUserNotFound,
			IssueAccess: func(userID, email, sessionID string) (string, error) {
				token, _, err := e.jwtManager.CreateAccess(userID, email, sessionID)
				return token, err
			},
			RefreshSession: func(ctx context.Context, sessionID, token string) (*session.Session, error) {
				return flows.RunRefreshSession(ctx, sessionID, token, sessionDeps)
			},
			MetricInc: metricInc,
			EmitAudit: audit,
			Metrics: flows.RefreshMetrics{
				RefreshSuccess: int(MetricRefreshSuccess),
				RefreshFailure: int(MetricRefreshFailure),
			},
			Events: flows.RefreshEvents{
				RefreshSuccess: auditEventRefreshSuccess,
				RefreshInvalid: auditEventRefreshInvalid,
			},
			Errors: flows.RefreshErrors{
				EngineNotReady:   ErrEngineNotReady,
				Unauthorized:     ErrUnauthorized,
				AccountDisabled:  ErrAccountDisabled,
				SessionNotFound:  ErrSessionNotFound,
				StoreUnavailable: ErrStoreUnavailable,
			},
		},
		Logout: flows.LogoutDeps{
			RevokeSession: func(ctx context.Context, userID, sessionID string) error {
				return flows.RunRevokeSession(ctx, userID, sessionID, sessionDeps)
			},
			RevokeAllSessions: revokeAll,
			MetricInc:         metricInc,
			EmitAudit:         audit,
			Metrics: flows.LogoutMetrics{
				Logout:    int(MetricLogout),
				LogoutAll: int(MetricLogoutAll),
			},
			Events: flows.LogoutEvents{
				LogoutSession: auditEventLogoutSession,
				LogoutAll:     auditEventLogoutAll,
			},
			EngineNotReady: ErrEngineNotReady,
		},
		PasswordReset: resetDeps,
	})
}

/*
====================================
RECORD CONVERSION
====================================
*/

func (e *Engine) findUserByID(ctx context.Context, userID string) (flows.UserRecord, error) {
	user, err := e.userProvider.FindUserByID(ctx, userID)
	if err != nil {
		return flows.UserRecord{}, err
	}
	return toFlowUser(user), nil
}

func (e *Engine) findUserByEmail(ctx context.Context, email string) (flows.UserRecord, error) {
	user, err := e.userProvider.FindUserByEmail(ctx, email)
	if err != nil {
		return flows.UserRecord{}, err
	}
	return toFlowUser(user), nil
}

func toFlowUser(u UserRecord) flows.UserRecord {
	return flows.UserRecord{
		UserID:        u.UserID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		PasswordHash:  u.PasswordHash,
		Enabled:       u.Enabled,
		ResetRequired: u.PasswordResetRequired,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func fromFlowUser(u flows.UserRecord) UserRecord {
	return UserRecord{
		UserID:                u.UserID,
		Email:                 u.Email,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		Phone:                 u.Phone,
		Enabled:               u.Enabled,
		PasswordResetRequired: u.ResetRequired,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func fromFlowLogin(res *flows.LoginResult) *LoginResult {
	if res == nil {
		return nil
	}
	out := &LoginResult{User: fromFlowUser(res.User)}
	if res.Session != nil {
		out.SessionID = res.Session.SessionID
		out.AccessToken = res.Session.AccessToken
		out.SessionExpiresAt = res.Session.ExpiresAt
	}
	if res.Reset != nil {
		out.ResetRequired = true
		out.ResetToken = res.Reset.Token
		out.ResetExpiresAt = res.Reset.ExpiresAt
	}
	return out
}

func isUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func isResetNotFound(err error) bool {
	return errors.Is(err, ErrPasswordResetInvalid)
}
