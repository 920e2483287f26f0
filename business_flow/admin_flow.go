package businessflow

import (
	"context"

	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/repository"
	"github.com/linktum-io/linktum/utils"
	"golang.org/x/crypto/bcrypt"
)

// AdminFlow authenticates operators for the coupon management API.
type AdminFlow interface {
	Login(ctx context.Context, req *dto.AdminLoginRequest) (*dto.AdminLoginResponse, error)
}

// AdminFlowImpl implements AdminFlow
type AdminFlowImpl struct {
	adminRepo repository.AdminRepository
	tokens    TokenIssuer
}

// NewAdminFlow creates a new admin flow
func NewAdminFlow(adminRepo repository.AdminRepository, tokens TokenIssuer) AdminFlow {
	return &AdminFlowImpl{adminRepo: adminRepo, tokens: tokens}
}

func (f *AdminFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest) (*dto.AdminLoginResponse, error) {
	admin, err := f.adminRepo.ByUsername(ctx, req.Username)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOOKUP_FAILED", "failed to look up admin", err)
	}
	if admin == nil {
		return nil, NewBusinessError("ADMIN_NOT_FOUND", "admin not found", ErrAdminNotFound)
	}
	if !utils.IsTrue(admin.IsActive) {
		return nil, NewBusinessError("ADMIN_INACTIVE", "admin account is inactive", ErrAdminInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewBusinessError("INCORRECT_PASSWORD", "incorrect password", ErrIncorrectPassword)
	}

	token, err := f.tokens.Issue(admin.ID, admin.Username, utils.AdminAccessTokenTTL)
	if err != nil {
		return nil, NewBusinessError("TOKEN_ISSUE_FAILED", "failed to issue access token", err)
	}

	now := utils.UTCNow()
	if err := f.adminRepo.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		// Login still succeeds; last-login is advisory.
		_ = err
	}

	return &dto.AdminLoginResponse{
		Admin: dto.AdminDTO{
			ID:       admin.ID,
			UUID:     admin.UUID.String(),
			Username: admin.Username,
			IsActive: admin.IsActive,
		},
		Session: dto.AdminSessionDTO{
			AccessToken: token,
			ExpiresIn:   int(utils.AdminAccessTokenTTL.Seconds()),
			TokenType:   "Bearer",
		},
	}, nil
}
