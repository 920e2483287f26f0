package businessflow

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/config"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/repository"
	"github.com/linktum-io/linktum/utils"
)

// LinkFlow owns the short link lifecycle: creation, resolution with click
// tracking, temporary targets, voluntary pause and reactivation.
type LinkFlow interface {
	Create(ctx context.Context, req *dto.CreateLinkRequest) (*dto.LinkDTO, error)

	// Visit resolves a code to its wa.me URL and records the click.
	Visit(ctx context.Context, code, ip, userAgent, referrer string) (string, error)

	SetTemporal(ctx context.Context, creatorPhone, code, phone string) (*dto.LinkDTO, error)
	KillTemporal(ctx context.Context, creatorPhone, code string) (*dto.LinkDTO, error)
	Reactivate(ctx context.Context, creatorPhone, code string) (*dto.LinkDTO, error)
	Deactivate(ctx context.Context, creatorPhone, code string) (*dto.LinkDTO, error)
	ListByCreator(ctx context.Context, creatorPhone string, limit, offset int) (*dto.LinkListResponse, error)
	Stats(ctx context.Context, creatorPhone, code string) (*dto.LinkDTO, error)
}

// LinkFlowImpl implements LinkFlow
type LinkFlowImpl struct {
	linkRepo   repository.LinkRepository
	clickRepo  repository.LinkClickRepository
	walletFlow WalletFlow
	limiter    RateLimiter
	cfg        *config.ProductionConfig
	logger     *log.Logger
}

// NewLinkFlow creates a new link flow
func NewLinkFlow(
	linkRepo repository.LinkRepository,
	clickRepo repository.LinkClickRepository,
	walletFlow WalletFlow,
	limiter RateLimiter,
	cfg *config.ProductionConfig,
	logger *log.Logger,
) LinkFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &LinkFlowImpl{
		linkRepo:   linkRepo,
		clickRepo:  clickRepo,
		walletFlow: walletFlow,
		limiter:    limiter,
		cfg:        cfg,
		logger:     logger,
	}
}

func (f *LinkFlowImpl) Create(ctx context.Context, req *dto.CreateLinkRequest) (*dto.LinkDTO, error) {
	target := utils.NormalizePhone(req.TargetPhone)
	if target == "" {
		return nil, NewBusinessError("INVALID_PHONE", "invalid target phone number", ErrInvalidPhone)
	}

	creator, err := f.walletFlow.EnsureAccount(ctx, req.CreatorPhone, "")
	if err != nil {
		return nil, err
	}
	// The target is soft-registered too, so it owns a wallet from first contact.
	if _, err := f.walletFlow.EnsureAccount(ctx, target, ""); err != nil {
		return nil, err
	}

	allowed, retryAfter, err := f.limiter.Allow(ctx, creator.Phone, ActionCreateLink)
	if err != nil {
		f.logger.Printf("WARN rate limiter unavailable for %s: %v", creator.Phone, err)
	} else if !allowed {
		return nil, NewBusinessErrorf("RATE_LIMITED", "too many attempts, retry in %ds", ErrRateLimited, int(retryAfter.Seconds()))
	}

	cost := f.cfg.Billing.LinkCreationCost
	if creator.Balance < cost {
		return nil, NewBusinessError("INSUFFICIENT_BALANCE", "insufficient balance for link creation", ErrInsufficientBalance)
	}

	link := &models.Link{
		CreatorPhone:  creator.Phone,
		TargetPhone:   target,
		Title:         req.Title,
		Message:       req.Message,
		IsActive:      true,
		NextBillingAt: utils.UTCNowAdd(f.cfg.Billing.BillingCycle),
	}
	if req.TTLDays > 0 {
		link.ExpiresAt = utils.UTCNowAddPtr(time.Duration(req.TTLDays) * 24 * time.Hour)
	}

	if err := f.reserveCode(ctx, link, req.CustomCode); err != nil {
		return nil, err
	}

	if _, err := f.walletFlow.Debit(ctx, creator.Phone, cost, models.TransactionKindLinkCreation, "link "+link.Code); err != nil {
		// Creation must not leave a half-made link behind; release the code.
		if derr := f.linkRepo.DiscardReservation(ctx, link.ID); derr != nil {
			f.logger.Printf("ERROR inconsistency: orphaned reservation %s: %v", link.Code, derr)
		}
		return nil, err
	}

	mapped := mapLinkDTO(link, f.cfg.Server.PublicBaseURL)
	return &mapped, nil
}

// reserveCode claims either the requested custom code or a random one.
// The unique constraint on links.code is the arbiter between racers.
func (f *LinkFlowImpl) reserveCode(ctx context.Context, link *models.Link, customCode string) error {
	if customCode != "" {
		code := strings.ToLower(strings.TrimSpace(customCode))
		if !utils.IsValidCustomCode(code) {
			return NewBusinessError("INVALID_CODE", "invalid short code", ErrInvalidCode)
		}
		link.Code = code
		ok, err := f.linkRepo.Reserve(ctx, link)
		if err != nil {
			return NewBusinessError("RESERVATION_FAILED", "failed to reserve short code", err)
		}
		if !ok {
			return NewBusinessError("CODE_UNAVAILABLE", "short code is already taken", ErrCodeUnavailable)
		}
		return nil
	}

	for attempt := 0; attempt < utils.RandomCodeMaxAttempts; attempt++ {
		code, err := utils.GenerateShortCode()
		if err != nil {
			return NewBusinessError("CODE_GENERATION_FAILED", "failed to generate short code", err)
		}
		link.Code = code
		ok, err := f.linkRepo.Reserve(ctx, link)
		if err != nil {
			return NewBusinessError("RESERVATION_FAILED", "failed to reserve short code", err)
		}
		if ok {
			return nil
		}
	}
	return NewBusinessError("CODE_GENERATION_EXHAUSTED", "could not generate a free short code", ErrCodeGenerationExhausted)
}

// Visit resolves the code, eagerly deactivating links whose TTL lapsed,
// then records the click. Click tracking failures never block the
// redirect; counters can lag, the visitor cannot.
func (f *LinkFlowImpl) Visit(ctx context.Context, code, ip, userAgent, referrer string) (string, error) {
	link, err := f.resolve(ctx, code)
	if err != nil {
		return "", err
	}

	click := &models.LinkClick{
		LinkID:          link.ID,
		FingerprintHash: utils.HashFingerprint(f.cfg.Security.FingerprintSalt, ip, userAgent),
		IPHash:          utils.HashIP(f.cfg.Security.FingerprintSalt, ip),
		UserAgent:       userAgent,
		Referrer:        referrer,
	}
	isUnique, err := f.clickRepo.SaveUnique(ctx, click)
	if err != nil {
		f.logger.Printf("WARN click on %s not recorded: %v", link.Code, err)
	} else if err := f.linkRepo.IncrementClicks(ctx, link.ID, isUnique); err != nil {
		f.logger.Printf("WARN counters on %s not bumped: %v", link.Code, err)
	}

	return BuildChatURL(link.EffectiveTarget(), link.Message), nil
}

func (f *LinkFlowImpl) resolve(ctx context.Context, code string) (*models.Link, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	link, err := f.linkRepo.ByCode(ctx, code)
	if err != nil {
		return nil, NewBusinessError("LINK_LOOKUP_FAILED", "failed to look up link", err)
	}
	if link == nil || !link.IsActive {
		return nil, NewBusinessError("LINK_NOT_FOUND", "link not found", ErrLinkNotFound)
	}
	if link.IsExpired(utils.UTCNow()) {
		if _, err := f.linkRepo.Deactivate(ctx, link.ID, models.DeactivationReasonExpiry, utils.UTCNow()); err != nil {
			f.logger.Printf("WARN failed to deactivate expired link %s: %v", link.Code, err)
		}
		return nil, NewBusinessError("LINK_NOT_FOUND", "link not found", ErrLinkNotFound)
	}
	return link, nil
}

func (f *LinkFlowImpl) SetTemporal(ctx context.Context, creatorPhone, code, phone string) (*dto.LinkDTO, error) {
	temporal := utils.NormalizePhone(phone)
	if temporal == "" {
		return nil, NewBusinessError("INVALID_PHONE", "invalid temporary phone number", ErrInvalidPhone)
	}

	link, creator, err := f.owned(ctx, creatorPhone, code)
	if err != nil {
		return nil, err
	}
	if !link.IsActive {
		return nil, NewBusinessError("LINK_NOT_ACTIVE", "link is not active", ErrLinkNotActive)
	}
	if link.TemporalPhone != nil && *link.TemporalPhone != "" {
		return nil, NewBusinessError("TEMPORAL_ALREADY_SET", "a temporary target is already set", ErrTemporalAlreadySet)
	}

	allowed, retryAfter, err := f.limiter.Allow(ctx, creator, ActionTemporal)
	if err != nil {
		f.logger.Printf("WARN rate limiter unavailable for %s: %v", creator, err)
	} else if !allowed {
		return nil, NewBusinessErrorf("RATE_LIMITED", "too many attempts, retry in %ds", ErrRateLimited, int(retryAfter.Seconds()))
	}

	if fee := f.cfg.Billing.TemporalFee; fee > 0 {
		if _, err := f.walletFlow.Debit(ctx, creator, fee, models.TransactionKindTemporalFee, "temporary target on "+link.Code); err != nil {
			return nil, err
		}
	}

	if err := f.linkRepo.SetTemporal(ctx, link.ID, &temporal); err != nil {
		return nil, NewBusinessError("TEMPORAL_UPDATE_FAILED", "failed to set temporary target", err)
	}
	link.TemporalPhone = &temporal

	mapped := mapLinkDTO(link, f.cfg.Server.PublicBaseURL)
	return &mapped, nil
}

// KillTemporal restores the permanent target. Set and kill are separate
// paid operations; each debits its own fee.
func (f *LinkFlowImpl) KillTemporal(ctx context.Context, creatorPhone, code string) (*dto.LinkDTO, error) {
	link, creator, err := f.owned(ctx, creatorPhone, code)
	if err != nil {
		return nil, err
	}
	if link.TemporalPhone == nil || *link.TemporalPhone == "" {
		return nil, NewBusinessError("NO_TEMPORAL_TARGET", "no temporary target is set", ErrNoTemporalTarget)
	}

	if fee := f.cfg.Billing.TemporalFee; fee > 0 {
		if _, err := f.walletFlow.Debit(ctx, creator, fee, models.TransactionKindTemporalFee, "clear temporary target on "+link.Code); err != nil {
			return nil, err
		}
	}

	if err := f.linkRepo.SetTemporal(ctx, link.ID, nil); err != nil {
		return nil, NewBusinessError("TEMPORAL_UPDATE_FAILED", "failed to clear temporary target", err)
	}
	link.TemporalPhone = nil

	mapped := mapLinkDTO(link, f.cfg.Server.PublicBaseURL)
	return &mapped, nil
}

// Reactivate brings a deactivated link back, charging the daily fee up
// front. Any deactivated link must still be inside the grace window; past
// it the link belongs to the deletion reaper.
func (f *LinkFlowImpl) Reactivate(ctx context.Context, creatorPhone, code string) (*dto.LinkDTO, error) {
	link, creator, err := f.owned(ctx, creatorPhone, code)
	if err != nil {
		return nil, err
	}
	if link.IsActive {
		return nil, NewBusinessError("LINK_NOT_DEACTIVATED", "link is not deactivated", ErrLinkNotDeactivated)
	}
	if link.DeactivatedAt != nil &&
		utils.UTCNow().After(link.DeactivatedAt.Add(f.cfg.Billing.GraceWindow)) {
		return nil, NewBusinessError("GRACE_EXPIRED", "reactivation window has passed", ErrGraceExpired)
	}

	fee := f.cfg.Billing.DailyFee
	if _, err := f.walletFlow.Debit(ctx, creator, fee, models.TransactionKindDailyFee, "reactivation of "+link.Code); err != nil {
		return nil, err
	}

	nextBilling := utils.UTCNowAdd(f.cfg.Billing.BillingCycle)
	ok, err := f.linkRepo.Activate(ctx, link.ID, nextBilling)
	if err != nil {
		return nil, NewBusinessError("REACTIVATION_FAILED", "failed to reactivate link", err)
	}
	if !ok {
		// Someone else reactivated first; hand the fee back.
		if _, cerr := f.walletFlow.Credit(ctx, creator, fee, models.TransactionKindAdjustment, "refund: "+link.Code+" already active"); cerr != nil {
			f.logger.Printf("ERROR inconsistency: reactivation fee for %s not refunded: %v", link.Code, cerr)
		}
		return nil, NewBusinessError("LINK_NOT_DEACTIVATED", "link is not deactivated", ErrLinkNotDeactivated)
	}

	link.IsActive = true
	link.NextBillingAt = nextBilling
	link.DeactivatedAt = nil
	link.Reason = ""
	link.DeleteWarningSentAt = nil

	mapped := mapLinkDTO(link, f.cfg.Server.PublicBaseURL)
	return &mapped, nil
}

func (f *LinkFlowImpl) Deactivate(ctx context.Context, creatorPhone, code string) (*dto.LinkDTO, error) {
	link, _, err := f.owned(ctx, creatorPhone, code)
	if err != nil {
		return nil, err
	}

	now := utils.UTCNow()
	ok, err := f.linkRepo.Deactivate(ctx, link.ID, models.DeactivationReasonOwner, now)
	if err != nil {
		return nil, NewBusinessError("DEACTIVATION_FAILED", "failed to deactivate link", err)
	}
	if !ok {
		return nil, NewBusinessError("LINK_NOT_ACTIVE", "link is not active", ErrLinkNotActive)
	}

	link.IsActive = false
	link.Reason = models.DeactivationReasonOwner
	link.DeactivatedAt = &now

	mapped := mapLinkDTO(link, f.cfg.Server.PublicBaseURL)
	return &mapped, nil
}

func (f *LinkFlowImpl) ListByCreator(ctx context.Context, creatorPhone string, limit, offset int) (*dto.LinkListResponse, error) {
	creator := utils.NormalizePhone(creatorPhone)
	if creator == "" {
		return nil, NewBusinessError("INVALID_PHONE", "invalid phone number", ErrInvalidPhone)
	}
	limit, offset = normalizePage(limit, offset)
	rows, err := f.linkRepo.ListByCreator(ctx, creator, limit, offset)
	if err != nil {
		return nil, NewBusinessError("LINK_LIST_FAILED", "failed to list links", err)
	}
	resp := &dto.LinkListResponse{Links: make([]dto.LinkDTO, 0, len(rows))}
	for _, row := range rows {
		resp.Links = append(resp.Links, mapLinkDTO(row, f.cfg.Server.PublicBaseURL))
	}
	return resp, nil
}

// Stats returns one owned link with its click counters.
func (f *LinkFlowImpl) Stats(ctx context.Context, creatorPhone, code string) (*dto.LinkDTO, error) {
	link, _, err := f.owned(ctx, creatorPhone, code)
	if err != nil {
		return nil, err
	}
	mapped := mapLinkDTO(link, f.cfg.Server.PublicBaseURL)
	return &mapped, nil
}

// owned loads a link by code and checks the caller is its creator.
func (f *LinkFlowImpl) owned(ctx context.Context, creatorPhone, code string) (*models.Link, string, error) {
	creator := utils.NormalizePhone(creatorPhone)
	if creator == "" {
		return nil, "", NewBusinessError("INVALID_PHONE", "invalid phone number", ErrInvalidPhone)
	}
	code = strings.ToLower(strings.TrimSpace(code))
	link, err := f.linkRepo.ByCode(ctx, code)
	if err != nil {
		return nil, "", NewBusinessError("LINK_LOOKUP_FAILED", "failed to look up link", err)
	}
	if link == nil {
		return nil, "", NewBusinessError("LINK_NOT_FOUND", "link not found", ErrLinkNotFound)
	}
	if link.CreatorPhone != creator {
		return nil, "", NewBusinessError("NOT_LINK_OWNER", "link belongs to another account", ErrNotLinkOwner)
	}
	return link, creator, nil
}
