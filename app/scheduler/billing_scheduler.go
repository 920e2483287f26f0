// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	businessflow "github.com/linktum-io/linktum/business_flow"
	"github.com/linktum-io/linktum/config"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/repository"
	"github.com/linktum-io/linktum/utils"
)

// billingLockKey guards the sweep so only one instance runs it at a time.
const billingLockKey = "billing:sweep:lock"

// Notifier is the minimal notification surface the scheduler needs.
// This keeps the scheduler independent and easy to test.
type Notifier interface {
	Queue(phone, message string)
}

// BillingScheduler periodically collects the daily fee from active links,
// deactivates links whose owners cannot pay, and reaps deactivated links
// once their grace window lapses.
type BillingScheduler struct {
	linkRepo    repository.LinkRepository
	clickRepo   repository.LinkClickRepository
	walletFlow  businessflow.WalletFlow
	paymentFlow businessflow.PaymentFlow
	notifier    Notifier
	cache       *redis.Client
	billingCfg  config.BillingConfig
	logger      *log.Logger
	interval    time.Duration

	logFile *os.File
}

func NewBillingScheduler(
	linkRepo repository.LinkRepository,
	clickRepo repository.LinkClickRepository,
	walletFlow businessflow.WalletFlow,
	paymentFlow businessflow.PaymentFlow,
	notifier Notifier,
	cache *redis.Client,
	billingCfg config.BillingConfig,
	interval time.Duration,
) *BillingScheduler {
	if interval <= 0 {
		interval = time.Hour
	}

	s := &BillingScheduler{
		linkRepo:    linkRepo,
		clickRepo:   clickRepo,
		walletFlow:  walletFlow,
		paymentFlow: paymentFlow,
		notifier:    notifier,
		cache:       cache,
		billingCfg:  billingCfg,
		interval:    interval,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("billing: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *BillingScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "billing.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "billing ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create billing log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *BillingScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *BillingScheduler) runOnce(ctx context.Context) {
	release, acquired := s.acquireLock(ctx)
	if !acquired {
		s.logger.Printf("billing: sweep already running elsewhere, skipping")
		return
	}
	defer release()

	s.collectDailyFees(ctx)
	s.reapExpiredGrace(ctx)

	if n, err := s.paymentFlow.ExpirePending(ctx); err != nil {
		s.logger.Printf("billing: pending payment sweep failed: %v", err)
	} else if n > 0 {
		s.logger.Printf("billing: expired %d stale pending payments", n)
	}
}

// acquireLock takes the cross-instance sweep lock. Without a cache client
// the scheduler assumes a single instance and always proceeds.
func (s *BillingScheduler) acquireLock(ctx context.Context) (func(), bool) {
	if s.cache == nil {
		return func() {}, true
	}
	ok, err := s.cache.SetNX(ctx, billingLockKey, "1", s.interval).Result()
	if err != nil {
		s.logger.Printf("billing: lock acquisition failed, proceeding unguarded: %v", err)
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := s.cache.Del(context.Background(), billingLockKey).Err(); err != nil {
			s.logger.Printf("billing: lock release failed: %v", err)
		}
	}, true
}

// collectDailyFees claims due links in batches and debits each owner.
// Owners who cannot pay get their link deactivated and a one-time
// deletion warning.
func (s *BillingScheduler) collectDailyFees(ctx context.Context) {
	var billed, deactivated int
	for {
		if ctx.Err() != nil {
			return
		}
		links, err := s.linkRepo.ClaimDueForBilling(ctx, utils.UTCNow(), s.billingCfg.ClaimTTL, s.billingCfg.SweepBatchSize)
		if err != nil {
			s.logger.Printf("billing: claim failed: %v", err)
			return
		}
		if len(links) == 0 {
			break
		}

		for _, link := range links {
			if err := s.billLink(ctx, link); err != nil {
				s.logger.Printf("billing: link %s: %v", link.Code, err)
				continue
			}
			if link.IsActive {
				billed++
			} else {
				deactivated++
			}
		}
	}
	if billed > 0 || deactivated > 0 {
		s.logger.Printf("billing: collected fees for %d links, deactivated %d", billed, deactivated)
	}
}

func (s *BillingScheduler) billLink(ctx context.Context, link *models.Link) error {
	_, err := s.walletFlow.Debit(ctx, link.CreatorPhone, s.billingCfg.DailyFee, models.TransactionKindDailyFee,
		fmt.Sprintf("daily fee for link %s", link.Code))
	if err == nil {
		next := link.NextBillingAt.Add(s.billingCfg.BillingCycle)
		if !next.After(utils.UTCNow()) {
			next = utils.UTCNowAdd(s.billingCfg.BillingCycle)
		}
		return s.linkRepo.RollBilling(ctx, link.ID, next)
	}
	if !businessflow.IsInsufficientBalance(err) {
		return fmt.Errorf("debit failed: %w", err)
	}

	now := utils.UTCNow()
	ok, err := s.linkRepo.Deactivate(ctx, link.ID, models.DeactivationReasonBilling, now)
	if err != nil {
		return fmt.Errorf("deactivate failed: %w", err)
	}
	if !ok {
		// Already inactive; nothing left to bill.
		return nil
	}
	link.IsActive = false

	sent, err := s.linkRepo.MarkDeleteWarningSent(ctx, link.ID, now)
	if err != nil {
		return fmt.Errorf("mark warning failed: %w", err)
	}
	if sent {
		s.notifier.Queue(link.CreatorPhone, fmt.Sprintf(
			"Your link %s was paused: not enough tums for the daily fee. Top up and send 'revive %s' within %d hours or the link will be deleted.",
			link.Code, link.Code, int(s.billingCfg.GraceWindow.Hours())))
	}
	return nil
}

// reapExpiredGrace deletes deactivated links whose grace window lapsed,
// along with their click history. The final notice goes out before the
// delete so the owner always hears about it.
func (s *BillingScheduler) reapExpiredGrace(ctx context.Context) {
	cutoff := utils.UTCNow().Add(-s.billingCfg.GraceWindow)
	links, err := s.linkRepo.ListDueForDeletion(ctx, cutoff, s.billingCfg.SweepBatchSize)
	if err != nil {
		s.logger.Printf("billing: list due for deletion failed: %v", err)
		return
	}
	for _, link := range links {
		s.notifier.Queue(link.CreatorPhone, fmt.Sprintf(
			"Your link %s was deleted after its grace period ended.", link.Code))
		if n, err := s.clickRepo.DeleteByLink(ctx, link.ID); err != nil {
			s.logger.Printf("billing: purge clicks of %s failed: %v", link.Code, err)
		} else if n > 0 {
			s.logger.Printf("billing: purged %d clicks of %s", n, link.Code)
		}
		if err := s.linkRepo.Remove(ctx, link.ID); err != nil {
			s.logger.Printf("billing: remove link %s failed: %v", link.Code, err)
		}
	}
	if len(links) > 0 {
		s.logger.Printf("billing: reaped %d links past grace", len(links))
	}
}

// Close releases the scheduler log file.
func (s *BillingScheduler) Close() {
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}
