package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/infrastructure/config"
)

// Dispatcher turns domain events into member notifications. It subscribes
// to the event bus and hands work to a bounded pool of delivery workers,
// so a slow or failing gateway never backs up into the ledger write path.
// Duplicate event deliveries are absorbed through the idempotency store.
type Dispatcher struct {
	notifier Notifier
	dedupe   shared.IdempotencyStore
	logger   *zap.Logger
	cfg      config.NotificationConfig

	queue   chan *Notification
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex

	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher with the configured worker pool
func NewDispatcher(notifier Notifier, dedupe shared.IdempotencyStore, cfg config.NotificationConfig, logger *zap.Logger) *Dispatcher {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	cfg.Workers = workers
	return &Dispatcher{
		notifier: notifier,
		dedupe:   dedupe,
		logger:   logger,
		cfg:      cfg,
		queue:    make(chan *Notification, workers*16),
	}
}

// EventTypes returns the event types the dispatcher subscribes to
func (d *Dispatcher) EventTypes() []string {
	return []string{
		ledger.EventTypeTransactionRecorded,
		loan.EventTypeLoanRepaid,
		loan.EventTypeLoanOverdue,
		loan.EventTypeLoanDefaulted,
	}
}

// Start launches the delivery workers
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Info("notification dispatcher started", zap.Int("workers", d.cfg.Workers))
}

// Stop closes the queue and waits for in-flight deliveries to finish
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("notification dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("notification dispatcher stopped before all deliveries drained")
	}
}

// Handle converts the event into a notification and enqueues it. The
// enqueue never blocks; when the queue is full the notification is
// dropped and logged.
func (d *Dispatcher) Handle(ctx context.Context, event shared.DomainEvent) error {
	isNew, err := d.dedupe.MarkProcessed(ctx, "notify:"+event.EventID().String(), d.cfg.DedupeTTL)
	if err != nil {
		d.logger.Warn("notification dedupe check failed, delivering anyway",
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
	} else if !isNew {
		return nil
	}

	n := d.compose(event)
	if n == nil {
		return nil
	}

	select {
	case d.queue <- n:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, dropping",
			zap.String("event_type", event.EventType()),
			zap.String("group_id", event.GroupID().String()),
		)
	}
	return nil
}

// Dropped returns the number of notifications dropped due to a full queue
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// compose builds the member-facing message for an event
func (d *Dispatcher) compose(event shared.DomainEvent) *Notification {
	n := &Notification{
		ID:      uuid.New(),
		GroupID: event.GroupID(),
		Kind:    event.EventType(),
	}

	switch e := event.(type) {
	case *ledger.TransactionRecordedEvent:
		n.MemberID = e.MemberID
		n.Message = statementLine(e)
	case *loan.LoanRepaidEvent:
		memberID := e.MemberID
		n.MemberID = &memberID
		n.Message = "Your loan has been fully repaid. Thank you."
	case *loan.LoanOverdueEvent:
		memberID := e.MemberID
		n.MemberID = &memberID
		n.Message = "Your loan is past its due date. Please arrange repayment with your treasurer."
	case *loan.LoanDefaultedEvent:
		memberID := e.MemberID
		n.MemberID = &memberID
		n.Message = "Your loan of " + FormatAmount("UGX", e.Outstanding) + " outstanding has been marked defaulted."
	default:
		return nil
	}
	return n
}

// statementLine renders a one-line statement for a ledger transaction
func statementLine(e *ledger.TransactionRecordedEvent) string {
	amount := FormatAmount(e.Currency, e.Amount)
	switch e.Kind {
	case ledger.KindSavingsDeposit:
		return "Savings deposit of " + amount + " recorded."
	case ledger.KindSavingsWithdrawal:
		return "Savings withdrawal of " + amount + " recorded."
	case ledger.KindLoanDisbursement:
		return "Loan of " + amount + " disbursed to you."
	case ledger.KindLoanRepayment:
		return "Loan repayment of " + amount + " received."
	case ledger.KindStipendPayment:
		return "Officer stipend of " + amount + " paid out."
	default:
		return "Transaction of " + amount + " recorded."
	}
}

// worker delivers queued notifications with bounded retries
func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(ctx, n)
	}
}

// deliver attempts delivery with exponential backoff between retries
func (d *Dispatcher) deliver(ctx context.Context, n *Notification) {
	backoff := d.cfg.BaseBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := d.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		n.SentAt = time.Now()
		err := d.notifier.Send(ctx, n)
		if err == nil {
			return
		}
		d.logger.Warn("notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
	}
	d.logger.Error("notification dropped after retries",
		zap.String("notification_id", n.ID.String()),
		zap.String("kind", n.Kind),
	)
}

// Ensure Dispatcher implements EventHandler
var _ shared.EventHandler = (*Dispatcher)(nil)
