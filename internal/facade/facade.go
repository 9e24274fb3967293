// Package facade is the single entry point the UI layers talk to. It hides
// the online/offline split: writes either reach the remote gateway directly
// or land in the durable queue, and reads serve a merged view of the last
// confirmed server state plus any still-pending optimistic records.
package facade

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/pocketbook/internal/connectivity"
	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/importer"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
	"github.com/MrJamesThe3rd/pocketbook/internal/listener"
	"github.com/MrJamesThe3rd/pocketbook/internal/queue"
)

// Remote is the subset of the gateway the facade drives directly when the
// connection is up.
type Remote interface {
	CreateAccount(ctx context.Context, a *ledger.Account) error
	ListAccountsByOwner(ctx context.Context, ownerID string) ([]*ledger.Account, error)
	UpdateAccount(ctx context.Context, ownerID, id string, patch docstore.Document) error
	DeleteAccount(ctx context.Context, ownerID, id string) error

	CreateTransaction(ctx context.Context, t *ledger.Transaction) error
	ListTransactionsByOwner(ctx context.Context, ownerID string) ([]*ledger.Transaction, error)
	UpdateTransaction(ctx context.Context, ownerID, id string, patch docstore.Document) (*ledger.Transaction, error)
	DeleteTransaction(ctx context.Context, ownerID, id string) error

	CreateCategory(ctx context.Context, c *ledger.Category) error
	ListCategoriesForOwner(ctx context.Context, ownerID string) ([]*ledger.Category, error)
	UpdateCategory(ctx context.Context, ownerID, id string, patch docstore.Document) error
	DeleteCategory(ctx context.Context, ownerID, id string) error
	EnsureDefaultCategories(ctx context.Context, ownerID string) error

	CreateGoal(ctx context.Context, goal *ledger.Goal) error
	ListGoalsByOwner(ctx context.Context, ownerID string) ([]*ledger.Goal, error)
	UpdateGoal(ctx context.Context, ownerID, id string, patch docstore.Document) (*ledger.Goal, error)
	DeleteGoal(ctx context.Context, ownerID, id string) error
}

// Runner drains the pending queue. Satisfied by *syncer.Processor.
type Runner interface {
	Run(ctx context.Context) (int, error)
}

// Notifier receives user-facing messages such as "3 operations synced".
type Notifier interface {
	Notify(message string)
}

// Snapshots serves cached collection state when the remote is unreachable.
// Satisfied by *listener.Listener.
type Snapshots interface {
	Snapshot(collection string) (docs []docstore.Document, fresh, ok bool)
}

type slogNotifier struct {
	logger *slog.Logger
}

func (n slogNotifier) Notify(message string) {
	n.logger.Info(message)
}

// optimisticRecord is one pending local write overlaid on the confirmed
// state. A nil doc hides the record (pending delete). queueID zero means
// the write already reached the server and the overlay only bridges the
// gap until the next listener update.
type optimisticRecord struct {
	doc     docstore.Document
	queueID int64
}

type Service struct {
	owner     string
	remote    Remote
	queue     *queue.Queue
	conn      *connectivity.Monitor
	processor Runner
	notifier  Notifier
	cache     Snapshots
	imports   *importer.Service
	logger    *slog.Logger

	mu        sync.Mutex
	confirmed map[string][]docstore.Document
	overlay   map[string]map[string]optimisticRecord

	unsubscribe func()
	tempSeq     int64
}

type Options struct {
	Notifier Notifier
	// Cache, when set, backs reads that cannot reach the remote.
	Cache  Snapshots
	Logger *slog.Logger
}

func New(owner string, remote Remote, q *queue.Queue, conn *connectivity.Monitor, processor Runner, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = slogNotifier{logger: logger}
	}

	return &Service{
		owner:     owner,
		remote:    remote,
		queue:     q,
		conn:      conn,
		processor: processor,
		notifier:  notifier,
		cache:     opts.Cache,
		imports:   importer.NewService(),
		logger:    logger,
		confirmed: make(map[string][]docstore.Document),
		overlay:   make(map[string]map[string]optimisticRecord),
	}
}

// Start hooks the facade to connectivity transitions: every offline-to-online
// flip drains the queue in the background and refreshes the optimistic view.
func (s *Service) Start(ctx context.Context) {
	s.unsubscribe = s.conn.Subscribe(func(online bool) {
		if !online {
			return
		}

		go func() {
			if _, err := s.sync(ctx); err != nil {
				s.logger.Error("draining pending queue after reconnect", "error", err)
			}
		}()
	})
}

func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// HandleUpdate is wired as the listener callback. It replaces the confirmed
// snapshot for the collection and drops the bridge overlays whose writes the
// server has now echoed back.
func (s *Service) HandleUpdate(u listener.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirmed[u.Collection] = u.Docs

	for id, rec := range s.overlay[u.Collection] {
		if rec.queueID == 0 {
			delete(s.overlay[u.Collection], id)
		}
	}
}

// PendingCount reports how many operations are waiting in the durable queue.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.queue.Count(ctx)
}

// ProcessPending drains the queue on demand. It refuses to run while
// offline so callers can surface that state instead of silently doing
// nothing.
func (s *Service) ProcessPending(ctx context.Context) (int, error) {
	if !s.conn.Online() {
		return 0, fmt.Errorf("cannot process pending operations while offline")
	}

	return s.sync(ctx)
}

func (s *Service) sync(ctx context.Context) (int, error) {
	n, err := s.processor.Run(ctx)
	if err != nil {
		return n, fmt.Errorf("running queue processor: %w", err)
	}

	if err := s.reconcileOverlay(ctx); err != nil {
		s.logger.Warn("reconciling optimistic records", "error", err)
	}

	if n > 0 {
		s.notifier.Notify(fmt.Sprintf("%d operations synced", n))
	}

	return n, nil
}

// reconcileOverlay drops optimistic records whose queued operation is gone,
// either applied to the server or abandoned by the processor.
func (s *Service) reconcileOverlay(ctx context.Context) error {
	ops, err := s.queue.DequeueAllOrdered(ctx)
	if err != nil {
		return err
	}

	alive := make(map[int64]bool, len(ops))
	for _, op := range ops {
		alive[op.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for collection, records := range s.overlay {
		for id, rec := range records {
			if rec.queueID != 0 && !alive[rec.queueID] {
				delete(records, id)
			}
		}

		if len(records) == 0 {
			delete(s.overlay, collection)
		}
	}

	return nil
}

func (s *Service) tempID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tempSeq++

	return fmt.Sprintf("temp-%d-%d", time.Now().UnixNano(), s.tempSeq)
}

// IsTempID reports whether id was assigned locally and has not been
// confirmed by the server yet.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, "temp-")
}

// stage records an optimistic write on top of the confirmed state.
func (s *Service) stage(collection, id string, doc docstore.Document, queueID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overlay[collection] == nil {
		s.overlay[collection] = make(map[string]optimisticRecord)
	}

	s.overlay[collection][id] = optimisticRecord{doc: doc, queueID: queueID}
}

// merged returns the confirmed documents for collection with overlay records
// applied: staged writes replace or append, staged deletes hide.
func (s *Service) merged(collection string) []docstore.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.overlay[collection]

	out := make([]docstore.Document, 0, len(s.confirmed[collection])+len(records))
	seen := make(map[string]bool, len(records))

	for _, doc := range s.confirmed[collection] {
		id := doc.String("id")

		rec, staged := records[id]
		if !staged {
			out = append(out, doc)
			continue
		}

		seen[id] = true

		if rec.doc != nil {
			out = append(out, rec.doc)
		}
	}

	for id, rec := range records {
		if !seen[id] && rec.doc != nil {
			out = append(out, rec.doc)
		}
	}

	return out
}

// setConfirmed replaces the cached server state for collection. Used when a
// direct remote read succeeds and the listener has not delivered yet.
func (s *Service) setConfirmed(collection string, docs []docstore.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirmed[collection] = docs
}

func (s *Service) Accounts(ctx context.Context) ([]*ledger.Account, error) {
	if err := s.refresh(ctx, ledger.CollectionAccounts); err != nil {
		return nil, err
	}

	docs := s.merged(ledger.CollectionAccounts)

	accounts := make([]*ledger.Account, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, ledger.AccountFromDoc(doc))
	}

	return accounts, nil
}

func (s *Service) Transactions(ctx context.Context) ([]*ledger.Transaction, error) {
	if err := s.refresh(ctx, ledger.CollectionTransactions); err != nil {
		return nil, err
	}

	docs := s.merged(ledger.CollectionTransactions)

	txs := make([]*ledger.Transaction, 0, len(docs))
	for _, doc := range docs {
		txs = append(txs, ledger.TransactionFromDoc(doc))
	}

	return txs, nil
}

func (s *Service) Categories(ctx context.Context) ([]*ledger.Category, error) {
	if err := s.refresh(ctx, ledger.CollectionCategories); err != nil {
		return nil, err
	}

	docs := s.merged(ledger.CollectionCategories)

	categories := make([]*ledger.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, ledger.CategoryFromDoc(doc))
	}

	return categories, nil
}

func (s *Service) Goals(ctx context.Context) ([]*ledger.Goal, error) {
	if err := s.refresh(ctx, ledger.CollectionGoals); err != nil {
		return nil, err
	}

	docs := s.merged(ledger.CollectionGoals)

	goals := make([]*ledger.Goal, 0, len(docs))
	for _, doc := range docs {
		goals = append(goals, ledger.GoalFromDoc(doc))
	}

	return goals, nil
}

// refresh pulls the collection from the remote when online and no listener
// snapshot has arrived yet. With cached state, or offline, the cached view
// is served as-is. When the fetch fails, the listener's last snapshot is
// served as a degraded fallback instead of failing the read.
func (s *Service) refresh(ctx context.Context, collection string) error {
	s.mu.Lock()
	_, cached := s.confirmed[collection]
	s.mu.Unlock()

	if cached || !s.conn.Online() {
		return nil
	}

	docs, err := s.fetch(ctx, collection)
	if err != nil {
		if s.cache != nil {
			if snap, _, ok := s.cache.Snapshot(collection); ok {
				s.logger.Warn("remote fetch failed, serving cached snapshot",
					"collection", collection, "error", err)
				s.setConfirmed(collection, snap)

				return nil
			}
		}

		return fmt.Errorf("fetching %s: %w", collection, err)
	}

	s.setConfirmed(collection, docs)

	return nil
}

func (s *Service) fetch(ctx context.Context, collection string) ([]docstore.Document, error) {
	switch collection {
	case ledger.CollectionAccounts:
		accounts, err := s.remote.ListAccountsByOwner(ctx, s.owner)
		if err != nil {
			return nil, err
		}

		docs := make([]docstore.Document, 0, len(accounts))
		for _, a := range accounts {
			docs = append(docs, ledger.AccountToDoc(a))
		}

		return docs, nil
	case ledger.CollectionTransactions:
		txs, err := s.remote.ListTransactionsByOwner(ctx, s.owner)
		if err != nil {
			return nil, err
		}

		docs := make([]docstore.Document, 0, len(txs))
		for _, t := range txs {
			docs = append(docs, ledger.TransactionToDoc(t))
		}

		return docs, nil
	case ledger.CollectionCategories:
		categories, err := s.remote.ListCategoriesForOwner(ctx, s.owner)
		if err != nil {
			return nil, err
		}

		docs := make([]docstore.Document, 0, len(categories))
		for _, c := range categories {
			docs = append(docs, ledger.CategoryToDoc(c))
		}

		return docs, nil
	case ledger.CollectionGoals:
		goals, err := s.remote.ListGoalsByOwner(ctx, s.owner)
		if err != nil {
			return nil, err
		}

		docs := make([]docstore.Document, 0, len(goals))
		for _, g := range goals {
			docs = append(docs, ledger.GoalToDoc(g))
		}

		return docs, nil
	}

	return nil, fmt.Errorf("unknown collection %q", collection)
}
