package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"interestbatch/events"
	"interestbatch/models"

	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for the Postgres repositories. Writes apply
// immediately and are not undone on rollback, so faults are only injected into the
// first write of a transaction.
type fakeStore struct {
	mu           sync.Mutex
	configs      map[models.JobType]*models.JobConfig
	executions   map[uuid.UUID]*models.Execution
	results      []*models.AccountResult
	statuses     map[string]*models.AccountStatus
	accounts     []*models.Account
	events       []events.Event
	nextResultID int64
	selectErr    error
	// fault, when set, may fail a repository write for one account
	fault func(op, accountID string) error
}

// failOnce makes op fail with err for accountID the first time it is attempted
func (s *fakeStore) failOnce(op, accountID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fired := false
	previous := s.fault
	s.fault = func(o, id string) error {
		if !fired && o == op && id == accountID {
			fired = true
			return err
		}
		if previous != nil {
			return previous(o, id)
		}
		return nil
	}
}

// injected runs the fault hook; callers hold s.mu
func (s *fakeStore) injected(op, accountID string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, accountID)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:    make(map[models.JobType]*models.JobConfig),
		executions: make(map[uuid.UUID]*models.Execution),
		statuses:   make(map[string]*models.AccountStatus),
	}
}

func (s *fakeStore) Create() UnitOfWork {
	return &fakeUnitOfWork{store: s}
}

func (s *fakeStore) addConfig(cfg *models.JobConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cfg
	s.configs[cfg.JobType] = &c
}

func (s *fakeStore) addAccounts(accounts ...*models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append(s.accounts, accounts...)
}

func (s *fakeStore) execution(id uuid.UUID) *models.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return nil
	}
	c := *exec
	return &c
}

func (s *fakeStore) resultsFor(id uuid.UUID) []*models.AccountResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AccountResult
	for _, r := range s.results {
		if r.ExecutionID == id {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

func (s *fakeStore) status(accountID string) *models.AccountStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[accountID]
	if !ok {
		return nil
	}
	c := *st
	return &c
}

// onlyExecution returns a copy of the single execution in the store, if any
func (s *fakeStore) onlyExecution() *models.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exec := range s.executions {
		c := *exec
		return &c
	}
	return nil
}

func (s *fakeStore) publishedTypes() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]events.EventType, len(s.events))
	for i, ev := range s.events {
		types[i] = ev.Type()
	}
	return types
}

type fakeUnitOfWork struct {
	store   *fakeStore
	pending []events.Event
	begun   bool
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error {
	if u.begun {
		return errors.New("transaction already started")
	}
	u.begun = true
	return nil
}

func (u *fakeUnitOfWork) Commit() error {
	if !u.begun {
		return errors.New("no transaction to commit")
	}
	u.begun = false
	u.store.mu.Lock()
	u.store.events = append(u.store.events, u.pending...)
	u.store.mu.Unlock()
	u.pending = nil
	return nil
}

func (u *fakeUnitOfWork) Rollback() error {
	u.begun = false
	u.pending = nil
	return nil
}

func (u *fakeUnitOfWork) JobConfigRepository() JobConfigRepository {
	return &fakeJobConfigRepo{s: u.store}
}

func (u *fakeUnitOfWork) ExecutionRepository() ExecutionRepository {
	return &fakeExecutionRepo{s: u.store}
}

func (u *fakeUnitOfWork) AccountResultRepository() AccountResultRepository {
	return &fakeAccountResultRepo{s: u.store}
}

func (u *fakeUnitOfWork) AccountStatusRepository() AccountStatusRepository {
	return &fakeAccountStatusRepo{s: u.store}
}

func (u *fakeUnitOfWork) AccountRepository() AccountRepository {
	return &fakeAccountRepo{s: u.store}
}

func (u *fakeUnitOfWork) EventBus() EventPublisher {
	return u
}

func (u *fakeUnitOfWork) Publish(event events.Event) {
	u.pending = append(u.pending, event)
}

type fakeJobConfigRepo struct{ s *fakeStore }

func (r *fakeJobConfigRepo) GetByJobType(ctx context.Context, jobType models.JobType) (*models.JobConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cfg, ok := r.s.configs[jobType]
	if !ok {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

func (r *fakeJobConfigRepo) GetAll(ctx context.Context) ([]*models.JobConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.JobConfig
	for _, jobType := range slices.Sorted(maps.Keys(r.s.configs)) {
		c := *r.s.configs[jobType]
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeJobConfigRepo) Create(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.configs[cfg.JobType]; ok {
		return nil, NewConflictError("job config %s already exists", cfg.JobType)
	}
	c := *cfg
	r.s.configs[cfg.JobType] = &c
	out := c
	return &out, nil
}

func (r *fakeJobConfigRepo) Update(ctx context.Context, jobType models.JobType, patch *models.JobConfigPatch) (*models.JobConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cfg, ok := r.s.configs[jobType]
	if !ok {
		return nil, nil
	}
	merged := patch.Apply(cfg)
	r.s.configs[jobType] = merged
	out := *merged
	return &out, nil
}

func (r *fakeJobConfigRepo) Upsert(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *cfg
	r.s.configs[cfg.JobType] = &c
	out := c
	return &out, nil
}

type fakeExecutionRepo struct{ s *fakeStore }

func (r *fakeExecutionRepo) Create(ctx context.Context, exec *models.Execution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.executions {
		if existing.JobType == exec.JobType && existing.Status == models.ExecutionStatusRunning {
			return NewConflictError("an execution of %s is already running", exec.JobType)
		}
	}
	c := *exec
	c.BatchParameters = maps.Clone(exec.BatchParameters)
	r.s.executions[exec.ID] = &c
	return nil
}

func (r *fakeExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	exec, ok := r.s.executions[id]
	if !ok {
		return nil, nil
	}
	c := *exec
	return &c, nil
}

func (r *fakeExecutionRepo) GetRunningByJobType(ctx context.Context, jobType models.JobType) (*models.Execution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, exec := range r.s.executions {
		if exec.JobType == jobType && exec.Status == models.ExecutionStatusRunning {
			c := *exec
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeExecutionRepo) GetRunning(ctx context.Context) ([]*models.Execution, error) {
	status := models.ExecutionStatusRunning
	list, _, err := r.List(ctx, models.ExecutionFilter{Status: &status}, models.Page{Page: 1, PageSize: MaxPageSize})
	return list, err
}

func (r *fakeExecutionRepo) GetLatestCompleted(ctx context.Context) (*models.Execution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.Execution
	for _, exec := range r.s.executions {
		if exec.Status != models.ExecutionStatusCompleted {
			continue
		}
		if latest == nil || exec.CompletedAt.After(*latest.CompletedAt) {
			latest = exec
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (r *fakeExecutionRepo) List(ctx context.Context, filter models.ExecutionFilter, page models.Page) ([]*models.Execution, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []*models.Execution
	for _, exec := range r.s.executions {
		if filter.JobType != nil && exec.JobType != *filter.JobType {
			continue
		}
		if filter.Status != nil && exec.Status != *filter.Status {
			continue
		}
		if filter.DateFrom != nil && exec.StartedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && exec.StartedAt.After(*filter.DateTo) {
			continue
		}
		c := *exec
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })

	start := min(page.Offset(), len(matched))
	end := min(start+page.PageSize, len(matched))
	return matched[start:end], len(matched), nil
}

func (r *fakeExecutionRepo) SetTotalAccounts(ctx context.Context, id uuid.UUID, total int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	exec, ok := r.s.executions[id]
	if !ok {
		return fmt.Errorf("execution %s not found", id)
	}
	exec.TotalAccounts = total
	return nil
}

func (r *fakeExecutionRepo) IncrementCounters(ctx context.Context, id uuid.UUID, success bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	exec, ok := r.s.executions[id]
	if !ok || exec.Status != models.ExecutionStatusRunning {
		return false, nil
	}
	if exec.ProcessedAccounts+1 > exec.TotalAccounts {
		return false, errors.New("processed accounts would exceed total")
	}
	exec.ProcessedAccounts++
	if success {
		exec.SuccessfulAccounts++
	} else {
		exec.FailedAccounts++
	}
	return true, nil
}

func (r *fakeExecutionRepo) terminate(id uuid.UUID, status models.ExecutionStatus, completedAt time.Time, details *models.ErrorDetails) *models.Execution {
	exec, ok := r.s.executions[id]
	if !ok || exec.Status != models.ExecutionStatusRunning {
		return nil
	}
	ms := completedAt.Sub(exec.StartedAt).Milliseconds()
	exec.Status = status
	exec.CompletedAt = &completedAt
	exec.ExecutionTimeMs = &ms
	exec.ErrorDetails = details
	c := *exec
	return &c
}

func (r *fakeExecutionRepo) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.terminate(id, models.ExecutionStatusCompleted, completedAt, nil) != nil, nil
}

func (r *fakeExecutionRepo) Fail(ctx context.Context, id uuid.UUID, completedAt time.Time, details *models.ErrorDetails) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.terminate(id, models.ExecutionStatusFailed, completedAt, details) != nil, nil
}

func (r *fakeExecutionRepo) Cancel(ctx context.Context, id uuid.UUID, completedAt time.Time, details *models.ErrorDetails) (*models.Execution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.terminate(id, models.ExecutionStatusCancelled, completedAt, details), nil
}

func (r *fakeExecutionRepo) FailOrphaned(ctx context.Context, completedAt time.Time, details *models.ErrorDetails) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id := range r.s.executions {
		if r.terminate(id, models.ExecutionStatusFailed, completedAt, details) != nil {
			n++
		}
	}
	return n, nil
}

type fakeAccountResultRepo struct{ s *fakeStore }

func (r *fakeAccountResultRepo) CreatePlaceholder(ctx context.Context, result *models.AccountResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("CreatePlaceholder", result.AccountID); err != nil {
		return err
	}
	r.s.nextResultID++
	result.ID = r.s.nextResultID
	result.Status = models.AccountResultStatusSkipped
	result.CreatedAt = time.Now()
	c := *result
	r.s.results = append(r.s.results, &c)
	return nil
}

func (r *fakeAccountResultRepo) Finalize(ctx context.Context, result *models.AccountResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, existing := range r.s.results {
		if existing.ID == result.ID {
			c := *result
			c.CreatedAt = existing.CreatedAt
			r.s.results[i] = &c
			return nil
		}
	}
	return fmt.Errorf("account result %d not found", result.ID)
}

func (r *fakeAccountResultRepo) SkipUnresolved(ctx context.Context, executionID uuid.UUID, message string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, result := range r.s.results {
		if result.ExecutionID != executionID {
			continue
		}
		if result.Status == models.AccountResultStatusSuccess || result.Status == models.AccountResultStatusFailed {
			continue
		}
		msg := message
		result.Status = models.AccountResultStatusSkipped
		result.ErrorMessage = &msg
		n++
	}
	return n, nil
}

func (r *fakeAccountResultRepo) List(ctx context.Context, filter models.AccountResultFilter, page models.Page) ([]*models.AccountResult, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []*models.AccountResult
	for _, result := range r.s.results {
		if result.ExecutionID != filter.ExecutionID {
			continue
		}
		if filter.Status != nil && result.Status != *filter.Status {
			continue
		}
		c := *result
		matched = append(matched, &c)
	}
	start := min(page.Offset(), len(matched))
	end := min(start+page.PageSize, len(matched))
	return matched[start:end], len(matched), nil
}

func (r *fakeAccountResultRepo) GetDailyStats(ctx context.Context, since time.Time) (*models.DailyResultStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &models.DailyResultStats{}
	var totalMs int64
	for _, result := range r.s.results {
		if result.CreatedAt.Before(since) || result.Status == models.AccountResultStatusSkipped {
			continue
		}
		stats.AccountsProcessed++
		totalMs += result.ProcessingTimeMs
		if result.Status == models.AccountResultStatusFailed {
			stats.FailedAccounts++
		} else if result.InterestPosted != nil {
			stats.InterestPosted += *result.InterestPosted
		}
	}
	if stats.AccountsProcessed > 0 {
		stats.AvgProcessingTimeMs = float64(totalMs) / float64(stats.AccountsProcessed)
	}
	return stats, nil
}

type fakeAccountStatusRepo struct{ s *fakeStore }

func (r *fakeAccountStatusRepo) GetByAccountID(ctx context.Context, accountID string) (*models.AccountStatus, error) {
	return r.s.status(accountID), nil
}

func (r *fakeAccountStatusRepo) row(acct *models.Account) *models.AccountStatus {
	st, ok := r.s.statuses[acct.ID]
	if !ok {
		st = &models.AccountStatus{
			AccountID:        acct.ID,
			AccountType:      acct.AccountType,
			AccountNumber:    acct.AccountNumber,
			AccrualFrequency: acct.AccrualFrequency,
			PostingFrequency: acct.PostingFrequency,
			Status:           acct.Status,
			CreatedAt:        time.Now(),
		}
		r.s.statuses[acct.ID] = st
	}
	return st
}

func (r *fakeAccountStatusRepo) RecordSuccess(ctx context.Context, success *models.AccountStatusSuccess) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("RecordSuccess", success.Account.ID); err != nil {
		return err
	}
	st := r.row(success.Account)
	if success.LastAccrualDate != nil {
		st.LastAccrualDate = success.LastAccrualDate
	}
	if success.LastPostingDate != nil {
		st.LastPostingDate = success.LastPostingDate
	}
	if success.NextPostingDate != nil {
		st.NextPostingDate = success.NextPostingDate
	}
	at := success.At
	st.ErrorCount = 0
	st.LastErrorMessage = nil
	st.LastSuccessfulRun = &at
	st.UpdatedAt = at
	return nil
}

func (r *fakeAccountStatusRepo) RecordFailure(ctx context.Context, failure *models.AccountStatusFailure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("RecordFailure", failure.Account.ID); err != nil {
		return err
	}
	st := r.row(failure.Account)
	msg := failure.ErrorMessage
	st.ErrorCount++
	st.LastErrorMessage = &msg
	st.UpdatedAt = failure.At
	return nil
}

type fakeAccountRepo struct{ s *fakeStore }

func (r *fakeAccountRepo) filter(keep func(a *models.Account) bool) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.selectErr != nil {
		return nil, r.s.selectErr
	}
	var out []*models.Account
	for _, a := range r.s.accounts {
		if a.Status == models.AccountStateActive && keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAccountRepo) GetActiveByTypes(ctx context.Context, accountTypes []string) ([]*models.Account, error) {
	return r.filter(func(a *models.Account) bool {
		return slices.Contains(accountTypes, a.AccountType)
	})
}

func (r *fakeAccountRepo) GetActiveByIDs(ctx context.Context, ids []string) ([]*models.Account, error) {
	return r.filter(func(a *models.Account) bool {
		return slices.Contains(ids, a.ID)
	})
}

func (r *fakeAccountRepo) GetDueForPosting(ctx context.Context, accountTypes []string, referenceDate time.Time) ([]*models.Account, error) {
	return r.filter(func(a *models.Account) bool {
		if !slices.Contains(accountTypes, a.AccountType) {
			return false
		}
		st, ok := r.s.statuses[a.ID]
		return !ok || st.NextPostingDate == nil || !st.NextPostingDate.After(referenceDate)
	})
}

// fakeCalculator records call order and the peak number of concurrent calls
type fakeCalculator struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       []string
	log         []string
	delay       time.Duration
	accrue      func(accountID string) (*AccrualOutcome, error)
	post        func(accountID string) (*PostingOutcome, error)
}

func (c *fakeCalculator) enter(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight++
	c.maxInFlight = max(c.maxInFlight, c.inFlight)
	c.calls = append(c.calls, accountID)
	c.log = append(c.log, "start:"+accountID)
}

func (c *fakeCalculator) exit(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	c.log = append(c.log, "end:"+accountID)
}

func (c *fakeCalculator) CalculateDailyInterest(ctx context.Context, accountID string) (*AccrualOutcome, error) {
	c.enter(accountID)
	defer c.exit(accountID)
	time.Sleep(c.delay)
	if c.accrue != nil {
		return c.accrue(accountID)
	}
	return &AccrualOutcome{Success: true, InterestCalculated: 100}, nil
}

func (c *fakeCalculator) PostInterest(ctx context.Context, accountID string) (*PostingOutcome, error) {
	c.enter(accountID)
	defer c.exit(accountID)
	time.Sleep(c.delay)
	if c.post != nil {
		return c.post(accountID)
	}
	return &PostingOutcome{Success: true, InterestPosted: 1000, TaxAmount: 100}, nil
}

func (c *fakeCalculator) snapshot() (calls []string, log []string, maxInFlight int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls), slices.Clone(c.log), c.maxInFlight
}

func testAccount(id string) *models.Account {
	return &models.Account{
		ID:               id,
		AccountNumber:    "ACC-" + id,
		AccountType:      "SAVINGS",
		Status:           models.AccountStateActive,
		AccrualFrequency: models.FrequencyDaily,
		PostingFrequency: models.FrequencyMonthly,
	}
}

func testConfig(jobType models.JobType, batchSize, parallelThreads int) *models.JobConfig {
	return &models.JobConfig{
		JobType:         jobType,
		BatchSize:       batchSize,
		MaxRetries:      3,
		ParallelThreads: parallelThreads,
		Enabled:         true,
		AccountTypes:    []string{"SAVINGS"},
		Parameters:      map[string]any{},
	}
}

// newTestEngine builds an engine on a fake store with a fixed clock
func newTestEngine(store *fakeStore, calc CalculationEngine, now time.Time) *Engine {
	engine := NewEngine(store, calc, nil)
	engine.now = func() time.Time { return now }
	return engine
}
