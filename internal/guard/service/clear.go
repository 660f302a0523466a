package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockguard/server/internal/guard"
	"github.com/stockguard/server/internal/guard/store"
)

// RequiredConfirmations is the length of each confirmation sequence. Five
// discrete calls per role is the friction that makes the protocol slow on
// purpose.
const RequiredConfirmations = 5

const resourceClearRequest = "clear_request"

// Snapshotter is the artifact producer Initiate depends on.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context) (string, error)
	CreateContentReport(ctx context.Context) (string, error)
}

// ClearService is the quorum state machine guarding store-wide erasure: an
// initiator drives five confirmations, then a separate authorizer drives
// five more, and only then does the destructive executor run. The fifth
// confirmation of each sequence re-verifies the confirming principal's own
// credential.
type ClearService struct {
	requests  store.ClearRequestStore
	snapshots Snapshotter
	executor  Executor
	verifier  CredentialVerifier
	audit     *AuditRecorder
	logger    *zap.Logger
}

func NewClearService(
	requests store.ClearRequestStore,
	snapshots Snapshotter,
	executor Executor,
	verifier CredentialVerifier,
	audit *AuditRecorder,
	logger *zap.Logger,
) *ClearService {
	return &ClearService{
		requests:  requests,
		snapshots: snapshots,
		executor:  executor,
		verifier:  verifier,
		audit:     audit,
		logger:    logger,
	}
}

// Initiate produces the recovery artifacts and, only if both succeed,
// creates a new pending request. On artifact failure nothing is persisted.
func (s *ClearService) Initiate(ctx context.Context, p guard.Principal) (store.ClearRequestRecord, error) {
	if !p.CanInitiate() {
		return store.ClearRequestRecord{}, ErrPermissionDenied
	}

	snapshotPath, err := s.snapshots.CreateSnapshot(ctx)
	if err != nil {
		return store.ClearRequestRecord{}, fmt.Errorf("%w: snapshot: %w", ErrArtifactGeneration, err)
	}
	reportPath, err := s.snapshots.CreateContentReport(ctx)
	if err != nil {
		return store.ClearRequestRecord{}, fmt.Errorf("%w: content report: %w", ErrArtifactGeneration, err)
	}

	now := time.Now().UTC()
	rec := store.ClearRequestRecord{
		ID:           uuid.NewString(),
		InitiatorID:  p.ID,
		Status:       store.StatusPending,
		SnapshotPath: snapshotPath,
		ReportPath:   reportPath,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.requests.Create(ctx, rec); err != nil {
		return store.ClearRequestRecord{}, fmt.Errorf("create clear request: %w", err)
	}

	s.audit.Record(ctx, &p, "clear_request.initiate", resourceClearRequest, rec.ID,
		fmt.Sprintf("snapshot=%s report=%s", snapshotPath, reportPath))
	s.logger.Info("clear request initiated",
		zap.String("request_id", rec.ID), zap.String("initiator", p.ID))
	return rec, nil
}

// ConfirmAsInitiator advances the first confirmation sequence by one. The
// fifth call must carry the initiator's own password; on mismatch the
// counter is left untouched.
func (s *ClearService) ConfirmAsInitiator(ctx context.Context, id string, p guard.Principal, password string) (store.ClearRequestRecord, error) {
	if !p.CanInitiate() {
		return store.ClearRequestRecord{}, ErrPermissionDenied
	}

	rec, err := s.getRequest(ctx, id)
	if err != nil {
		return store.ClearRequestRecord{}, err
	}
	if rec.Status != store.StatusPending {
		return store.ClearRequestRecord{}, ErrNotPending
	}
	if rec.InitiatorID != p.ID {
		return store.ClearRequestRecord{}, ErrNotInitiator
	}
	if rec.InitiatorConfirmations >= RequiredConfirmations {
		return store.ClearRequestRecord{}, ErrSequenceComplete
	}

	before := rec.InitiatorConfirmations
	if before == RequiredConfirmations-1 {
		if err := s.verifyFifthStep(ctx, p, id, password); err != nil {
			return store.ClearRequestRecord{}, err
		}
	}

	if err := s.requests.IncrementInitiatorConfirmations(ctx, id, before); err != nil {
		return store.ClearRequestRecord{}, s.mapConflict(err)
	}
	rec.InitiatorConfirmations = before + 1

	s.audit.Record(ctx, &p, "clear_request.confirm_initiator", resourceClearRequest, id,
		fmt.Sprintf("initiator_confirmations %d -> %d", before, before+1))
	return rec, nil
}

// CancelByInitiator terminates a pending request. Permitted even after the
// initiator sequence is complete and the request sits in the authorizer
// queue.
func (s *ClearService) CancelByInitiator(ctx context.Context, id string, p guard.Principal) (store.ClearRequestRecord, error) {
	if !p.CanInitiate() {
		return store.ClearRequestRecord{}, ErrPermissionDenied
	}

	rec, err := s.getRequest(ctx, id)
	if err != nil {
		return store.ClearRequestRecord{}, err
	}
	if rec.Status != store.StatusPending {
		return store.ClearRequestRecord{}, ErrNotPending
	}
	if rec.InitiatorID != p.ID {
		return store.ClearRequestRecord{}, ErrNotInitiator
	}

	if err := s.requests.SetStatus(ctx, id, store.StatusPending, store.StatusCancelled); err != nil {
		return store.ClearRequestRecord{}, s.mapConflict(err)
	}
	rec.Status = store.StatusCancelled

	s.audit.Record(ctx, &p, "clear_request.cancel", resourceClearRequest, id,
		fmt.Sprintf("cancelled at initiator_confirmations=%d authorizer_confirmations=%d",
			rec.InitiatorConfirmations, rec.AuthorizerConfirmations))
	return rec, nil
}

// ConfirmAsAuthorizer advances the second sequence by one. The fifth call
// re-verifies the authorizer's credential and, on success, synchronously
// runs the destructive executor. Executor failure leaves the request
// pending in an "authorized but not completed" condition with the error
// surfaced; there is no automatic remediation.
func (s *ClearService) ConfirmAsAuthorizer(ctx context.Context, id string, p guard.Principal, password string) (store.ClearRequestRecord, error) {
	if !p.CanAuthorize() {
		return store.ClearRequestRecord{}, ErrPermissionDenied
	}

	rec, err := s.getRequest(ctx, id)
	if err != nil {
		return store.ClearRequestRecord{}, err
	}
	if rec.Status != store.StatusPending {
		return store.ClearRequestRecord{}, ErrNotPending
	}
	if rec.InitiatorConfirmations < RequiredConfirmations {
		return store.ClearRequestRecord{}, ErrAwaitingInitiator
	}
	if rec.AuthorizerConfirmations >= RequiredConfirmations {
		return store.ClearRequestRecord{}, ErrSequenceComplete
	}

	before := rec.AuthorizerConfirmations
	if before == RequiredConfirmations-1 {
		if err := s.verifyFifthStep(ctx, p, id, password); err != nil {
			return store.ClearRequestRecord{}, err
		}
	}

	if err := s.requests.IncrementAuthorizerConfirmations(ctx, id, before); err != nil {
		return store.ClearRequestRecord{}, s.mapConflict(err)
	}
	rec.AuthorizerConfirmations = before + 1

	s.audit.Record(ctx, &p, "clear_request.confirm_authorizer", resourceClearRequest, id,
		fmt.Sprintf("authorizer_confirmations %d -> %d", before, before+1))

	if rec.AuthorizerConfirmations < RequiredConfirmations {
		return rec, nil
	}

	return s.execute(ctx, rec, p)
}

// RejectByAuthorizer terminates a fully initiator-confirmed request.
func (s *ClearService) RejectByAuthorizer(ctx context.Context, id string, p guard.Principal) (store.ClearRequestRecord, error) {
	if !p.CanAuthorize() {
		return store.ClearRequestRecord{}, ErrPermissionDenied
	}

	rec, err := s.getRequest(ctx, id)
	if err != nil {
		return store.ClearRequestRecord{}, err
	}
	if rec.Status != store.StatusPending {
		return store.ClearRequestRecord{}, ErrNotPending
	}
	if rec.InitiatorConfirmations < RequiredConfirmations {
		return store.ClearRequestRecord{}, ErrAwaitingInitiator
	}

	if err := s.requests.SetStatus(ctx, id, store.StatusPending, store.StatusRejected); err != nil {
		return store.ClearRequestRecord{}, s.mapConflict(err)
	}
	rec.Status = store.StatusRejected

	s.audit.Record(ctx, &p, "clear_request.reject", resourceClearRequest, id,
		fmt.Sprintf("rejected at authorizer_confirmations=%d", rec.AuthorizerConfirmations))
	return rec, nil
}

// PendingAuthorization returns the authorizer queue: pending requests whose
// initiator sequence is complete.
func (s *ClearService) PendingAuthorization(ctx context.Context, p guard.Principal) ([]store.ClearRequestRecord, error) {
	if !p.CanAuthorize() {
		return nil, ErrPermissionDenied
	}
	return s.requests.ListAwaitingAuthorizer(ctx)
}

// Get returns a single request. Authorizers see any request; an initiator
// sees only their own.
func (s *ClearService) Get(ctx context.Context, id string, p guard.Principal) (store.ClearRequestRecord, error) {
	rec, err := s.getRequest(ctx, id)
	if err != nil {
		return store.ClearRequestRecord{}, err
	}
	if !p.CanAuthorize() && rec.InitiatorID != p.ID {
		return store.ClearRequestRecord{}, ErrPermissionDenied
	}
	return rec, nil
}

func (s *ClearService) execute(ctx context.Context, rec store.ClearRequestRecord, p guard.Principal) (store.ClearRequestRecord, error) {
	result, err := s.executor.Execute(ctx)
	if err != nil {
		// Authorized but not completed: the request stays pending with a
		// full authorizer counter. Surfaced loudly, remediated by a human
		// with the retained snapshot.
		s.audit.Record(ctx, &p, "clear_request.execute_failed", resourceClearRequest, rec.ID, err.Error())
		s.logger.Error("destructive execution failed",
			zap.String("request_id", rec.ID), zap.Error(err))
		return rec, err
	}

	now := time.Now().UTC()
	if err := s.requests.Complete(ctx, rec.ID, now); err != nil {
		return rec, s.mapConflict(err)
	}
	rec.Status = store.StatusCompleted
	rec.CompletedAt = &now
	rec.UpdatedAt = now

	s.audit.Record(ctx, &p, "clear_request.complete", resourceClearRequest, rec.ID,
		fmt.Sprintf("cleared %d tables", len(result.Outcomes)))
	s.logger.Info("clear request completed", zap.String("request_id", rec.ID))
	return rec, nil
}

// verifyFifthStep enforces the credential checkpoint at the end of a
// confirmation sequence. Failure leaves the counter untouched because it
// runs before the increment.
func (s *ClearService) verifyFifthStep(ctx context.Context, p guard.Principal, id, password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if err := s.verifier.Verify(ctx, p.ID, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			s.audit.Record(ctx, &p, "clear_request.credential_rejected", resourceClearRequest, id, "")
		}
		return err
	}
	return nil
}

func (s *ClearService) getRequest(ctx context.Context, id string) (store.ClearRequestRecord, error) {
	rec, err := s.requests.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.ClearRequestRecord{}, ErrRequestNotFound
	}
	if err != nil {
		return store.ClearRequestRecord{}, fmt.Errorf("load clear request: %w", err)
	}
	return rec, nil
}

// mapConflict translates a store CAS miss into the caller-facing retry
// signal. Anything else passes through.
func (s *ClearService) mapConflict(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return ErrConcurrentUpdate
	}
	return err
}
