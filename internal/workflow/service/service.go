// Package service implements the review-pipeline engine. Every state change
// funnels through Transition, which enforces a fixed check order: the
// document must exist, the actor must be authorized, required inputs must be
// present, the source state must permit the action, and finally the revision
// token must still match at commit. A failure at any step leaves zero side
// effects behind.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"examflow/internal/directory"
	"examflow/internal/feedback"
	"examflow/internal/notification"
	"examflow/internal/platform/metrics"
	"examflow/internal/version"
	"examflow/internal/workflow/models"
	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
	"examflow/pkg/platform/sentinel"
	"examflow/pkg/requestcontext"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document, expectedRevision int64) error
	ListByState(ctx context.Context, state models.State, dept *id.DepartmentID) ([]*models.Document, error)
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Document, error)
}

type VersionStore interface {
	Append(ctx context.Context, v *version.Version) error
	ListByDocument(ctx context.Context, docID id.DocumentID) ([]*version.Version, error)
	Find(ctx context.Context, docID id.DocumentID, number int) (*version.Version, error)
}

type FeedbackStore interface {
	Append(ctx context.Context, fb *feedback.Feedback) error
	ListByDocument(ctx context.Context, docID id.DocumentID) ([]*feedback.Feedback, error)
}

// Directory resolves actors to roles and departments to approvers.
type Directory interface {
	GetUser(ctx context.Context, userID id.UserID) (*directory.User, error)
	ApproverFor(ctx context.Context, deptID id.DepartmentID) (id.UserID, error)
}

// Notifier dispatches messages after a transition commits. Delivery is best
// effort and its failures never surface to the committing caller.
type Notifier interface {
	Enqueue(ctx context.Context, recipient id.UserID, docID id.DocumentID, typ notification.Type, message string) error
}

type Service struct {
	docs      DocumentStore
	versions  VersionStore
	feedback  FeedbackStore
	directory Directory
	notifier  Notifier
	txRunner  TxRunner
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithTxRunner(r TxRunner) Option {
	return func(s *Service) {
		s.txRunner = r
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(docs DocumentStore, versions VersionStore, fb FeedbackStore, dir Directory, opts ...Option) *Service {
	s := &Service{
		docs:      docs,
		versions:  versions,
		feedback:  fb,
		directory: dir,
		txRunner:  passthroughTx{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDocument registers a new draft and its first version as one atomic
// unit. The owner's department binds the document for first-stage routing.
func (s *Service) CreateDocument(ctx context.Context, ownerID id.UserID, title, description string, initial *models.NewVersionPayload) (*models.Document, error) {
	owner, err := s.directory.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.DepartmentID == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "document owner has no department")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	doc, err := models.NewDocument(id.DocumentID(uuid.New()), title, description, ownerID, *owner.DepartmentID, now)
	if err != nil {
		return nil, err
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.docs.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return s.versions.Append(ctx, &version.Version{
			DocumentID:     doc.ID,
			VersionNumber:  doc.CurrentVersion,
			ContentLocator: initial.ContentLocator,
			KeyHandle:      initial.KeyHandle,
			UploadedBy:     ownerID,
			Description:    initial.Description,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create document")
	}

	if s.metrics != nil {
		s.metrics.DocumentsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "document created",
		slog.String("document_id", doc.ID.String()),
		slog.String("owner_id", ownerID.String()))
	return doc, nil
}

// Transition attempts one state change. See the package comment for the
// check order; the returned error's code tells the caller which check
// failed.
func (s *Service) Transition(ctx context.Context, req models.TransitionRequest) (*models.TransitionResult, error) {
	result, err := s.transition(ctx, req)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementTransitionCommitted(req.Action.String())
	}
	return result, nil
}

func (s *Service) transition(ctx context.Context, req models.TransitionRequest) (*models.TransitionResult, error) {
	rule, ok := models.RuleFor(req.Action)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown workflow action: "+req.Action.String())
	}

	doc, err := s.getDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, doc, rule.Actor, req.ActorID); err != nil {
		return nil, err
	}
	if err := req.ValidateInputs(rule); err != nil {
		return nil, err
	}
	if err := doc.CanApply(req.Action); err != nil {
		return nil, err
	}
	if req.ExpectedRevision != doc.Revision {
		if s.metrics != nil {
			s.metrics.TransitionConflicts.Inc()
		}
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"document revision has moved on: expected %d, now %d", req.ExpectedRevision, doc.Revision)
	}

	now := requestcontext.Now(ctx)
	mutated := *doc
	mutated.ApplyTransition(req.Action, now)

	result := &models.TransitionResult{
		NewState:    mutated.State,
		NewRevision: mutated.Revision,
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.docs.Update(ctx, &mutated, doc.Revision); err != nil {
			return err
		}
		if req.Action == models.ActionUploadNewVersion {
			result.VersionNumber = mutated.CurrentVersion
			if err := s.versions.Append(ctx, &version.Version{
				DocumentID:     doc.ID,
				VersionNumber:  mutated.CurrentVersion,
				ContentLocator: req.NewVersion.ContentLocator,
				KeyHandle:      req.NewVersion.KeyHandle,
				UploadedBy:     req.ActorID,
				Description:    req.NewVersion.Description,
				CreatedAt:      now,
			}); err != nil {
				return fmt.Errorf("append version: %w", err)
			}
		}
		if fb := s.feedbackFor(ctx, doc, req); fb != nil {
			if err := s.feedback.Append(ctx, fb); err != nil {
				return fmt.Errorf("append feedback: %w", err)
			}
			result.FeedbackID = &fb.ID
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.TransitionConflicts.Inc()
			}
			return nil, dErrors.New(dErrors.CodeConflict, "document was modified concurrently, re-read and retry")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "commit transition")
	}

	s.logger.InfoContext(ctx, "transition committed",
		slog.String("document_id", doc.ID.String()),
		slog.String("action", req.Action.String()),
		slog.String("from", doc.State.String()),
		slog.String("to", mutated.State.String()),
		slog.Int64("revision", mutated.Revision))

	s.notifyAfterCommit(ctx, doc, &mutated, req)
	return result, nil
}

// authorize resolves the acting user and checks them against the rule's
// required actor. Runs before state validation so an unauthorized caller
// learns nothing about where the document sits in the pipeline.
func (s *Service) authorize(ctx context.Context, doc *models.Document, kind models.ActorKind, actorID id.UserID) error {
	actor, err := s.directory.GetUser(ctx, actorID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "actor is not a registered user")
		}
		return err
	}

	switch kind {
	case models.ActorOwner:
		if doc.OwnerID != actorID {
			return dErrors.New(dErrors.CodeForbidden, "only the document owner may perform this action")
		}
	case models.ActorDeptApprover:
		if actor.Role != id.RoleDeptApprover {
			return dErrors.New(dErrors.CodeForbidden, "department approver role required")
		}
		approver, err := s.directory.ApproverFor(ctx, doc.DepartmentID)
		if err != nil || approver != actorID {
			return dErrors.New(dErrors.CodeForbidden, "only the department's bound approver may perform this action")
		}
	case models.ActorFinalApprover:
		if actor.Role != id.RoleFinalApprover {
			return dErrors.New(dErrors.CodeForbidden, "final approver role required")
		}
	default:
		return dErrors.Newf(dErrors.CodeInternal, "unknown actor kind %q", kind)
	}
	return nil
}

// feedbackFor builds the ledger entry a transition leaves behind. Rejections
// always record one; approvals record one only when the reviewer wrote
// comments. Everything else is silent.
func (s *Service) feedbackFor(ctx context.Context, doc *models.Document, req models.TransitionRequest) *feedback.Feedback {
	var outcome feedback.Outcome
	switch req.Action {
	case models.ActionDeptReject, models.ActionFinalReject:
		outcome = feedback.OutcomeRejected
	case models.ActionDeptApprove, models.ActionFinalApprove:
		if req.Comments == "" {
			return nil
		}
		outcome = feedback.OutcomeApproved
	default:
		return nil
	}

	role := id.RoleDeptApprover
	if req.Action == models.ActionFinalApprove || req.Action == models.ActionFinalReject {
		role = id.RoleFinalApprover
	}
	fb, err := feedback.New(
		id.FeedbackID(uuid.New()),
		doc.ID,
		doc.CurrentVersion,
		req.ActorID,
		role,
		outcome,
		req.Comments,
		requestcontext.Now(ctx),
	)
	if err != nil {
		// Inputs were validated before commit; reaching here is a bug.
		s.logger.ErrorContext(ctx, "feedback construction failed",
			slog.String("document_id", doc.ID.String()),
			slog.String("error", err.Error()))
		return nil
	}
	return fb
}

// notifyAfterCommit fans out messages per the committed action. Uploads are
// silent. Enqueue failures are logged and dropped; the transition already
// committed and must not be rolled back over messaging.
func (s *Service) notifyAfterCommit(ctx context.Context, before, after *models.Document, req models.TransitionRequest) {
	if s.notifier == nil {
		return
	}

	enqueue := func(recipient id.UserID, typ notification.Type, message string) {
		if err := s.notifier.Enqueue(ctx, recipient, after.ID, typ, message); err != nil {
			s.logger.WarnContext(ctx, "notification enqueue failed",
				slog.String("document_id", after.ID.String()),
				slog.String("recipient_id", recipient.String()),
				slog.String("error", err.Error()))
		}
	}

	switch req.Action {
	case models.ActionSubmitForReview:
		approver, err := s.directory.ApproverFor(ctx, after.DepartmentID)
		if err != nil {
			s.logger.WarnContext(ctx, "no approver to notify for submission",
				slog.String("document_id", after.ID.String()),
				slog.String("error", err.Error()))
			return
		}
		enqueue(approver, notification.TypeReviewRequest,
			fmt.Sprintf("%q is awaiting your review", after.Title))
	case models.ActionDeptApprove:
		enqueue(before.OwnerID, notification.TypeApproval,
			fmt.Sprintf("%q passed department review", after.Title))
	case models.ActionDeptReject, models.ActionFinalReject:
		enqueue(before.OwnerID, notification.TypeRejection,
			fmt.Sprintf("%q was returned: %s", after.Title, req.Comments))
	case models.ActionFinalApprove:
		enqueue(before.OwnerID, notification.TypeApproval,
			fmt.Sprintf("%q received final approval", after.Title))
		if approver, err := s.directory.ApproverFor(ctx, after.DepartmentID); err == nil {
			enqueue(approver, notification.TypeInfo,
				fmt.Sprintf("%q received final approval", after.Title))
		}
	}
}

// GetDocument returns a document the actor is allowed to see: owners see
// their own, reviewers see everything.
func (s *Service) GetDocument(ctx context.Context, docID id.DocumentID, actorID id.UserID) (*models.Document, error) {
	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, doc, actorID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) authorizeRead(ctx context.Context, doc *models.Document, actorID id.UserID) error {
	if doc.OwnerID == actorID {
		return nil
	}
	actor, err := s.directory.GetUser(ctx, actorID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "actor is not a registered user")
		}
		return err
	}
	if actor.Role == id.RoleDeptApprover || actor.Role == id.RoleFinalApprover {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "document belongs to another owner")
}

// ListPendingFor returns the actor's review queue, longest waiting first.
// Department approvers see their department's first-stage queue; final
// approvers see the institution-wide second stage.
func (s *Service) ListPendingFor(ctx context.Context, actorID id.UserID) ([]*models.Document, error) {
	actor, err := s.directory.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case id.RoleDeptApprover:
		if actor.DepartmentID == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "approver has no department binding")
		}
		docs, err := s.docs.ListByState(ctx, models.StatePendingDeptReview, actor.DepartmentID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending documents")
		}
		return docs, nil
	case id.RoleFinalApprover:
		docs, err := s.docs.ListByState(ctx, models.StatePendingFinalReview, nil)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending documents")
		}
		return docs, nil
	default:
		return nil, dErrors.New(dErrors.CodeForbidden, "no review queue for this role")
	}
}

// ListForOwner returns every document the owner originated, newest first.
func (s *Service) ListForOwner(ctx context.Context, ownerID id.UserID) ([]*models.Document, error) {
	docs, err := s.docs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list owner documents")
	}
	return docs, nil
}

// GetVersionHistory returns the document's versions oldest first.
func (s *Service) GetVersionHistory(ctx context.Context, docID id.DocumentID, actorID id.UserID) ([]*version.Version, error) {
	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, doc, actorID); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByDocument(ctx, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list versions")
	}
	return versions, nil
}

// GetVersion returns a single version for a document the actor may read.
func (s *Service) GetVersion(ctx context.Context, docID id.DocumentID, number int, actorID id.UserID) (*version.Version, error) {
	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, doc, actorID); err != nil {
		return nil, err
	}
	v, err := s.versions.Find(ctx, docID, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "version not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find version")
	}
	return v, nil
}

// GetFeedback returns the document's feedback ledger newest first.
func (s *Service) GetFeedback(ctx context.Context, docID id.DocumentID, actorID id.UserID) ([]*feedback.Feedback, error) {
	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, doc, actorID); err != nil {
		return nil, err
	}
	entries, err := s.feedback.ListByDocument(ctx, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list feedback")
	}
	return entries, nil
}

func (s *Service) getDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find document")
	}
	return doc, nil
}

func (s *Service) recordRejection(err error) {
	if s.metrics == nil {
		return
	}
	// Conflicts have their own counter, incremented at the commit site.
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeConflict {
		return
	}
	s.metrics.IncrementTransitionRejected(string(code))
}
