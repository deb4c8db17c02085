package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"examflow/internal/directory"
	"examflow/internal/feedback"
	"examflow/internal/notification"
	"examflow/internal/version"
	"examflow/internal/workflow/models"
	workflowstore "examflow/internal/workflow/store"
	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
	"examflow/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	service       *Service
	directory     *directory.Service
	notifications *notification.InMemoryStore
	now           time.Time

	dept          *directory.Department
	owner         *directory.User
	otherLecturer *directory.User
	deptApprover  *directory.User
	finalApprover *directory.User
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	dirStore := directory.NewInMemory()
	s.directory = directory.NewService(dirStore)
	s.notifications = notification.NewInMemory()
	dispatcher := notification.NewDispatcher(s.notifications)

	s.service = NewService(
		workflowstore.NewInMemory(),
		version.NewInMemory(),
		feedback.NewInMemory(),
		s.directory,
		WithNotifier(dispatcher),
	)

	ctx := s.ctx()
	var err error
	s.dept, err = s.directory.CreateDepartment(ctx, "Computer Science", "CS")
	s.Require().NoError(err)

	s.owner, err = s.directory.RegisterUser(ctx, "Ada Nwosu", "ada@uni.example",
		id.RoleLecturer, &s.dept.ID)
	s.Require().NoError(err)
	s.otherLecturer, err = s.directory.RegisterUser(ctx, "Ben Tran", "ben@uni.example",
		id.RoleLecturer, &s.dept.ID)
	s.Require().NoError(err)
	s.deptApprover, err = s.directory.RegisterUser(ctx, "Hosea Park", "hos@uni.example",
		id.RoleDeptApprover, &s.dept.ID)
	s.Require().NoError(err)
	s.finalApprover, err = s.directory.RegisterUser(ctx, "Exam Unit", "examunit@uni.example",
		id.RoleFinalApprover, nil)
	s.Require().NoError(err)

	_, err = s.directory.AssignApprover(ctx, s.dept.ID, s.deptApprover.ID)
	s.Require().NoError(err)
}

func (s *EngineSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *EngineSuite) tick() context.Context {
	s.now = s.now.Add(time.Minute)
	return s.ctx()
}

func (s *EngineSuite) payload() *models.NewVersionPayload {
	return &models.NewVersionPayload{
		ContentLocator: "mem://" + uuid.NewString(),
		KeyHandle:      "kek/2026/cs101",
		Description:    "draft",
	}
}

func (s *EngineSuite) createDocument() *models.Document {
	doc, err := s.service.CreateDocument(s.tick(), s.owner.ID,
		"CS101 Final Exam", "Spring 2026 final", s.payload())
	s.Require().NoError(err)
	return doc
}

func (s *EngineSuite) transition(actor id.UserID, doc *models.Document, action models.Action, revision int64, mutate ...func(*models.TransitionRequest)) (*models.TransitionResult, error) {
	req := models.TransitionRequest{
		DocumentID:       doc.ID,
		Action:           action,
		ActorID:          actor,
		ExpectedRevision: revision,
	}
	for _, fn := range mutate {
		fn(&req)
	}
	return s.service.Transition(s.tick(), req)
}

func withComments(comments string) func(*models.TransitionRequest) {
	return func(req *models.TransitionRequest) {
		req.Comments = comments
	}
}

func (s *EngineSuite) withPayload() func(*models.TransitionRequest) {
	p := s.payload()
	return func(req *models.TransitionRequest) {
		req.NewVersion = p
	}
}

func (s *EngineSuite) TestCreateDocument() {
	s.Run("starts in draft at version one", func() {
		doc := s.createDocument()
		s.Equal(models.StateDraft, doc.State)
		s.Equal(1, doc.CurrentVersion)
		s.Equal(int64(1), doc.Revision)
		s.Equal(s.dept.ID, doc.DepartmentID)

		history, err := s.service.GetVersionHistory(s.ctx(), doc.ID, s.owner.ID)
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.Equal(1, history[0].VersionNumber)
		s.Equal(s.owner.ID, history[0].UploadedBy)
	})

	s.Run("requires an initial payload", func() {
		_, err := s.service.CreateDocument(s.tick(), s.owner.ID, "MATH200 Midterm", "", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an unknown owner", func() {
		_, err := s.service.CreateDocument(s.tick(), id.UserID(uuid.New()),
			"Ghost Exam", "", s.payload())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("creation is silent", func() {
		before, err := s.notifications.ListByRecipient(s.ctx(), s.deptApprover.ID, false)
		s.Require().NoError(err)
		s.createDocument()
		after, err := s.notifications.ListByRecipient(s.ctx(), s.deptApprover.ID, false)
		s.Require().NoError(err)
		s.Len(after, len(before))
	})
}

func (s *EngineSuite) TestFullApprovalPath() {
	doc := s.createDocument()

	res, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 1)
	s.Require().NoError(err)
	s.Equal(models.StatePendingDeptReview, res.NewState)
	s.Equal(int64(2), res.NewRevision)

	res, err = s.transition(s.deptApprover.ID, doc, models.ActionDeptApprove, 2)
	s.Require().NoError(err)
	s.Equal(models.StatePendingFinalReview, res.NewState)

	res, err = s.transition(s.finalApprover.ID, doc, models.ActionFinalApprove, 3)
	s.Require().NoError(err)
	s.Equal(models.StateApproved, res.NewState)
	s.Equal(int64(4), res.NewRevision)

	final, err := s.service.GetDocument(s.ctx(), doc.ID, s.owner.ID)
	s.Require().NoError(err)
	s.Equal(models.StateApproved, final.State)
	s.Equal(1, final.CurrentVersion)
}

func (s *EngineSuite) TestAuthorizationBeforeStateValidation() {
	doc := s.createDocument()

	// Wrong actor on a wrong-state document must read as forbidden, not as
	// an invalid transition, so outsiders cannot probe pipeline position.
	_, err := s.transition(s.otherLecturer.ID, doc, models.ActionDeptApprove, 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *EngineSuite) TestAuthorization() {
	doc := s.createDocument()

	s.Run("only the owner may submit", func() {
		_, err := s.transition(s.otherLecturer.ID, doc, models.ActionSubmitForReview, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown actor is forbidden", func() {
		_, err := s.transition(id.UserID(uuid.New()), doc, models.ActionSubmitForReview, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 1)
	s.Require().NoError(err)

	s.Run("an approver from another department cannot review", func() {
		otherDept, err := s.directory.CreateDepartment(s.ctx(), "History", "HIS")
		s.Require().NoError(err)
		outsider, err := s.directory.RegisterUser(s.ctx(), "Nia Wolf", "nia@uni.example",
			id.RoleDeptApprover, &otherDept.ID)
		s.Require().NoError(err)

		_, err = s.transition(outsider.ID, doc, models.ActionDeptApprove, 2)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("a dept approver cannot final-approve", func() {
		_, err := s.transition(s.deptApprover.ID, doc, models.ActionDeptApprove, 2)
		s.Require().NoError(err)

		_, err = s.transition(s.deptApprover.ID, doc, models.ActionFinalApprove, 3)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *EngineSuite) TestRejectionRequiresComments() {
	doc := s.createDocument()
	_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 1)
	s.Require().NoError(err)

	_, err = s.transition(s.deptApprover.ID, doc, models.ActionDeptReject, 2)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	// The failed attempt left no trace.
	current, err := s.service.GetDocument(s.ctx(), doc.ID, s.owner.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePendingDeptReview, current.State)
	s.Equal(int64(2), current.Revision)

	ledger, err := s.service.GetFeedback(s.ctx(), doc.ID, s.owner.ID)
	s.Require().NoError(err)
	s.Empty(ledger)
}

func (s *EngineSuite) TestRejectionAndResubmission() {
	doc := s.createDocument()
	_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 1)
	s.Require().NoError(err)

	res, err := s.transition(s.deptApprover.ID, doc, models.ActionDeptReject, 2,
		withComments("section 3 has no marking rubric"))
	s.Require().NoError(err)
	s.Equal(models.StateNeedsRevision, res.NewState)
	s.Require().NotNil(res.FeedbackID)

	s.Run("rejection writes a ledger entry", func() {
		ledger, err := s.service.GetFeedback(s.ctx(), doc.ID, s.owner.ID)
		s.Require().NoError(err)
		s.Require().Len(ledger, 1)
		s.Equal(feedback.OutcomeRejected, ledger[0].Outcome)
		s.Equal("section 3 has no marking rubric", ledger[0].Comments)
		s.Equal(s.deptApprover.ID, ledger[0].ReviewerID)
	})

	s.Run("owner resubmits from needs revision without a new upload", func() {
		res, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 3)
		s.Require().NoError(err)
		s.Equal(models.StatePendingDeptReview, res.NewState)

		current, err := s.service.GetDocument(s.ctx(), doc.ID, s.owner.ID)
		s.Require().NoError(err)
		s.Equal(1, current.CurrentVersion)
	})
}

func (s *EngineSuite) TestFinalRejectReturnsToOwner() {
	doc := s.createDocument()
	_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 1)
	s.Require().NoError(err)
	_, err = s.transition(s.deptApprover.ID, doc, models.ActionDeptApprove, 2)
	s.Require().NoError(err)

	res, err := s.transition(s.finalApprover.ID, doc, models.ActionFinalReject, 3,
		withComments("duration missing from the cover page"))
	s.Require().NoError(err)
	s.Equal(models.StateNeedsRevision, res.NewState)

	ledger, err := s.service.GetFeedback(s.ctx(), doc.ID, s.owner.ID)
	s.Require().NoError(err)
	s.Require().Len(ledger, 1)
	s.Equal(id.RoleFinalApprover, ledger[0].ReviewerRole)
}

func (s *EngineSuite) TestUploadNewVersion() {
	doc := s.createDocument()

	s.Run("upload from draft advances the version", func() {
		res, err := s.transition(s.owner.ID, doc, models.ActionUploadNewVersion, 1, s.withPayload())
		s.Require().NoError(err)
		s.Equal(models.StateDraft, res.NewState)
		s.Equal(2, res.VersionNumber)
	})

	s.Run("upload requires a payload", func() {
		_, err := s.transition(s.owner.ID, doc, models.ActionUploadNewVersion, 2)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("upload is blocked while under review", func() {
		_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 2)
		s.Require().NoError(err)

		_, err = s.transition(s.owner.ID, doc, models.ActionUploadNewVersion, 3, s.withPayload())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("upload onto an approved document restarts the cycle", func() {
		_, err := s.transition(s.deptApprover.ID, doc, models.ActionDeptApprove, 3)
		s.Require().NoError(err)
		_, err = s.transition(s.finalApprover.ID, doc, models.ActionFinalApprove, 4)
		s.Require().NoError(err)

		res, err := s.transition(s.owner.ID, doc, models.ActionUploadNewVersion, 5, s.withPayload())
		s.Require().NoError(err)
		s.Equal(models.StateDraft, res.NewState)
		s.Equal(3, res.VersionNumber)

		history, err := s.service.GetVersionHistory(s.ctx(), doc.ID, s.owner.ID)
		s.Require().NoError(err)
		s.Require().Len(history, 3)
		for i, v := range history {
			s.Equal(i+1, v.VersionNumber)
		}
	})
}

func (s *EngineSuite) TestStaleRevisionConflict() {
	s.Run("stale token on a state-valid replay conflicts", func() {
		doc := s.createDocument()

		_, err := s.transition(s.owner.ID, doc, models.ActionUploadNewVersion, 1, s.withPayload())
		s.Require().NoError(err)

		// The document is back in draft, so the action itself is still
		// permitted; only the token is stale.
		_, err = s.transition(s.owner.ID, doc, models.ActionUploadNewVersion, 1, s.withPayload())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		// The losing attempt left zero side effects.
		current, err := s.service.GetDocument(s.ctx(), doc.ID, s.owner.ID)
		s.Require().NoError(err)
		s.Equal(models.StateDraft, current.State)
		s.Equal(int64(2), current.Revision)
		s.Equal(2, current.CurrentVersion)

		history, err := s.service.GetVersionHistory(s.ctx(), doc.ID, s.owner.ID)
		s.Require().NoError(err)
		s.Len(history, 2)
	})

	s.Run("state check runs before the revision comparison", func() {
		doc := s.createDocument()

		_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 1)
		s.Require().NoError(err)

		// Replaying the pre-submit upload is both stale and no longer
		// permitted from the current state; the state check wins.
		_, err = s.transition(s.owner.ID, doc, models.ActionUploadNewVersion, 1, s.withPayload())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *EngineSuite) TestUnknownDocument() {
	_, err := s.transition(s.owner.ID,
		&models.Document{ID: id.DocumentID(uuid.New())}, models.ActionSubmitForReview, 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestNotificationFanOut() {
	unreadFor := func(userID id.UserID) []*notification.Notification {
		out, err := s.notifications.ListByRecipient(s.ctx(), userID, true)
		s.Require().NoError(err)
		return out
	}

	doc := s.createDocument()

	s.Run("submission notifies the department approver", func() {
		_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 1)
		s.Require().NoError(err)

		got := unreadFor(s.deptApprover.ID)
		s.Require().Len(got, 1)
		s.Equal(notification.TypeReviewRequest, got[0].Type)
		s.Equal(doc.ID, got[0].DocumentID)
	})

	s.Run("rejection notifies the owner with the reason", func() {
		_, err := s.transition(s.deptApprover.ID, doc, models.ActionDeptReject, 2,
			withComments("needs a formula sheet"))
		s.Require().NoError(err)

		got := unreadFor(s.owner.ID)
		s.Require().Len(got, 1)
		s.Equal(notification.TypeRejection, got[0].Type)
		s.Contains(got[0].Message, "needs a formula sheet")
	})

	s.Run("upload is silent", func() {
		_, err := s.transition(s.owner.ID, doc, models.ActionUploadNewVersion, 3, s.withPayload())
		s.Require().NoError(err)
		s.Len(unreadFor(s.owner.ID), 1)
		s.Len(unreadFor(s.deptApprover.ID), 1)
	})

	s.Run("final approval notifies owner and department approver", func() {
		_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 4)
		s.Require().NoError(err)
		_, err = s.transition(s.deptApprover.ID, doc, models.ActionDeptApprove, 5)
		s.Require().NoError(err)
		_, err = s.transition(s.finalApprover.ID, doc, models.ActionFinalApprove, 6)
		s.Require().NoError(err)

		owner := unreadFor(s.owner.ID)
		s.Require().Len(owner, 3)
		s.Equal(notification.TypeApproval, owner[0].Type)

		approver := unreadFor(s.deptApprover.ID)
		s.Require().Len(approver, 3)
		s.Equal(notification.TypeInfo, approver[0].Type)
	})
}

func (s *EngineSuite) TestApprovalWithCommentsWritesFeedback() {
	doc := s.createDocument()
	_, err := s.transition(s.owner.ID, doc, models.ActionSubmitForReview, 1)
	s.Require().NoError(err)

	res, err := s.transition(s.deptApprover.ID, doc, models.ActionDeptApprove, 2,
		withComments("well structured"))
	s.Require().NoError(err)
	s.Require().NotNil(res.FeedbackID)

	ledger, err := s.service.GetFeedback(s.ctx(), doc.ID, s.owner.ID)
	s.Require().NoError(err)
	s.Require().Len(ledger, 1)
	s.Equal(feedback.OutcomeApproved, ledger[0].Outcome)
}

func (s *EngineSuite) TestReviewQueues() {
	first := s.createDocument()
	second := s.createDocument()
	_, err := s.transition(s.owner.ID, first, models.ActionSubmitForReview, 1)
	s.Require().NoError(err)
	_, err = s.transition(s.owner.ID, second, models.ActionSubmitForReview, 1)
	s.Require().NoError(err)

	s.Run("dept approver sees the first-stage queue oldest first", func() {
		queue, err := s.service.ListPendingFor(s.ctx(), s.deptApprover.ID)
		s.Require().NoError(err)
		s.Require().Len(queue, 2)
		s.Equal(first.ID, queue[0].ID)
		s.Equal(second.ID, queue[1].ID)
	})

	s.Run("final approver queue fills after dept approval", func() {
		queue, err := s.service.ListPendingFor(s.ctx(), s.finalApprover.ID)
		s.Require().NoError(err)
		s.Empty(queue)

		_, err = s.transition(s.deptApprover.ID, first, models.ActionDeptApprove, 2)
		s.Require().NoError(err)

		queue, err = s.service.ListPendingFor(s.ctx(), s.finalApprover.ID)
		s.Require().NoError(err)
		s.Require().Len(queue, 1)
		s.Equal(first.ID, queue[0].ID)
	})

	s.Run("lecturers have no review queue", func() {
		_, err := s.service.ListPendingFor(s.ctx(), s.owner.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("owners list their own documents", func() {
		docs, err := s.service.ListForOwner(s.ctx(), s.owner.ID)
		s.Require().NoError(err)
		s.Len(docs, 2)
	})
}

func (s *EngineSuite) TestReadVisibility() {
	doc := s.createDocument()

	s.Run("another lecturer cannot read the document", func() {
		_, err := s.service.GetDocument(s.ctx(), doc.ID, s.otherLecturer.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("reviewers can read any document", func() {
		_, err := s.service.GetDocument(s.ctx(), doc.ID, s.deptApprover.ID)
		s.Require().NoError(err)
		_, err = s.service.GetDocument(s.ctx(), doc.ID, s.finalApprover.ID)
		s.Require().NoError(err)
	})

	s.Run("visibility applies to history and feedback too", func() {
		_, err := s.service.GetVersionHistory(s.ctx(), doc.ID, s.otherLecturer.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		_, err = s.service.GetFeedback(s.ctx(), doc.ID, s.otherLecturer.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
