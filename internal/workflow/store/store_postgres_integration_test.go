//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"examflow/internal/version"
	"examflow/internal/workflow/models"
	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
	txcontext "examflow/pkg/platform/tx"
	"examflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *containers.PostgresContainer
	store     *PostgresStore
	versions  *version.PostgresStore
	ctx       context.Context
	now       time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.container = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.container.DB)
	s.versions = version.NewPostgres(s.container.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	err := s.container.TruncateTables(s.ctx, "document_versions", "documents")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newDocument() *models.Document {
	doc, err := models.NewDocument(
		id.DocumentID(uuid.New()),
		"CS101 Final Exam",
		"Spring 2026 final",
		id.UserID(uuid.New()),
		id.DepartmentID(uuid.New()),
		s.now,
	)
	s.Require().NoError(err)
	return doc
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	doc := s.newDocument()
	s.Require().NoError(s.store.Create(s.ctx, doc))

	found, err := s.store.FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.Title, found.Title)
	s.Equal(models.StateDraft, found.State)
	s.Equal(int64(1), found.Revision)
	s.True(found.CreatedAt.Equal(doc.CreatedAt))

	s.Require().ErrorIs(s.store.Create(s.ctx, doc), sentinel.ErrConflict)

	_, err = s.store.FindByID(s.ctx, id.DocumentID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateRevisionGuard() {
	doc := s.newDocument()
	s.Require().NoError(s.store.Create(s.ctx, doc))

	mutated := *doc
	mutated.ApplyTransition(models.ActionSubmitForReview, s.now.Add(time.Minute))
	s.Require().NoError(s.store.Update(s.ctx, &mutated, doc.Revision))

	s.Run("stale token conflicts", func() {
		again := *doc
		again.ApplyTransition(models.ActionSubmitForReview, s.now.Add(time.Minute))
		err := s.store.Update(s.ctx, &again, doc.Revision)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing row is not found", func() {
		ghost := s.newDocument()
		err := s.store.Update(s.ctx, ghost, 1)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	found, err := s.store.FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePendingDeptReview, found.State)
	s.Equal(int64(2), found.Revision)
}

func (s *PostgresStoreSuite) TestTransactionJoinsStores() {
	doc := s.newDocument()
	s.Require().NoError(s.store.Create(s.ctx, doc))

	newVersion := &version.Version{
		DocumentID:     doc.ID,
		VersionNumber:  2,
		ContentLocator: "mem://cs101-v2",
		KeyHandle:      "kek/2026/cs101",
		UploadedBy:     doc.OwnerID,
		CreatedAt:      s.now.Add(time.Minute),
	}

	s.Run("rollback leaves neither the state change nor the version row", func() {
		tx, err := s.container.DB.BeginTx(s.ctx, nil)
		s.Require().NoError(err)
		txCtx := txcontext.WithTx(s.ctx, tx)

		mutated := *doc
		mutated.ApplyTransition(models.ActionUploadNewVersion, s.now.Add(time.Minute))
		s.Require().NoError(s.store.Update(txCtx, &mutated, doc.Revision))
		s.Require().NoError(s.versions.Append(txCtx, newVersion))
		s.Require().NoError(tx.Rollback())

		found, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(int64(1), found.Revision)
		s.Equal(1, found.CurrentVersion)

		_, err = s.versions.Find(s.ctx, doc.ID, 2)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("commit lands both rows together", func() {
		tx, err := s.container.DB.BeginTx(s.ctx, nil)
		s.Require().NoError(err)
		txCtx := txcontext.WithTx(s.ctx, tx)

		mutated := *doc
		mutated.ApplyTransition(models.ActionUploadNewVersion, s.now.Add(time.Minute))
		s.Require().NoError(s.store.Update(txCtx, &mutated, doc.Revision))
		s.Require().NoError(s.versions.Append(txCtx, newVersion))
		s.Require().NoError(tx.Commit())

		found, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(2, found.CurrentVersion)

		stored, err := s.versions.Find(s.ctx, doc.ID, 2)
		s.Require().NoError(err)
		s.Equal("mem://cs101-v2", stored.ContentLocator)
	})
}

func (s *PostgresStoreSuite) TestListByState() {
	dept := id.DepartmentID(uuid.New())

	pending := s.newDocument()
	pending.DepartmentID = dept
	pending.ApplyTransition(models.ActionSubmitForReview, s.now)
	laterPending := s.newDocument()
	laterPending.DepartmentID = dept
	laterPending.ApplyTransition(models.ActionSubmitForReview, s.now.Add(time.Hour))
	draft := s.newDocument()
	draft.DepartmentID = dept
	for _, doc := range []*models.Document{pending, laterPending, draft} {
		s.Require().NoError(s.store.Create(s.ctx, doc))
	}

	docs, err := s.store.ListByState(s.ctx, models.StatePendingDeptReview, &dept)
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal(pending.ID, docs[0].ID)
	s.Equal(laterPending.ID, docs[1].ID)

	all, err := s.store.ListByState(s.ctx, models.StatePendingDeptReview, nil)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresStoreSuite) TestConcurrentUpdatesOneWinner() {
	doc := s.newDocument()
	s.Require().NoError(s.store.Create(s.ctx, doc))

	const writers = 8
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			mutated := *doc
			mutated.ApplyTransition(models.ActionSubmitForReview, s.now.Add(time.Minute))
			results <- s.store.Update(s.ctx, &mutated, doc.Revision)
		}()
	}

	var committed int
	for i := 0; i < writers; i++ {
		if err := <-results; err == nil {
			committed++
		} else {
			s.Require().True(errors.Is(err, sentinel.ErrConflict))
		}
	}
	s.Equal(1, committed)
}
