package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

func setupWorkflowDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"lesson_planners", "work_diaries"} {
		_, err = db.Exec(`
			CREATE TABLE ` + table + ` (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				author_id INTEGER NOT NULL,
				department TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL,
				payload TEXT NOT NULL DEFAULT '{}',
				status TEXT NOT NULL DEFAULT 'draft',
				submitted_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`)
		require.NoError(t, err)
	}
	_, err = db.Exec(`
		CREATE TABLE approval_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_type TEXT NOT NULL,
			doc_id INTEGER NOT NULL,
			decided_by INTEGER NOT NULL,
			decision TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	require.NoError(t, err)
	return db
}

type captureFeed struct {
	mu     sync.Mutex
	events []string
}

func (f *captureFeed) PublishChange(ctx context.Context, table, op string, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, table+":"+op)
}

func (f *captureFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func snapshotWithRoles(userID int64, dept string, roles ...string) *rbac.Snapshot {
	var depts []string
	if dept != "" {
		depts = []string{dept}
	}
	return &rbac.Snapshot{
		UserID:      userID,
		RoleNames:   roles,
		Departments: depts,
		Permissions: rbac.PermissionsFor(roles),
		Resolved:    true,
	}
}

type workflowEnv struct {
	store   *Store
	service *Service
	feed    *captureFeed
}

func setupWorkflow(t *testing.T) *workflowEnv {
	t.Helper()
	db := setupWorkflowDB(t)
	store := NewStore(db)
	feed := &captureFeed{}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	service := NewService(store, logger, nil, feed, nil)
	return &workflowEnv{store: store, service: service, feed: feed}
}

func (env *workflowEnv) draft(t *testing.T, docType DocType, authorID int64, dept string) Document {
	t.Helper()
	doc, err := env.store.Create(context.Background(), docType, authorID, dept, "Week 12",
		json.RawMessage(`{"notes":"algebra"}`))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, doc.Status)
	return doc
}

func (env *workflowEnv) submitted(t *testing.T, docType DocType, authorID int64, dept string) Document {
	t.Helper()
	doc := env.draft(t, docType, authorID, dept)
	res, err := env.service.Submit(context.Background(), docType, doc.ID,
		snapshotWithRoles(authorID, dept, rbac.RoleTeacher))
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	doc, err = env.store.Get(context.Background(), docType, doc.ID)
	require.NoError(t, err)
	return doc
}

func TestSubmitDraft(t *testing.T) {
	env := setupWorkflow(t)
	doc := env.submitted(t, DocLessonPlanner, 1, "science")

	assert.Equal(t, StatusSubmitted, doc.Status)
	assert.NotNil(t, doc.SubmittedAt)
	assert.Equal(t, 1, env.feed.count())
}

func TestSubmitByNonAuthorRefused(t *testing.T) {
	env := setupWorkflow(t)
	doc := env.draft(t, DocLessonPlanner, 1, "science")

	res, err := env.service.Submit(context.Background(), DocLessonPlanner, doc.ID,
		snapshotWithRoles(2, "science", rbac.RoleTeacher))
	require.NoError(t, err)
	assert.False(t, res.Success)

	got, err := env.store.Get(context.Background(), DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status, "refusal must not change state")
}

func TestApprovePlanner(t *testing.T) {
	env := setupWorkflow(t)
	doc := env.submitted(t, DocLessonPlanner, 1, "science")

	res, err := env.service.Approve(context.Background(), DocLessonPlanner, doc.ID,
		snapshotWithRoles(2, "science", rbac.RoleHOD))
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)

	got, err := env.store.Get(context.Background(), DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	history, err := env.store.DecisionHistory(context.Background(), DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, DecisionApprove, history[0].Decision)
	assert.EqualValues(t, 2, history[0].DecidedBy)
}

// A diary walks both stages: HOD first, then principal. Neither stage
// can be skipped and each requires its own permission.
func TestDiaryTwoStageApproval(t *testing.T) {
	env := setupWorkflow(t)
	ctx := context.Background()
	doc := env.submitted(t, DocWorkDiary, 1, "science")

	hod := snapshotWithRoles(2, "science", rbac.RoleHOD)
	principal := snapshotWithRoles(3, "", rbac.RolePrincipal)

	// Principal cannot take the first stage.
	res, err := env.service.Approve(ctx, DocWorkDiary, doc.ID, principal)
	require.NoError(t, err)
	assert.False(t, res.Success)

	res, err = env.service.Approve(ctx, DocWorkDiary, doc.ID, hod)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	got, err := env.store.Get(ctx, DocWorkDiary, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHODApproved, got.Status)

	// HOD cannot take the second stage.
	res, err = env.service.Approve(ctx, DocWorkDiary, doc.ID, hod)
	require.NoError(t, err)
	assert.False(t, res.Success)

	res, err = env.service.Approve(ctx, DocWorkDiary, doc.ID, principal)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	got, err = env.store.Get(ctx, DocWorkDiary, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPrincipalApproved, got.Status)

	history, err := env.store.DecisionHistory(ctx, DocWorkDiary, doc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

// An unauthorized or illegal decision is a logical refusal: it
// reports success=false without an error and leaves the document
// untouched.
func TestRefusalChangesNothing(t *testing.T) {
	env := setupWorkflow(t)
	ctx := context.Background()
	doc := env.submitted(t, DocLessonPlanner, 1, "science")
	feedBefore := env.feed.count()

	teacher := snapshotWithRoles(2, "science", rbac.RoleTeacher)
	res, err := env.service.Approve(ctx, DocLessonPlanner, doc.ID, teacher)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)

	got, err := env.store.Get(ctx, DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got.Status)
	assert.Equal(t, feedBefore, env.feed.count(), "refusals must not publish changes")

	history, err := env.store.DecisionHistory(ctx, DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestApproveDraftRefused(t *testing.T) {
	env := setupWorkflow(t)
	doc := env.draft(t, DocLessonPlanner, 1, "science")

	res, err := env.service.Approve(context.Background(), DocLessonPlanner, doc.ID,
		snapshotWithRoles(2, "science", rbac.RoleHOD))
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestApproveTerminalRefused(t *testing.T) {
	env := setupWorkflow(t)
	ctx := context.Background()
	doc := env.submitted(t, DocLessonPlanner, 1, "science")
	hod := snapshotWithRoles(2, "science", rbac.RoleHOD)

	res, err := env.service.Approve(ctx, DocLessonPlanner, doc.ID, hod)
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = env.service.Approve(ctx, DocLessonPlanner, doc.ID, hod)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestSelfReviewRefused(t *testing.T) {
	env := setupWorkflow(t)
	doc := env.submitted(t, DocLessonPlanner, 1, "science")

	// Author also happens to hold the approval permission.
	res, err := env.service.Approve(context.Background(), DocLessonPlanner, doc.ID,
		snapshotWithRoles(1, "science", rbac.RoleTeacher, rbac.RoleHOD))
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestDepartmentScopedReview(t *testing.T) {
	env := setupWorkflow(t)
	doc := env.submitted(t, DocLessonPlanner, 1, "science")

	artsHOD := snapshotWithRoles(2, "arts", rbac.RoleHOD)
	res, err := env.service.Approve(context.Background(), DocLessonPlanner, doc.ID, artsHOD)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestRejectRequiresReason(t *testing.T) {
	env := setupWorkflow(t)
	ctx := context.Background()
	doc := env.submitted(t, DocLessonPlanner, 1, "science")
	hod := snapshotWithRoles(2, "science", rbac.RoleHOD)

	for _, reason := range []string{"", "   "} {
		res, err := env.service.Reject(ctx, DocLessonPlanner, doc.ID, hod, reason)
		require.NoError(t, err)
		assert.False(t, res.Success)
	}

	got, err := env.store.Get(ctx, DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got.Status)
}

func TestRejectionIsTerminal(t *testing.T) {
	env := setupWorkflow(t)
	ctx := context.Background()
	doc := env.submitted(t, DocLessonPlanner, 1, "science")
	hod := snapshotWithRoles(2, "science", rbac.RoleHOD)

	res, err := env.service.Reject(ctx, DocLessonPlanner, doc.ID, hod, "missing week plan")
	require.NoError(t, err)
	require.True(t, res.Success)

	got, err := env.store.Get(ctx, DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)

	history, err := env.store.DecisionHistory(ctx, DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "missing week plan", history[0].Reason)

	// Rejected documents cannot be edited or sent back into review.
	_, err = env.store.UpdateContent(ctx, DocLessonPlanner, doc.ID, "Week 12 revised", nil)
	assert.True(t, postgres.IsNotFound(err))

	author := snapshotWithRoles(1, "science", rbac.RoleTeacher)
	res, err = env.service.Submit(ctx, DocLessonPlanner, doc.ID, author)
	require.NoError(t, err)
	assert.False(t, res.Success)

	got, err = env.store.Get(ctx, DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
}

func TestRejectFromHODApproved(t *testing.T) {
	env := setupWorkflow(t)
	ctx := context.Background()
	doc := env.submitted(t, DocWorkDiary, 1, "science")

	hod := snapshotWithRoles(2, "science", rbac.RoleHOD)
	principal := snapshotWithRoles(3, "", rbac.RolePrincipal)

	res, err := env.service.Approve(ctx, DocWorkDiary, doc.ID, hod)
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = env.service.Reject(ctx, DocWorkDiary, doc.ID, principal, "dates do not add up")
	require.NoError(t, err)
	require.True(t, res.Success)

	got, err := env.store.Get(ctx, DocWorkDiary, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
}

func TestPendingQueues(t *testing.T) {
	env := setupWorkflow(t)
	ctx := context.Background()

	env.submitted(t, DocWorkDiary, 1, "science")
	second := env.submitted(t, DocWorkDiary, 4, "science")
	env.submitted(t, DocWorkDiary, 5, "arts")

	hod := snapshotWithRoles(2, "science", rbac.RoleHOD)
	principal := snapshotWithRoles(3, "", rbac.RolePrincipal)

	// Science HOD sees only science submissions.
	docs, err := env.service.Pending(ctx, DocWorkDiary, hod, 10)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, "science", d.Department)
		assert.Equal(t, StatusSubmitted, d.Status)
	}

	// Nothing is at the principal's stage yet.
	docs, err = env.service.Pending(ctx, DocWorkDiary, principal, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)

	res, err := env.service.Approve(ctx, DocWorkDiary, second.ID, hod)
	require.NoError(t, err)
	require.True(t, res.Success)

	docs, err = env.service.Pending(ctx, DocWorkDiary, principal, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, second.ID, docs[0].ID)
	assert.Equal(t, StatusHODApproved, docs[0].Status)

	// A teacher holds no approval permission and sees an empty queue.
	teacher := snapshotWithRoles(6, "science", rbac.RoleTeacher)
	docs, err = env.service.Pending(ctx, DocWorkDiary, teacher, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestPendingLimit(t *testing.T) {
	env := setupWorkflow(t)
	for i := int64(0); i < 5; i++ {
		env.submitted(t, DocLessonPlanner, 10+i, "science")
	}

	hod := snapshotWithRoles(2, "science", rbac.RoleHOD)
	docs, err := env.service.Pending(context.Background(), DocLessonPlanner, hod, 3)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestUpdateContentOnlyInEditableStates(t *testing.T) {
	env := setupWorkflow(t)
	ctx := context.Background()
	doc := env.submitted(t, DocLessonPlanner, 1, "science")

	_, err := env.store.UpdateContent(ctx, DocLessonPlanner, doc.ID, "sneaky edit", nil)
	require.Error(t, err)

	got, err := env.store.Get(ctx, DocLessonPlanner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Week 12", got.Title)
}
