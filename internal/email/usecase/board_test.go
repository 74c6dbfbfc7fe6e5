package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnsCreatesDefaultsLazily(t *testing.T) {
	env := newTestEnv()

	columns, err := env.svc.Columns("user-1")
	require.NoError(t, err)
	require.Len(t, columns, 4)

	slugs := make(map[string]bool)
	for _, col := range columns {
		slugs[col.Slug] = true
	}
	assert.True(t, slugs[emaildomain.ColumnInbox])
	assert.True(t, slugs[emaildomain.ColumnTodo])
	assert.True(t, slugs[emaildomain.ColumnDone])
	assert.True(t, slugs[emaildomain.ColumnSnoozed])

	// Second read must not duplicate.
	columns, err = env.svc.Columns("user-1")
	require.NoError(t, err)
	assert.Len(t, columns, 4)

	inbox, err := env.columns.GetColumn("user-1", emaildomain.ColumnInbox)
	require.NoError(t, err)
	require.NotNil(t, inbox)
	assert.Equal(t, "INBOX", inbox.LabelID)
}

func TestDeleteColumnRefusesDefaults(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Columns("user-1")
	require.NoError(t, err)

	err = env.svc.DeleteColumn("user-1", emaildomain.ColumnInbox)
	assert.Error(t, err)
}

func TestDeleteColumnReassignsMappings(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.svc.CreateColumn("user-1", &emaildomain.Column{Name: "Follow Up", Slug: "follow-up"}))
	require.NoError(t, env.mappings.SetEmailColumn("user-1", "e1", "follow-up"))

	require.NoError(t, env.svc.DeleteColumn("user-1", "follow-up"))

	col, err := env.mappings.GetEmailColumn("user-1", "e1")
	require.NoError(t, err)
	assert.Equal(t, emaildomain.ColumnInbox, col)

	stored, err := env.columns.GetColumn("user-1", "follow-up")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestMoveEmailDefaultsToInboxLabel(t *testing.T) {
	env := newTestEnv(email("e1", "hello", "Bob", time.Now()))
	require.NoError(t, env.svc.CreateColumn("user-1", &emaildomain.Column{Name: "Follow Up", Slug: "follow-up"}))

	err := env.svc.MoveEmail(context.Background(), "user-1", "e1", "follow-up", emaildomain.ColumnInbox)
	require.NoError(t, err)

	// A column with no configured label keeps the email discoverable by
	// adding INBOX, never removing it.
	require.Len(t, env.provider.modifyAdds, 1)
	assert.Equal(t, []string{"INBOX"}, env.provider.modifyAdds[0])
	assert.NotContains(t, env.provider.modifyRems[0], "INBOX")

	col, err := env.mappings.GetEmailColumn("user-1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "follow-up", col)
}

func TestMoveEmailSingleMappingRow(t *testing.T) {
	env := newTestEnv(email("e1", "hello", "Bob", time.Now()))
	_, err := env.svc.Columns("user-1")
	require.NoError(t, err)

	require.NoError(t, env.svc.MoveEmail(context.Background(), "user-1", "e1", emaildomain.ColumnTodo, ""))
	require.NoError(t, env.svc.MoveEmail(context.Background(), "user-1", "e1", emaildomain.ColumnDone, ""))

	todoIDs, err := env.mappings.GetEmailsByColumn("user-1", emaildomain.ColumnTodo)
	require.NoError(t, err)
	assert.Empty(t, todoIDs, "no trace of the previous column may remain")

	doneIDs, err := env.mappings.GetEmailsByColumn("user-1", emaildomain.ColumnDone)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, doneIDs)
}

func TestMoveEmailMappingSurvivesProviderFailure(t *testing.T) {
	env := newTestEnv(email("e1", "hello", "Bob", time.Now()))
	_, err := env.svc.Columns("user-1")
	require.NoError(t, err)
	env.provider.modifyErr = errors.New("label propagation failed")

	err = env.svc.MoveEmail(context.Background(), "user-1", "e1", emaildomain.ColumnTodo, "")
	assert.Error(t, err, "provider failure is surfaced")

	col, mErr := env.mappings.GetEmailColumn("user-1", "e1")
	require.NoError(t, mErr)
	assert.Equal(t, emaildomain.ColumnTodo, col, "local placement reflects user intent regardless")
}

func TestMoveLabelChangesAddWins(t *testing.T) {
	target := &emaildomain.Column{Slug: "todo", LabelID: "IMPORTANT", RemoveLabelIDs: emaildomain.StringArray{"IMPORTANT", "INBOX"}}
	source := &emaildomain.Column{Slug: "done", LabelID: "STARRED"}

	add, remove := moveLabelChanges(target, source)
	assert.Equal(t, []string{"IMPORTANT"}, add)
	assert.ElementsMatch(t, []string{"INBOX", "STARRED"}, remove)
	assert.NotContains(t, remove, "IMPORTANT", "a label never appears in both sets")
}

func TestEmailsInColumnHidesSnoozed(t *testing.T) {
	now := time.Now()
	env := newTestEnv(
		email("e1", "first", "Ann", now),
		email("e2", "second", "Ben", now.Add(-time.Hour)),
	)
	_, err := env.svc.Columns("user-1")
	require.NoError(t, err)
	require.NoError(t, env.mappings.SnoozeEmail("user-1", "e2", emaildomain.ColumnInbox, now.Add(time.Hour)))

	emails, _, err := env.svc.EmailsInColumn(context.Background(), "user-1", emaildomain.ColumnInbox, 10, 0, false)
	require.NoError(t, err)

	ids := make([]string, 0, len(emails))
	for _, e := range emails {
		ids = append(ids, e.ID)
	}
	assert.NotContains(t, ids, "e2", "snoozed emails are hidden everywhere but the snoozed column")
}

func TestEmailsInColumnSnoozedPage(t *testing.T) {
	now := time.Now()
	env := newTestEnv(email("e1", "first", "Ann", now))
	_, err := env.svc.Columns("user-1")
	require.NoError(t, err)

	wake := now.Add(time.Hour)
	require.NoError(t, env.mappings.SnoozeEmail("user-1", "e1", emaildomain.ColumnTodo, wake))

	emails, total, err := env.svc.EmailsInColumn(context.Background(), "user-1", emaildomain.ColumnSnoozed, 10, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, emails, 1)
	assert.Equal(t, emaildomain.ColumnSnoozed, emails[0].Column)
	require.NotNil(t, emails[0].SnoozedUntil)
	assert.WithinDuration(t, wake, *emails[0].SnoozedUntil, time.Second)
}

func TestSnoozedHydrationFallsBackToCachedCopy(t *testing.T) {
	now := time.Now()
	env := newTestEnv(email("e1", "cached subject", "Ann", now))

	// A prior fetch populates the local copy.
	_, _, err := env.svc.EmailsByMailbox(context.Background(), "user-1", "INBOX", 10, 0, "")
	require.NoError(t, err)

	_, err = env.svc.Columns("user-1")
	require.NoError(t, err)
	require.NoError(t, env.mappings.SnoozeEmail("user-1", "e1", emaildomain.ColumnInbox, now.Add(time.Hour)))
	env.provider.failFetch["e1"] = true

	emails, total, err := env.svc.EmailsInColumn(context.Background(), "user-1", emaildomain.ColumnSnoozed, 10, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, emails, 1, "provider failure falls back to the local copy")
	assert.Equal(t, "cached subject", emails[0].Subject)
}

func TestEmailsInColumnStrictModeUsesMappings(t *testing.T) {
	now := time.Now()
	env := newTestEnv(
		email("e1", "first", "Ann", now),
		email("e2", "second", "Ben", now),
	)
	_, err := env.svc.Columns("user-1")
	require.NoError(t, err)
	require.NoError(t, env.mappings.SetEmailColumn("user-1", "e2", emaildomain.ColumnTodo))

	inbox, _, err := env.svc.EmailsInColumn(context.Background(), "user-1", emaildomain.ColumnInbox, 10, 0, true)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "e1", inbox[0].ID)

	todo, total, err := env.svc.EmailsInColumn(context.Background(), "user-1", emaildomain.ColumnTodo, 10, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, todo, 1)
	assert.Equal(t, "e2", todo[0].ID)
}

func TestResolveColumnPrecedence(t *testing.T) {
	env := newTestEnv()

	// No mapping, no cache: inbox.
	assert.Equal(t, emaildomain.ColumnInbox, env.svc.resolveColumn("user-1", "e1", nil))

	// Cache only.
	env.svc.status.setColumn("user-1", "e1", "todo")
	assert.Equal(t, "todo", env.svc.resolveColumn("user-1", "e1", nil))

	// Mapping beats cache.
	assert.Equal(t, "done", env.svc.resolveColumn("user-1", "e1", map[string]string{"e1": "done"}))
}
