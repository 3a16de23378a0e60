package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/civic/internal/models"
)

func TestNotify_SolveNotifiesOwner(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addAdmin(t, "wadmin", models.DepartmentWater)
	c := submitAs(t, "asha", "Broken water pipe", "Palasia", "452001")

	complaintActor = "wadmin"
	require.NoError(t, complaintSolveRun(c.ID))

	resetOut()
	notifyActor = "asha"
	require.NoError(t, notifyListRun())
	assert.Contains(t, outText(t), "marked Solved by the Water department")

	// The admin has nothing.
	resetOut()
	notifyActor = "wadmin"
	require.NoError(t, notifyListRun())
	assert.Contains(t, outText(t), "No notifications")
}

func TestNotify_ReadOneAndAll(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addAdmin(t, "wadmin", models.DepartmentWater)
	c := submitAs(t, "asha", "Broken water pipe", "Palasia", "452001")

	complaintActor = "wadmin"
	require.NoError(t, complaintSolveRun(c.ID))
	require.NoError(t, complaintTransferRun(c.ID, "PWD"))

	ctx := context.Background()
	asha, err := dataStore.GetUserByUsername(ctx, "asha")
	require.NoError(t, err)
	notes, err := dataStore.ListNotifications(ctx, asha.ID, true)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	notifyActor = "asha"
	require.NoError(t, notifyReadRun(notes[0].ID))
	unread, err := dataStore.ListNotifications(ctx, asha.ID, true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	notifyAll = true
	require.NoError(t, notifyReadRun(""))
	unread, err = dataStore.ListNotifications(ctx, asha.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	resetOut()
	notifyUnread = true
	require.NoError(t, notifyListRun())
	assert.Contains(t, outText(t), "No notifications")
}

func TestNotify_ReadNeedsTarget(t *testing.T) {
	cliEnv(t)
	err := notifyReadRun("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestNotify_ReadOtherUsersNotification(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addCitizen(t, "ravi")
	addAdmin(t, "wadmin", models.DepartmentWater)
	c := submitAs(t, "asha", "Broken water pipe", "Palasia", "452001")
	complaintActor = "wadmin"
	require.NoError(t, complaintSolveRun(c.ID))

	ctx := context.Background()
	asha, err := dataStore.GetUserByUsername(ctx, "asha")
	require.NoError(t, err)
	notes, err := dataStore.ListNotifications(ctx, asha.ID, false)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	notifyActor = "ravi"
	err = notifyReadRun(notes[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
