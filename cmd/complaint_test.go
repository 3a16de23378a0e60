package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/civic/internal/lifecycle"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

// cliEnv is testEnv plus cleared command flags.
func cliEnv(t *testing.T) string {
	t.Helper()
	dir := testEnv(t)

	complaintActor, complaintDesc, complaintLocation, complaintPincode, complaintImage = "", "", "", "", ""
	complaintCity, complaintStatus, complaintPriority, complaintTarget, complaintFeedback = "", "", "", "", ""
	dashboardActor, dashboardCity = "", ""
	notifyActor, notifyUnread, notifyAll = "", false, false
	userAdmin, userDepartment, userCity, userPhone = false, "", models.DefaultCity, ""
	exportFormat, exportType, exportDept = "json", "complaints", ""
	classifyCorpus, classifyMisses = "", false

	return dir
}

func addCitizen(t *testing.T, name string) {
	t.Helper()
	userAdmin, userDepartment = false, ""
	require.NoError(t, userAddRun(name))
}

func addAdmin(t *testing.T, name string, dept models.Department) {
	t.Helper()
	userAdmin, userDepartment = true, string(dept)
	require.NoError(t, userAddRun(name))
	userAdmin, userDepartment = false, ""
}

func submitAs(t *testing.T, user, desc, location, pincode string) *models.Complaint {
	t.Helper()
	complaintActor = user
	require.NoError(t, complaintSubmitRun(lifecycle.SubmitRequest{
		Description:  desc,
		LocationName: location,
		Pincode:      pincode,
	}))

	all, err := dataStore.ListComplaints(context.Background(), store.ComplaintListFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, all)
	var newest *models.Complaint
	for _, c := range all {
		if newest == nil || c.ID > newest.ID {
			newest = c
		}
	}
	return newest
}

func reload(t *testing.T, id string) *models.Complaint {
	t.Helper()
	c, err := dataStore.GetComplaint(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestComplaint_FullLifecycle(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addAdmin(t, "wadmin", models.DepartmentWater)

	c := submitAs(t, "asha", "Broken water pipe near the school", "Palasia", "452001")
	assert.Contains(t, outText(t), "Submitted complaint")
	assert.Equal(t, models.DepartmentWater, c.Department)
	assert.Equal(t, models.PriorityMedium, c.Priority)
	assert.Equal(t, models.StatusPending, c.Status)

	complaintActor = "wadmin"
	require.NoError(t, complaintSolveRun(shortID(c.ID)))
	assert.Equal(t, models.StatusSolved, reload(t, c.ID).Status)

	complaintActor = "asha"
	require.NoError(t, complaintVerifyRun(c.ID, nil, "fixed quickly"))
	closed := reload(t, c.ID)
	assert.Equal(t, models.StatusClosed, closed.Status)
	require.NotNil(t, closed.Rating)
	assert.Equal(t, 5, *closed.Rating)
	assert.Equal(t, "fixed quickly", closed.Feedback)

	require.NoError(t, complaintReopenRun(c.ID))
	reopened := reload(t, c.ID)
	assert.Equal(t, models.StatusPending, reopened.Status)
	require.NotNil(t, reopened.Rating, "reopen keeps the rating")
}

func TestComplaintSubmit_ActorRequired(t *testing.T) {
	cliEnv(t)

	err := complaintSubmitRun(lifecycle.SubmitRequest{Description: "pothole"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--as is required")

	complaintActor = "ghost"
	err = complaintSubmitRun(lifecycle.SubmitRequest{Description: "pothole"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")
}

func TestComplaintSubmit_LatitudeWithoutLongitude(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	complaintActor = "asha"

	lat := 22.7
	err := complaintSubmitRun(lifecycle.SubmitRequest{Description: "pothole on road", Latitude: &lat})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestComplaintSubmit_DryRun(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	dryRun = true
	ui.DryRun = true
	complaintActor = "asha"

	require.NoError(t, complaintSubmitRun(lifecycle.SubmitRequest{Description: "Pothole on the main road"}))

	all, err := dataStore.ListComplaints(context.Background(), store.ComplaintListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestComplaintSolve_OtherDepartmentForbidden(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addAdmin(t, "padmin", models.DepartmentPolice)
	c := submitAs(t, "asha", "No water supply since Monday", "Vijay Nagar", "452010")

	complaintActor = "padmin"
	err := complaintSolveRun(c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
	assert.Equal(t, models.StatusPending, reload(t, c.ID).Status)
}

func TestComplaintSolve_CitizenForbidden(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	c := submitAs(t, "asha", "No water supply since Monday", "Vijay Nagar", "452010")

	complaintActor = "asha"
	err := complaintSolveRun(c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestComplaintVerify_Rules(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addCitizen(t, "ravi")
	addAdmin(t, "wadmin", models.DepartmentWater)
	c := submitAs(t, "asha", "Water tank overflowing", "Rajwada", "452002")

	complaintActor = "asha"
	err := complaintVerifyRun(c.ID, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict", "pending complaints cannot be verified")

	complaintActor = "wadmin"
	require.NoError(t, complaintSolveRun(c.ID))

	complaintActor = "ravi"
	err = complaintVerifyRun(c.ID, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")

	complaintActor = "asha"
	bad := 7
	err = complaintVerifyRun(c.ID, &bad, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")

	good := 3
	require.NoError(t, complaintVerifyRun(c.ID, &good, ""))
	assert.Equal(t, 3, *reload(t, c.ID).Rating)
}

func TestComplaintReopen_PendingConflict(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	c := submitAs(t, "asha", "Water tank overflowing", "Rajwada", "452002")

	complaintActor = "asha"
	err := complaintReopenRun(c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict")
}

func TestComplaintTransfer(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addAdmin(t, "wadmin", models.DepartmentWater)
	c := submitAs(t, "asha", "Water logging after rain", "Bhawarkua", "452001")
	require.Equal(t, models.DepartmentWater, c.Department)

	complaintActor = "wadmin"
	err := complaintTransferRun(c.ID, "roads")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--to must be a department")

	require.NoError(t, complaintTransferRun(c.ID, "pwd"))
	assert.Equal(t, models.DepartmentPWD, reload(t, c.ID).Department)
	assert.Contains(t, outText(t), "PWD")
}

func TestComplaintList_AdminSeesPriorityQueue(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addAdmin(t, "wadmin", models.DepartmentWater)
	low := submitAs(t, "asha", "Water supply timing is irregular", "Palasia", "452001")
	high := submitAs(t, "asha", "Fire hazard near the water tank", "Palasia", "452001")
	require.Equal(t, models.PriorityLow, low.Priority)
	require.Equal(t, models.PriorityHigh, high.Priority)

	resetOut()
	complaintActor = "wadmin"
	require.NoError(t, complaintListRun())
	out := outText(t)

	hi := strings.Index(out, high.Description)
	lo := strings.Index(out, low.Description)
	require.GreaterOrEqual(t, hi, 0)
	require.GreaterOrEqual(t, lo, 0)
	assert.Less(t, hi, lo, "High priority is listed first")
}

func TestComplaintList_Filters(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	low := submitAs(t, "asha", "Water supply timing is irregular", "Palasia", "452001")
	high := submitAs(t, "asha", "Fire hazard near the water tank", "Palasia", "452001")

	resetOut()
	complaintActor = "asha"
	complaintPriority = "high"
	require.NoError(t, complaintListRun())
	out := outText(t)
	assert.Contains(t, out, high.Description)
	assert.NotContains(t, out, low.Description)

	complaintPriority = ""
	complaintStatus = "closed"
	resetOut()
	require.NoError(t, complaintListRun())
	assert.Contains(t, outText(t), "No complaints found")

	complaintStatus = "archived"
	assert.Error(t, complaintListRun())
}

func TestComplaintList_CitizenSeesOwnOnly(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	addCitizen(t, "ravi")
	mine := submitAs(t, "asha", "Pothole on the ring road", "Palasia", "452001")
	theirs := submitAs(t, "ravi", "Pothole near the bridge", "Bhawarkua", "452014")

	resetOut()
	complaintActor = "asha"
	require.NoError(t, complaintListRun())
	out := outText(t)
	assert.Contains(t, out, mine.Description)
	assert.NotContains(t, out, theirs.Description)
}

func TestComplaintShow(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	c := submitAs(t, "asha", "Pothole on the ring road", "Palasia", "452001")

	resetOut()
	require.NoError(t, complaintShowRun(shortID(c.ID)))
	out := outText(t)
	assert.Contains(t, out, c.ID)
	assert.Contains(t, out, "asha")
	assert.Contains(t, out, "PWD")
	assert.Contains(t, out, "Pothole on the ring road")
}

func TestFindComplaint(t *testing.T) {
	cliEnv(t)
	addCitizen(t, "asha")
	a := submitAs(t, "asha", "Pothole on the ring road", "Palasia", "452001")
	submitAs(t, "asha", "Garbage not collected", "Palasia", "452001")
	ctx := context.Background()

	got, err := findComplaint(ctx, dataStore, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = findComplaint(ctx, dataStore, strings.ToLower(a.ID))
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = findComplaint(ctx, dataStore, "ZZZZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = findComplaint(ctx, dataStore, "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestComplaintSummarize_NoAPIKey(t *testing.T) {
	cliEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	err := complaintSummarizeRun(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Anthropic API key")
}

func TestFilterComplaints_KeepsOrder(t *testing.T) {
	in := []*models.Complaint{
		{ID: "3", Status: models.StatusPending, Priority: models.PriorityHigh},
		{ID: "2", Status: models.StatusSolved, Priority: models.PriorityHigh},
		{ID: "1", Status: models.StatusPending, Priority: models.PriorityLow},
	}

	out, err := filterComplaints(in, "pending", "")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "3", out[0].ID)
	assert.Equal(t, "1", out[1].ID)
	assert.Len(t, in, 3, "input slice is not modified")

	_, err = filterComplaints(in, "", "urgent")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
