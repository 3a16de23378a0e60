package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

// HotspotLimit is the number of locations Hotspots returns.
const HotspotLimit = 5

// Progression tiers by number of closed complaints.
const (
	TierActiveResident      = "Active Resident"
	TierCivicSteward        = "Civic Steward"
	TierCommunityAmbassador = "Community Ambassador"
)

// PointsPerClosed is the score awarded for each closed complaint.
const PointsPerClosed = 50

// Hotspot is a location with its complaint count.
type Hotspot struct {
	Pincode      string
	LocationName string
	Count        int
}

// Progression summarises a citizen's resolved complaints.
type Progression struct {
	UserID string
	Closed int
	Score  int
	Tier   string
}

// Scope selects the complaints ChartCounts aggregates. Exactly one field
// should be set.
type Scope struct {
	Department models.Department
	UserID     string
}

// ChartCounts holds complaint counts per priority and per status. Every
// priority and status is present, zero when unused.
type ChartCounts struct {
	Total      int
	ByPriority map[models.Priority]int
	ByStatus   map[models.ComplaintStatus]int
}

// SortQueue orders complaints by priority (High first), then newest first.
// Equal timestamps fall back to ID, newest first.
func SortQueue(complaints []*models.Complaint) {
	sort.SliceStable(complaints, func(i, j int) bool {
		a, b := complaints[i], complaints[j]
		if oa, ob := a.Priority.Ordinal(), b.Priority.Ordinal(); oa != ob {
			return oa < ob
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// ComputeHotspots groups complaints by pincode and location and returns
// the most frequent ones, at most limit entries.
func ComputeHotspots(complaints []*models.Complaint, limit int) []Hotspot {
	type key struct{ pincode, location string }
	counts := make(map[key]int)
	for _, c := range complaints {
		counts[key{c.Pincode, c.LocationName}]++
	}

	out := make([]Hotspot, 0, len(counts))
	for k, n := range counts {
		out = append(out, Hotspot{Pincode: k.pincode, LocationName: k.location, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Pincode != out[j].Pincode {
			return out[i].Pincode < out[j].Pincode
		}
		return out[i].LocationName < out[j].LocationName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TierFor returns the progression tier for a closed-complaint count.
func TierFor(closed int) string {
	switch {
	case closed >= 16:
		return TierCommunityAmbassador
	case closed >= 6:
		return TierCivicSteward
	default:
		return TierActiveResident
	}
}

// ComputeProgression derives the progression of userID from their complaints.
func ComputeProgression(userID string, complaints []*models.Complaint) Progression {
	closed := 0
	for _, c := range complaints {
		if c.UserID == userID && c.Status == models.StatusClosed {
			closed++
		}
	}
	return Progression{
		UserID: userID,
		Closed: closed,
		Score:  closed * PointsPerClosed,
		Tier:   TierFor(closed),
	}
}

// CountComplaints tallies complaints by priority and status.
func CountComplaints(complaints []*models.Complaint) ChartCounts {
	cc := ChartCounts{
		ByPriority: make(map[models.Priority]int, len(models.Priorities)),
		ByStatus:   make(map[models.ComplaintStatus]int, len(models.Statuses)),
	}
	for _, p := range models.Priorities {
		cc.ByPriority[p] = 0
	}
	for _, s := range models.Statuses {
		cc.ByStatus[s] = 0
	}
	for _, c := range complaints {
		cc.Total++
		cc.ByPriority[c.Priority]++
		cc.ByStatus[c.Status]++
	}
	return cc
}

// ListForDepartment returns the department queue, optionally limited to
// complaints whose owner lives in city.
func (m *Manager) ListForDepartment(ctx context.Context, dept models.Department, city string) ([]*models.Complaint, error) {
	complaints, err := m.store.ListComplaints(ctx, store.ComplaintListFilter{Department: dept, City: city})
	if err != nil {
		return nil, fmt.Errorf("department queue: %w", err)
	}
	SortQueue(complaints)
	return complaints, nil
}

// ListForUser returns the user's complaints, newest first.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]*models.Complaint, error) {
	complaints, err := m.store.ListComplaints(ctx, store.ComplaintListFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("user complaints: %w", err)
	}
	return complaints, nil
}

// Hotspots returns the top locations of a department.
func (m *Manager) Hotspots(ctx context.Context, dept models.Department) ([]Hotspot, error) {
	complaints, err := m.store.ListComplaints(ctx, store.ComplaintListFilter{Department: dept})
	if err != nil {
		return nil, fmt.Errorf("hotspots: %w", err)
	}
	return ComputeHotspots(complaints, HotspotLimit), nil
}

// Progression returns the user's tier and score.
func (m *Manager) Progression(ctx context.Context, userID string) (Progression, error) {
	complaints, err := m.store.ListComplaints(ctx, store.ComplaintListFilter{UserID: userID, Status: models.StatusClosed})
	if err != nil {
		return Progression{}, fmt.Errorf("progression: %w", err)
	}
	return ComputeProgression(userID, complaints), nil
}

// ChartCounts aggregates the complaints in scope.
func (m *Manager) ChartCounts(ctx context.Context, scope Scope) (ChartCounts, error) {
	if scope.Department == "" && scope.UserID == "" {
		return ChartCounts{}, fmt.Errorf("chart counts: empty scope")
	}
	complaints, err := m.store.ListComplaints(ctx, store.ComplaintListFilter{Department: scope.Department, UserID: scope.UserID})
	if err != nil {
		return ChartCounts{}, fmt.Errorf("chart counts: %w", err)
	}
	return CountComplaints(complaints), nil
}
