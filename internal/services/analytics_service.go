package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/campusfound/backend/internal/models"
)

// Time bucket granularities for report grouping.
const (
	BucketDay   = "day"
	BucketWeek  = "week"
	BucketMonth = "month"
)

var ErrBadBucket = errors.New("bucket must be day, week or month")

// AnalyticsService produces read-only reporting over the entity store.
// Results always match a straightforward recomputation from current
// entity state; nothing here mutates or caches.
type AnalyticsService interface {
	Overview(ctx context.Context) (*models.OverviewReport, error)
	ItemsByStatus(ctx context.Context) ([]models.BucketCount, error)
	ItemsByType(ctx context.Context) ([]models.BucketCount, error)
	ItemsByCategory(ctx context.Context) ([]models.BucketCount, error)
	ClaimsByStatus(ctx context.Context) ([]models.BucketCount, error)
	ItemsOverTime(ctx context.Context, bucket string) ([]models.BucketCount, error)
	TopReporters(ctx context.Context, limit int) ([]models.TopReporter, error)
	MostClaimedItems(ctx context.Context, limit int) ([]models.TopClaimedItem, error)
	PopularTags(ctx context.Context, limit int) ([]models.TagCount, error)
}

// BasicAnalyticsService computes reports in-process from the item and
// user services. It backs the memory deployment and the tests; the Mongo
// deployment uses aggregation pipelines instead.
type BasicAnalyticsService struct {
	items ItemService
	users UserService
}

func NewBasicAnalyticsService(items ItemService, users UserService) *BasicAnalyticsService {
	return &BasicAnalyticsService{items: items, users: users}
}

func (s *BasicAnalyticsService) Overview(ctx context.Context) (*models.OverviewReport, error) {
	items, err := s.items.ListAllItems(ctx)
	if err != nil {
		return nil, err
	}
	claims, err := s.items.ListAllClaims(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.OverviewReport{
		TotalItems:  int64(len(items)),
		TotalClaims: int64(len(claims)),
		TotalUsers:  int64(len(users)),
	}
	for _, item := range items {
		switch item.Type {
		case models.ItemLost:
			report.LostItems++
		case models.ItemFound:
			report.FoundItems++
		}
		if item.Status == models.StatusReturned {
			report.ReturnedItems++
		}
	}
	for _, claim := range claims {
		switch claim.Status {
		case models.ClaimPending:
			report.PendingClaims++
		case models.ClaimApproved:
			report.ApprovedClaims++
		}
	}
	return report, nil
}

func (s *BasicAnalyticsService) ItemsByStatus(ctx context.Context) ([]models.BucketCount, error) {
	return s.groupItems(ctx, func(item *models.Item) string { return item.Status })
}

func (s *BasicAnalyticsService) ItemsByType(ctx context.Context) ([]models.BucketCount, error) {
	return s.groupItems(ctx, func(item *models.Item) string { return item.Type })
}

func (s *BasicAnalyticsService) ItemsByCategory(ctx context.Context) ([]models.BucketCount, error) {
	return s.groupItems(ctx, func(item *models.Item) string { return item.Category })
}

func (s *BasicAnalyticsService) ClaimsByStatus(ctx context.Context) ([]models.BucketCount, error) {
	claims, err := s.items.ListAllClaims(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, c := range claims {
		counts[c.Status]++
	}
	return toBuckets(counts), nil
}

func (s *BasicAnalyticsService) ItemsOverTime(ctx context.Context, bucket string) ([]models.BucketCount, error) {
	if bucket != BucketDay && bucket != BucketWeek && bucket != BucketMonth {
		return nil, ErrBadBucket
	}
	return s.groupItems(ctx, func(item *models.Item) string {
		return TimeBucketKey(item.DateReported, bucket)
	})
}

func (s *BasicAnalyticsService) TopReporters(ctx context.Context, limit int) ([]models.TopReporter, error) {
	items, err := s.items.ListAllItems(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*models.TopReporter)
	for _, item := range items {
		if item.ReporterID == "" {
			continue
		}
		entry, ok := counts[item.ReporterID]
		if !ok {
			entry = &models.TopReporter{UserID: item.ReporterID, ReporterName: item.ReporterName}
			counts[item.ReporterID] = entry
		}
		entry.ItemCount++
	}

	out := make([]models.TopReporter, 0, len(counts))
	for _, entry := range counts {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemCount != out[j].ItemCount {
			return out[i].ItemCount > out[j].ItemCount
		}
		return out[i].UserID < out[j].UserID
	})
	return capLen(out, limit), nil
}

func (s *BasicAnalyticsService) MostClaimedItems(ctx context.Context, limit int) ([]models.TopClaimedItem, error) {
	items, err := s.items.ListAllItems(ctx)
	if err != nil {
		return nil, err
	}
	claims, err := s.items.ListAllClaims(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}
	counts := make(map[string]int64)
	for _, c := range claims {
		counts[c.ItemID]++
	}

	out := make([]models.TopClaimedItem, 0, len(counts))
	for itemID, n := range counts {
		out = append(out, models.TopClaimedItem{ItemID: itemID, Name: names[itemID], ClaimCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClaimCount != out[j].ClaimCount {
			return out[i].ClaimCount > out[j].ClaimCount
		}
		return out[i].ItemID < out[j].ItemID
	})
	return capLen(out, limit), nil
}

func (s *BasicAnalyticsService) PopularTags(ctx context.Context, limit int) ([]models.TagCount, error) {
	items, err := s.items.ListAllItems(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, item := range items {
		for _, tag := range item.SearchTags {
			counts[tag]++
		}
	}

	out := make([]models.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, models.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return capLen(out, limit), nil
}

func (s *BasicAnalyticsService) groupItems(ctx context.Context, key func(*models.Item) string) ([]models.BucketCount, error) {
	items, err := s.items.ListAllItems(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, item := range items {
		counts[key(item)]++
	}
	return toBuckets(counts), nil
}

// TimeBucketKey formats t into a day/week/month grouping key. Keys align
// with the $dateToString formats the Mongo pipelines use.
func TimeBucketKey(t time.Time, bucket string) string {
	t = t.UTC()
	switch bucket {
	case BucketWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case BucketMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func toBuckets(counts map[string]int64) []models.BucketCount {
	out := make([]models.BucketCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, models.BucketCount{Key: key, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func capLen[T any](in []T, limit int) []T {
	if limit <= 0 {
		limit = 10
	}
	if len(in) > limit {
		return in[:limit]
	}
	return in
}
