package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusfound/backend/internal/models"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrClaimNotFound    = errors.New("claim not found")
	ErrForbidden        = errors.New("not authorized for this action")
	ErrItemNotAvailable = errors.New("item is not open for claims")
	ErrNotClaimable     = errors.New("only found items can be claimed")
	ErrSelfClaim        = errors.New("cannot claim an item you reported")
	ErrDuplicateClaim   = errors.New("a pending claim on this item already exists")
	ErrClaimResolved    = errors.New("claim is already resolved")
)

// RejectedSiblingReason is stamped on pending claims that lose out when a
// different claim on the same item is approved.
const RejectedSiblingReason = "Another claim on this item was approved"

// ItemFilter narrows item listings.
type ItemFilter struct {
	Type     string
	Status   string
	Category string
	Query    string // matched against derived search tags
	Limit    int
}

// Notifier delivers lifecycle notifications and resolves user records for
// outbound email. Implemented by the user services.
type Notifier interface {
	Notify(ctx context.Context, userID string, n models.Notification) error
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Mailer sends lifecycle email. Delivery is best-effort; failures are
// logged and never abort the primary transition.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

// ItemService is the entity store and claim lifecycle manager for items
// and their claims.
type ItemService interface {
	ReportItem(ctx context.Context, reporter *models.User, req *models.ReportItemRequest) (*models.Item, error)
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error)
	UpdateItem(ctx context.Context, actor *models.User, itemID string, req *models.UpdateItemRequest) (*models.Item, error)
	DeleteItem(ctx context.Context, actor *models.User, itemID string) (*models.Item, error)
	SetItemStatus(ctx context.Context, actor *models.User, itemID, status string) (*models.Item, error)

	SubmitClaim(ctx context.Context, claimant *models.User, itemID string, req *models.SubmitClaimRequest) (*models.Claim, error)
	ApproveClaim(ctx context.Context, actor *models.User, claimID string) (*models.Claim, error)
	RejectClaim(ctx context.Context, actor *models.User, claimID, reason string) (*models.Claim, error)
	MarkReturned(ctx context.Context, actor *models.User, itemID, claimID string) (*models.Claim, error)
	ContactClaimant(ctx context.Context, actor *models.User, claimID, message string) (*models.Claim, error)
	GetClaim(ctx context.Context, claimID string) (*models.Claim, error)
	ListClaimsForItem(ctx context.Context, actor *models.User, itemID string) ([]*models.Claim, error)
	ListClaimsByClaimant(ctx context.Context, userID string) ([]*models.Claim, error)

	// RecomputeItemStats rebuilds the item's derived claim stats from the
	// live claim set. Idempotent; safe to call repeatedly.
	RecomputeItemStats(ctx context.Context, itemID string) error

	RenameCategory(ctx context.Context, oldName, newName string) (int64, error)
	CountByCategory(ctx context.Context, name string) (int64, error)
	// ClearReporter detaches a deleted user from their items and marks the
	// items owner_deleted.
	ClearReporter(ctx context.Context, userID string) (int64, error)

	ListAllItems(ctx context.Context) ([]*models.Item, error)
	ListAllClaims(ctx context.Context) ([]*models.Claim, error)
}

// MemoryItemService is the in-memory implementation, used by tests and
// local development (optionally snapshotted to disk).
type MemoryItemService struct {
	mu     sync.RWMutex
	items  map[string]*models.Item
	claims map[string]*models.Claim

	notifier Notifier
	mailer   Mailer
}

func NewMemoryItemService() *MemoryItemService {
	return &MemoryItemService{
		items:  make(map[string]*models.Item),
		claims: make(map[string]*models.Claim),
	}
}

func (s *MemoryItemService) SetNotifier(n Notifier) { s.notifier = n }
func (s *MemoryItemService) SetMailer(m Mailer)     { s.mailer = m }

func (s *MemoryItemService) ReportItem(ctx context.Context, reporter *models.User, req *models.ReportItemRequest) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	item := &models.Item{
		ID:            uuid.New().String(),
		Type:          req.Type,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		PhotoURLs:     req.PhotoURLs,
		Status:        models.StatusAvailable,
		ReporterID:    reporter.ID,
		ReporterName:  reporter.Name,
		ReporterEmail: reporter.Email,
		ReporterRole:  reporter.Role,
		SearchTags:    models.BuildSearchTags(req.Name, req.Description),
		Stats:         models.ItemStats{UpdatedAt: now},
		DateReported:  now,
	}

	s.items[item.ID] = item
	return copyItem(item), nil
}

func (s *MemoryItemService) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return copyItem(item), nil
}

func (s *MemoryItemService) ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*models.Item, 0)
	for _, item := range s.items {
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.Query != "" && !matchesTags(item.SearchTags, filter.Query) {
			continue
		}
		results = append(results, copyItem(item))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DateReported.After(results[j].DateReported)
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

func (s *MemoryItemService) UpdateItem(ctx context.Context, actor *models.User, itemID string, req *models.UpdateItemRequest) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}

	item.Name = req.Name
	item.Description = req.Description
	item.Category = req.Category
	item.Location = req.Location
	if req.PhotoURLs != nil {
		item.PhotoURLs = req.PhotoURLs
	}
	item.SearchTags = models.BuildSearchTags(req.Name, req.Description)

	return copyItem(item), nil
}

func (s *MemoryItemService) DeleteItem(ctx context.Context, actor *models.User, itemID string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}

	for claimID, claim := range s.claims {
		if claim.ItemID == itemID {
			delete(s.claims, claimID)
		}
	}
	delete(s.items, itemID)
	return copyItem(item), nil
}

// SetItemStatus is the administrative override; normal transitions go
// through the claim lifecycle.
func (s *MemoryItemService) SetItemStatus(ctx context.Context, actor *models.User, itemID, status string) (*models.Item, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	item.Status = status
	return copyItem(item), nil
}

func (s *MemoryItemService) SubmitClaim(ctx context.Context, claimant *models.User, itemID string, req *models.SubmitClaimRequest) (*models.Claim, error) {
	s.mu.Lock()

	item, ok := s.items[itemID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrItemNotFound
	}
	if item.Type != models.ItemFound {
		s.mu.Unlock()
		return nil, ErrNotClaimable
	}
	if item.Status != models.StatusAvailable && item.Status != models.StatusClaimPending {
		s.mu.Unlock()
		return nil, ErrItemNotAvailable
	}
	if item.ReporterID != "" && item.ReporterID == claimant.ID {
		s.mu.Unlock()
		return nil, ErrSelfClaim
	}
	for _, c := range s.claims {
		if c.ItemID == itemID && c.ClaimantID == claimant.ID && c.Status == models.ClaimPending {
			s.mu.Unlock()
			return nil, ErrDuplicateClaim
		}
	}

	now := time.Now().UTC()
	claim := &models.Claim{
		ID:               uuid.New().String(),
		ItemID:           itemID,
		ClaimantID:       claimant.ID,
		ClaimantName:     claimant.Name,
		OwnerID:          item.ReporterID,
		Message:          req.Message,
		ProofDescription: req.ProofDescription,
		ContactInfo:      req.ContactInfo,
		Status:           models.ClaimPending,
		CreatedAt:        now,
	}
	s.claims[claim.ID] = claim

	if item.Status == models.StatusAvailable {
		item.Status = models.StatusClaimPending
	}
	s.recomputeStatsLocked(itemID)

	itemCopy := copyItem(item)
	claimCopy := copyClaim(claim)
	s.mu.Unlock()

	notifyNewClaim(ctx, s.notifier, s.mailer, itemCopy, claimCopy)
	return claimCopy, nil
}

func (s *MemoryItemService) ApproveClaim(ctx context.Context, actor *models.User, claimID string) (*models.Claim, error) {
	s.mu.Lock()

	claim, ok := s.claims[claimID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrClaimNotFound
	}
	item, ok := s.items[claim.ItemID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrItemNotFound
	}
	if !canManageItem(actor, item) {
		s.mu.Unlock()
		return nil, ErrForbidden
	}
	if claim.Status != models.ClaimPending {
		s.mu.Unlock()
		return nil, ErrClaimResolved
	}

	now := time.Now().UTC()
	claim.Status = models.ClaimApproved
	claim.ResolvedAt = &now
	claim.ResolvedBy = actor.ID

	rejected := make([]*models.Claim, 0)
	for _, other := range s.claims {
		if other.ItemID == item.ID && other.ID != claim.ID && other.Status == models.ClaimPending {
			other.Status = models.ClaimRejected
			other.ResolvedAt = &now
			other.ResolvedBy = actor.ID
			other.Response = RejectedSiblingReason
			rejected = append(rejected, copyClaim(other))
		}
	}

	item.Status = models.StatusReturned
	item.ClaimedBy = claim.ClaimantID
	item.ResolvedDate = &now
	s.recomputeStatsLocked(item.ID)

	itemCopy := copyItem(item)
	claimCopy := copyClaim(claim)
	s.mu.Unlock()

	notifyClaimApproved(ctx, s.notifier, s.mailer, itemCopy, claimCopy, rejected)
	return claimCopy, nil
}

func (s *MemoryItemService) RejectClaim(ctx context.Context, actor *models.User, claimID, reason string) (*models.Claim, error) {
	s.mu.Lock()

	claim, ok := s.claims[claimID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrClaimNotFound
	}
	item, ok := s.items[claim.ItemID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrItemNotFound
	}
	if !canManageItem(actor, item) {
		s.mu.Unlock()
		return nil, ErrForbidden
	}
	if claim.Status != models.ClaimPending {
		s.mu.Unlock()
		return nil, ErrClaimResolved
	}

	now := time.Now().UTC()
	claim.Status = models.ClaimRejected
	claim.ResolvedAt = &now
	claim.ResolvedBy = actor.ID
	claim.Response = reason

	// Revert the item when no pending claim remains.
	pendingLeft := false
	for _, other := range s.claims {
		if other.ItemID == item.ID && other.Status == models.ClaimPending {
			pendingLeft = true
			break
		}
	}
	if !pendingLeft && item.Status == models.StatusClaimPending {
		item.Status = models.StatusAvailable
	}
	s.recomputeStatsLocked(item.ID)

	itemCopy := copyItem(item)
	claimCopy := copyClaim(claim)
	s.mu.Unlock()

	notifyClaimRejected(ctx, s.notifier, s.mailer, itemCopy, claimCopy)
	return claimCopy, nil
}

// MarkReturned records a physical hand-over; it resolves the claim the
// same way an approval does.
func (s *MemoryItemService) MarkReturned(ctx context.Context, actor *models.User, itemID, claimID string) (*models.Claim, error) {
	s.mu.RLock()
	claim, ok := s.claims[claimID]
	if !ok || claim.ItemID != itemID {
		s.mu.RUnlock()
		return nil, ErrClaimNotFound
	}
	s.mu.RUnlock()

	return s.ApproveClaim(ctx, actor, claimID)
}

func (s *MemoryItemService) ContactClaimant(ctx context.Context, actor *models.User, claimID, message string) (*models.Claim, error) {
	s.mu.Lock()

	claim, ok := s.claims[claimID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrClaimNotFound
	}
	item, ok := s.items[claim.ItemID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrItemNotFound
	}
	if !canManageItem(actor, item) {
		s.mu.Unlock()
		return nil, ErrForbidden
	}

	itemCopy := copyItem(item)
	claimCopy := copyClaim(claim)
	s.mu.Unlock()

	delivered := sendContactEmail(ctx, s.notifier, s.mailer, itemCopy, claimCopy, message)

	s.mu.Lock()
	claim.ContactHistory = append(claim.ContactHistory, models.ContactEntry{
		Message:   message,
		SenderID:  actor.ID,
		Delivered: delivered,
		CreatedAt: time.Now().UTC(),
	})
	claimCopy = copyClaim(claim)
	s.mu.Unlock()

	notifyContactMessage(ctx, s.notifier, itemCopy, claimCopy)
	return claimCopy, nil
}

func (s *MemoryItemService) GetClaim(ctx context.Context, claimID string) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, ok := s.claims[claimID]
	if !ok {
		return nil, ErrClaimNotFound
	}
	return copyClaim(claim), nil
}

func (s *MemoryItemService) ListClaimsForItem(ctx context.Context, actor *models.User, itemID string) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}

	claims := make([]*models.Claim, 0)
	for _, c := range s.claims {
		if c.ItemID == itemID {
			claims = append(claims, copyClaim(c))
		}
	}
	sortClaimsNewestFirst(claims)
	return claims, nil
}

func (s *MemoryItemService) ListClaimsByClaimant(ctx context.Context, userID string) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := make([]*models.Claim, 0)
	for _, c := range s.claims {
		if c.ClaimantID == userID {
			claims = append(claims, copyClaim(c))
		}
	}
	sortClaimsNewestFirst(claims)
	return claims, nil
}

func (s *MemoryItemService) RecomputeItemStats(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[itemID]; !ok {
		return ErrItemNotFound
	}
	s.recomputeStatsLocked(itemID)
	return nil
}

func (s *MemoryItemService) recomputeStatsLocked(itemID string) {
	item, ok := s.items[itemID]
	if !ok {
		return
	}

	stats := models.ItemStats{UpdatedAt: time.Now().UTC()}
	var latest *models.Claim
	for _, c := range s.claims {
		if c.ItemID != itemID {
			continue
		}
		stats.TotalClaims++
		switch c.Status {
		case models.ClaimPending:
			stats.PendingClaims++
		case models.ClaimApproved:
			stats.ApprovedClaims++
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}

	item.Stats = stats
	if latest != nil {
		item.LastClaim = latest.Summarize()
	} else {
		item.LastClaim = nil
	}
}

func (s *MemoryItemService) RenameCategory(ctx context.Context, oldName, newName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, item := range s.items {
		if item.Category == oldName {
			item.Category = newName
			n++
		}
	}
	return n, nil
}

func (s *MemoryItemService) CountByCategory(ctx context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, item := range s.items {
		if item.Category == name {
			n++
		}
	}
	return n, nil
}

func (s *MemoryItemService) ClearReporter(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, item := range s.items {
		if item.ReporterID == userID {
			item.ReporterID = ""
			item.Status = models.StatusOwnerDeleted
			n++
		}
	}
	return n, nil
}

func (s *MemoryItemService) ListAllItems(ctx context.Context) ([]*models.Item, error) {
	return s.ListItems(ctx, ItemFilter{})
}

func (s *MemoryItemService) ListAllClaims(ctx context.Context) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := make([]*models.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		claims = append(claims, copyClaim(c))
	}
	sortClaimsNewestFirst(claims)
	return claims, nil
}

// canManageItem: the item's current reporter, or any admin. Items whose
// reporter was deleted can only be managed by admins.
func canManageItem(actor *models.User, item *models.Item) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	return item.ReporterID != "" && item.ReporterID == actor.ID
}

func matchesTags(tags []string, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, t := range tags {
		if strings.Contains(t, q) {
			return true
		}
	}
	return false
}

func sortClaimsNewestFirst(claims []*models.Claim) {
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].CreatedAt.After(claims[j].CreatedAt)
	})
}

func copyItem(item *models.Item) *models.Item {
	cp := *item
	if item.LastClaim != nil {
		lc := *item.LastClaim
		cp.LastClaim = &lc
	}
	cp.PhotoURLs = append([]string(nil), item.PhotoURLs...)
	cp.SearchTags = append([]string(nil), item.SearchTags...)
	return &cp
}

func copyClaim(claim *models.Claim) *models.Claim {
	cp := *claim
	cp.ContactHistory = append([]models.ContactEntry(nil), claim.ContactHistory...)
	return &cp
}

// --- lifecycle side effects, shared by the memory and Mongo services ---
// All of these are best-effort: failures are logged, never returned.

func notifyNewClaim(ctx context.Context, n Notifier, m Mailer, item *models.Item, claim *models.Claim) {
	if item.ReporterID == "" {
		return
	}
	emit(ctx, n, item.ReporterID, models.Notification{
		Kind:    models.NotifyNewClaim,
		Message: fmt.Sprintf("%s submitted a claim on %q", claim.ClaimantName, item.Name),
		ItemID:  item.ID,
		ClaimID: claim.ID,
	})
	if m != nil && item.ReporterEmail != "" {
		subject := fmt.Sprintf("New claim on %q", item.Name)
		body := fmt.Sprintf("%s claims the item you reported.\n\nMessage:\n%s\n", claim.ClaimantName, claim.Message)
		if err := m.Send(ctx, item.ReporterEmail, item.ReporterName, subject, body); err != nil {
			log.Printf("[claims] email send failed item=%s claim=%s: %v", item.ID, claim.ID, err)
		}
	}
}

func notifyClaimApproved(ctx context.Context, n Notifier, m Mailer, item *models.Item, claim *models.Claim, rejected []*models.Claim) {
	emit(ctx, n, claim.ClaimantID, models.Notification{
		Kind:    models.NotifyClaimApproved,
		Message: fmt.Sprintf("Your claim on %q was approved", item.Name),
		ItemID:  item.ID,
		ClaimID: claim.ID,
	})
	for _, r := range rejected {
		emit(ctx, n, r.ClaimantID, models.Notification{
			Kind:    models.NotifyClaimRejected,
			Message: fmt.Sprintf("Your claim on %q was rejected: %s", item.Name, RejectedSiblingReason),
			ItemID:  item.ID,
			ClaimID: r.ID,
		})
	}
	sendClaimantEmail(ctx, n, m, claim, fmt.Sprintf("Claim approved: %q", item.Name),
		fmt.Sprintf("Your claim on %q has been approved. Contact the finder to arrange pickup.\n", item.Name))
}

func notifyClaimRejected(ctx context.Context, n Notifier, m Mailer, item *models.Item, claim *models.Claim) {
	msg := fmt.Sprintf("Your claim on %q was rejected", item.Name)
	if claim.Response != "" {
		msg += ": " + claim.Response
	}
	emit(ctx, n, claim.ClaimantID, models.Notification{
		Kind:    models.NotifyClaimRejected,
		Message: msg,
		ItemID:  item.ID,
		ClaimID: claim.ID,
	})
	sendClaimantEmail(ctx, n, m, claim, fmt.Sprintf("Claim update: %q", item.Name), msg+"\n")
}

func notifyContactMessage(ctx context.Context, n Notifier, item *models.Item, claim *models.Claim) {
	emit(ctx, n, claim.ClaimantID, models.Notification{
		Kind:    models.NotifyMessageReceived,
		Message: fmt.Sprintf("New message about your claim on %q", item.Name),
		ItemID:  item.ID,
		ClaimID: claim.ID,
	})
}

// sendContactEmail reports whether the outbound message was delivered; the
// contact history append happens regardless.
func sendContactEmail(ctx context.Context, n Notifier, m Mailer, item *models.Item, claim *models.Claim, message string) bool {
	if m == nil {
		return false
	}
	email, name := claimantAddress(ctx, n, claim)
	if email == "" {
		return false
	}
	subject := fmt.Sprintf("Message about your claim on %q", item.Name)
	if err := m.Send(ctx, email, name, subject, message+"\n"); err != nil {
		log.Printf("[claims] contact email failed claim=%s: %v", claim.ID, err)
		return false
	}
	return true
}

func sendClaimantEmail(ctx context.Context, n Notifier, m Mailer, claim *models.Claim, subject, body string) {
	if m == nil {
		return
	}
	email, name := claimantAddress(ctx, n, claim)
	if email == "" {
		return
	}
	if err := m.Send(ctx, email, name, subject, body); err != nil {
		log.Printf("[claims] email send failed claim=%s: %v", claim.ID, err)
	}
}

// claimantAddress prefers the claim's contact override, falling back to
// the claimant's account email.
func claimantAddress(ctx context.Context, n Notifier, claim *models.Claim) (email, name string) {
	if strings.Contains(claim.ContactInfo, "@") {
		return strings.TrimSpace(claim.ContactInfo), claim.ClaimantName
	}
	if n == nil {
		return "", ""
	}
	user, err := n.GetByID(ctx, claim.ClaimantID)
	if err != nil {
		return "", ""
	}
	return user.Email, user.Name
}

func emit(ctx context.Context, n Notifier, userID string, notification models.Notification) {
	if n == nil || userID == "" {
		return
	}
	if err := n.Notify(ctx, userID, notification); err != nil {
		log.Printf("[claims] notification failed user=%s kind=%s: %v", userID, notification.Kind, err)
	}
}
