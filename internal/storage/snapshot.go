package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/campusfound/backend/internal/models"
)

// Snapshot is the on-disk state of an in-memory deployment. The server
// loads it at startup and writes it back on shutdown so local and test
// environments survive restarts without a database.
type Snapshot struct {
	Users      []*models.User
	Items      []*models.Item
	Claims     []*models.Claim
	Categories []*models.Category
	Watches    []*models.Watch
}

// The file format uses its own doc structs rather than the API models:
// the models' JSON tags describe the response shape, which hides fields
// persistence must keep (User.PasswordHash is json:"-").

type userDoc struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Email         string            `json:"email,omitempty"`
	UniversityID  string            `json:"university_id,omitempty"`
	PasswordHash  string            `json:"password_hash,omitempty"`
	Role          string            `json:"role"`
	Verified      bool              `json:"verified"`
	Suspended     bool              `json:"suspended,omitempty"`
	Banned        bool              `json:"banned,omitempty"`
	ModReason     string            `json:"mod_reason,omitempty"`
	ModAt         time.Time         `json:"mod_at,omitempty"`
	ModBy         string            `json:"mod_by,omitempty"`
	Strikes       int               `json:"strikes,omitempty"`
	Deleted       bool              `json:"deleted,omitempty"`
	Notifications []notificationDoc `json:"notifications,omitempty"`
	AuditLog      []adminActionDoc  `json:"audit_log,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type notificationDoc struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	ItemID    string    `json:"item_id,omitempty"`
	ClaimID   string    `json:"claim_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type adminActionDoc struct {
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

type itemDoc struct {
	ID            string           `json:"id"`
	Type          string           `json:"type"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Category      string           `json:"category"`
	Location      string           `json:"location"`
	PhotoURLs     []string         `json:"photo_urls,omitempty"`
	Status        string           `json:"status"`
	ReporterID    string           `json:"reporter_id,omitempty"`
	ReporterName  string           `json:"reporter_name,omitempty"`
	ReporterEmail string           `json:"reporter_email,omitempty"`
	ReporterRole  string           `json:"reporter_role,omitempty"`
	ClaimedBy     string           `json:"claimed_by,omitempty"`
	ResolvedDate  *time.Time       `json:"resolved_date,omitempty"`
	SearchTags    []string         `json:"search_tags,omitempty"`
	Stats         itemStatsDoc     `json:"stats"`
	LastClaim     *claimSummaryDoc `json:"last_claim,omitempty"`
	DateReported  time.Time        `json:"date_reported"`
}

type itemStatsDoc struct {
	TotalClaims    int       `json:"total_claims"`
	PendingClaims  int       `json:"pending_claims"`
	ApprovedClaims int       `json:"approved_claims"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type claimSummaryDoc struct {
	ClaimID      string    `json:"claim_id"`
	ClaimantName string    `json:"claimant_name,omitempty"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type claimDoc struct {
	ID               string            `json:"id"`
	ItemID           string            `json:"item_id"`
	ClaimantID       string            `json:"claimant_id"`
	ClaimantName     string            `json:"claimant_name,omitempty"`
	OwnerID          string            `json:"owner_id,omitempty"`
	Message          string            `json:"message"`
	ProofDescription string            `json:"proof_description,omitempty"`
	ContactInfo      string            `json:"contact_info,omitempty"`
	Status           string            `json:"status"`
	ContactHistory   []contactEntryDoc `json:"contact_history,omitempty"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy       string            `json:"resolved_by,omitempty"`
	Response         string            `json:"response,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

type contactEntryDoc struct {
	Message   string    `json:"message"`
	SenderID  string    `json:"sender_id"`
	Delivered bool      `json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}

type categoryDoc struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"created_by,omitempty"`
	ItemCount   int       `json:"item_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type watchDoc struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

type snapshotFile struct {
	Users      []userDoc     `json:"users,omitempty"`
	Items      []itemDoc     `json:"items,omitempty"`
	Claims     []claimDoc    `json:"claims,omitempty"`
	Categories []categoryDoc `json:"categories,omitempty"`
	Watches    []watchDoc    `json:"watches,omitempty"`
}

func userToDoc(u *models.User) userDoc {
	doc := userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		UniversityID: u.UniversityID,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Verified:     u.Verified,
		Suspended:    u.Suspended,
		Banned:       u.Banned,
		ModReason:    u.ModReason,
		ModAt:        u.ModAt,
		ModBy:        u.ModBy,
		Strikes:      u.Strikes,
		Deleted:      u.Deleted,
		CreatedAt:    u.CreatedAt,
	}
	for _, n := range u.Notifications {
		doc.Notifications = append(doc.Notifications, notificationDoc(n))
	}
	for _, a := range u.AuditLog {
		doc.AuditLog = append(doc.AuditLog, adminActionDoc(a))
	}
	return doc
}

func userDocToModel(doc userDoc) *models.User {
	u := &models.User{
		ID:           doc.ID,
		Name:         doc.Name,
		Email:        doc.Email,
		UniversityID: doc.UniversityID,
		PasswordHash: doc.PasswordHash,
		Role:         doc.Role,
		Verified:     doc.Verified,
		Suspended:    doc.Suspended,
		Banned:       doc.Banned,
		ModReason:    doc.ModReason,
		ModAt:        doc.ModAt,
		ModBy:        doc.ModBy,
		Strikes:      doc.Strikes,
		Deleted:      doc.Deleted,
		CreatedAt:    doc.CreatedAt,
	}
	for _, n := range doc.Notifications {
		u.Notifications = append(u.Notifications, models.Notification(n))
	}
	for _, a := range doc.AuditLog {
		u.AuditLog = append(u.AuditLog, models.AdminAction(a))
	}
	return u
}

func itemToDoc(item *models.Item) itemDoc {
	doc := itemDoc{
		ID:            item.ID,
		Type:          item.Type,
		Name:          item.Name,
		Description:   item.Description,
		Category:      item.Category,
		Location:      item.Location,
		PhotoURLs:     item.PhotoURLs,
		Status:        item.Status,
		ReporterID:    item.ReporterID,
		ReporterName:  item.ReporterName,
		ReporterEmail: item.ReporterEmail,
		ReporterRole:  item.ReporterRole,
		ClaimedBy:     item.ClaimedBy,
		ResolvedDate:  item.ResolvedDate,
		SearchTags:    item.SearchTags,
		Stats:         itemStatsDoc(item.Stats),
		DateReported:  item.DateReported,
	}
	if item.LastClaim != nil {
		sum := claimSummaryDoc(*item.LastClaim)
		doc.LastClaim = &sum
	}
	return doc
}

func itemDocToModel(doc itemDoc) *models.Item {
	item := &models.Item{
		ID:            doc.ID,
		Type:          doc.Type,
		Name:          doc.Name,
		Description:   doc.Description,
		Category:      doc.Category,
		Location:      doc.Location,
		PhotoURLs:     doc.PhotoURLs,
		Status:        doc.Status,
		ReporterID:    doc.ReporterID,
		ReporterName:  doc.ReporterName,
		ReporterEmail: doc.ReporterEmail,
		ReporterRole:  doc.ReporterRole,
		ClaimedBy:     doc.ClaimedBy,
		ResolvedDate:  doc.ResolvedDate,
		SearchTags:    doc.SearchTags,
		Stats:         models.ItemStats(doc.Stats),
		DateReported:  doc.DateReported,
	}
	if doc.LastClaim != nil {
		sum := models.ClaimSummary(*doc.LastClaim)
		item.LastClaim = &sum
	}
	return item
}

func claimToDoc(c *models.Claim) claimDoc {
	doc := claimDoc{
		ID:               c.ID,
		ItemID:           c.ItemID,
		ClaimantID:       c.ClaimantID,
		ClaimantName:     c.ClaimantName,
		OwnerID:          c.OwnerID,
		Message:          c.Message,
		ProofDescription: c.ProofDescription,
		ContactInfo:      c.ContactInfo,
		Status:           c.Status,
		ResolvedAt:       c.ResolvedAt,
		ResolvedBy:       c.ResolvedBy,
		Response:         c.Response,
		CreatedAt:        c.CreatedAt,
	}
	for _, entry := range c.ContactHistory {
		doc.ContactHistory = append(doc.ContactHistory, contactEntryDoc(entry))
	}
	return doc
}

func claimDocToModel(doc claimDoc) *models.Claim {
	c := &models.Claim{
		ID:               doc.ID,
		ItemID:           doc.ItemID,
		ClaimantID:       doc.ClaimantID,
		ClaimantName:     doc.ClaimantName,
		OwnerID:          doc.OwnerID,
		Message:          doc.Message,
		ProofDescription: doc.ProofDescription,
		ContactInfo:      doc.ContactInfo,
		Status:           doc.Status,
		ResolvedAt:       doc.ResolvedAt,
		ResolvedBy:       doc.ResolvedBy,
		Response:         doc.Response,
		CreatedAt:        doc.CreatedAt,
	}
	for _, entry := range doc.ContactHistory {
		c.ContactHistory = append(c.ContactHistory, models.ContactEntry(entry))
	}
	return c
}

func snapToFile(snap *Snapshot) snapshotFile {
	var file snapshotFile
	for _, u := range snap.Users {
		file.Users = append(file.Users, userToDoc(u))
	}
	for _, item := range snap.Items {
		file.Items = append(file.Items, itemToDoc(item))
	}
	for _, c := range snap.Claims {
		file.Claims = append(file.Claims, claimToDoc(c))
	}
	for _, cat := range snap.Categories {
		file.Categories = append(file.Categories, categoryDoc(*cat))
	}
	for _, w := range snap.Watches {
		file.Watches = append(file.Watches, watchDoc(*w))
	}
	return file
}

func fileToSnap(file snapshotFile) *Snapshot {
	snap := &Snapshot{}
	for _, doc := range file.Users {
		snap.Users = append(snap.Users, userDocToModel(doc))
	}
	for _, doc := range file.Items {
		snap.Items = append(snap.Items, itemDocToModel(doc))
	}
	for _, doc := range file.Claims {
		snap.Claims = append(snap.Claims, claimDocToModel(doc))
	}
	for _, doc := range file.Categories {
		cat := models.Category(doc)
		snap.Categories = append(snap.Categories, &cat)
	}
	for _, doc := range file.Watches {
		w := models.Watch(doc)
		snap.Watches = append(snap.Watches, &w)
	}
	return snap
}

// SnapshotStore persists a Snapshot as a single JSON file. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// truncated snapshot behind.
type SnapshotStore struct {
	mu       sync.Mutex
	filePath string
}

func NewSnapshotStore(dataDir, filename string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return &SnapshotStore{
		filePath: filepath.Join(dataDir, filename),
	}, nil
}

// Load reads the snapshot file. A missing file yields an empty snapshot.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var contents snapshotFile
	if err := json.NewDecoder(file).Decode(&contents); err != nil {
		return nil, err
	}
	return fileToSnap(contents), nil
}

func (s *SnapshotStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempFile := s.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapToFile(snap)); err != nil {
		file.Close()
		os.Remove(tempFile)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	// Atomic rename
	return os.Rename(tempFile, s.filePath)
}

func (s *SnapshotStore) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.filePath)
	return err == nil
}
