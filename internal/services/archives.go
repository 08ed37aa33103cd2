package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/giftmind/giftmind-backend/internal/models"
)

// ArchiveInput carries the writable fields of an archive.
type ArchiveInput struct {
	Name         string             `json:"name"`
	Relationship string             `json:"relationship"`
	Events       []models.EventItem `json:"events"`
	Tag          []string           `json:"tag"`
}

// ListArchivesOptions controls pagination and ordering of archive lists.
type ListArchivesOptions struct {
	Page      int
	PageSize  int
	SortField string
	SortOrder string
}

var archiveSortColumns = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"name":         "name",
	"relationship": "relationship",
}

var chineseDatePattern = regexp.MustCompile(`^(\d{1,2})月(\d{1,2})日?$`)
var monthDayPattern = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})$`)

// NormalizeEventDate accepts "MM-DD" or "X月X日" and returns a zero-padded
// "MM-DD". Unrecognized input is returned trimmed but otherwise untouched.
func NormalizeEventDate(raw string) string {
	s := strings.TrimSpace(raw)
	m := chineseDatePattern.FindStringSubmatch(s)
	if m == nil {
		m = monthDayPattern.FindStringSubmatch(s)
	}
	if m == nil {
		return s
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%02d-%02d", month, day)
}

func normalizeEvents(events []models.EventItem) []models.EventItem {
	out := make([]models.EventItem, 0, len(events))
	for _, e := range events {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		out = append(out, models.EventItem{Name: name, Date: NormalizeEventDate(e.Date)})
	}
	return out
}

const archiveColumns = `id, user_id, name, relationship, events, tag, created_at, updated_at`

// ArchivesService owns the gift-recipient archives.
type ArchivesService struct {
	db *sql.DB
}

func NewArchivesService(db *sql.DB) *ArchivesService {
	return &ArchivesService{db: db}
}

// List returns one page of the user's archives plus pagination metadata.
func (s *ArchivesService) List(ctx context.Context, userID int64, opts ListArchivesOptions) ([]models.Archive, models.PageMeta, error) {
	return s.listWhere(ctx, opts, "user_id = $1", userID)
}

// FilterByRelationship lists archives whose relationship matches the given
// label. English aliases are mapped to the canonical labels first.
func (s *ArchivesService) FilterByRelationship(ctx context.Context, userID int64, relationship string, opts ListArchivesOptions) ([]models.Archive, models.PageMeta, error) {
	canonical := models.CanonicalRelationship(relationship)
	return s.listWhere(ctx, opts, "user_id = $1 AND relationship = $2", userID, canonical)
}

// FilterByTags lists archives carrying any tag that contains one of the given
// fragments, case-insensitively.
func (s *ArchivesService) FilterByTags(ctx context.Context, userID int64, tags []string, opts ListArchivesOptions) ([]models.Archive, models.PageMeta, error) {
	fragments := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			fragments = append(fragments, t)
		}
	}
	if len(fragments) == 0 {
		return s.List(ctx, userID, opts)
	}

	args := []interface{}{userID}
	var conds []string
	for _, f := range fragments {
		args = append(args, "%"+f+"%")
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(tag) AS t WHERE t ILIKE $%d)", len(args)))
	}
	where := "user_id = $1 AND (" + strings.Join(conds, " OR ") + ")"
	return s.listWhere(ctx, opts, where, args...)
}

// Search matches the keyword against the archive name, event names and event
// dates. Date keywords are normalized so "3月8日" finds a "03-08" event.
func (s *ArchivesService) Search(ctx context.Context, userID int64, keyword string, opts ListArchivesOptions) ([]models.Archive, models.PageMeta, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.List(ctx, userID, opts)
	}
	pattern := "%" + keyword + "%"
	datePattern := "%" + NormalizeEventDate(keyword) + "%"
	where := `user_id = $1 AND (
		name ILIKE $2
		OR EXISTS (
			SELECT 1 FROM jsonb_array_elements(events) AS e
			WHERE e->>'name' ILIKE $2 OR e->>'date' ILIKE $3
		))`
	return s.listWhere(ctx, opts, where, userID, pattern, datePattern)
}

func (s *ArchivesService) listWhere(ctx context.Context, opts ListArchivesOptions, where string, args ...interface{}) ([]models.Archive, models.PageMeta, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	sortColumn, ok := archiveSortColumns[opts.SortField]
	if !ok {
		sortColumn = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		order = "ASC"
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM archives WHERE `+where, args...).Scan(&total); err != nil {
		return nil, models.PageMeta{}, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM archives WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		archiveColumns, where, sortColumn, order, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query,
		append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	defer rows.Close()

	archives := []models.Archive{}
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, models.PageMeta{}, err
		}
		archives = append(archives, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PageMeta{}, err
	}

	pageCount := (total + pageSize - 1) / pageSize
	meta := models.PageMeta{Total: total, Page: page, PageSize: pageSize, PageCount: pageCount}
	return archives, meta, nil
}

// AllForUser returns every archive of the user, unpaginated. The reminder
// board scans these for upcoming events.
func (s *ArchivesService) AllForUser(ctx context.Context, userID int64) ([]models.Archive, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+archiveColumns+` FROM archives WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	archives := []models.Archive{}
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		archives = append(archives, *a)
	}
	return archives, rows.Err()
}

// Get returns the archive, or (nil, nil) when it does not exist or belongs to
// someone else.
func (s *ArchivesService) Get(ctx context.Context, userID, id int64) (*models.Archive, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM archives WHERE id = $1 AND user_id = $2`, id, userID)
	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *ArchivesService) Create(ctx context.Context, userID int64, input ArchiveInput) (*models.Archive, error) {
	events := normalizeEvents(input.Events)
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return nil, err
	}

	a := &models.Archive{
		UserID:       userID,
		Name:         strings.TrimSpace(input.Name),
		Relationship: models.CanonicalRelationship(input.Relationship),
		Events:       events,
		Tag:          input.Tag,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO archives (user_id, name, relationship, events, tag)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, userID, a.Name, a.Relationship, eventsJSON, pq.Array(a.Tag),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Update overwrites the archive's writable fields. Returns (nil, nil) when
// the archive is not the user's.
func (s *ArchivesService) Update(ctx context.Context, userID, id int64, input ArchiveInput) (*models.Archive, error) {
	events := normalizeEvents(input.Events)
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE archives
		SET name = $1, relationship = $2, events = $3, tag = $4, updated_at = NOW()
		WHERE id = $5 AND user_id = $6
		RETURNING `+archiveColumns,
		strings.TrimSpace(input.Name), models.CanonicalRelationship(input.Relationship),
		eventsJSON, pq.Array(input.Tag), id, userID)
	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// Delete removes the archive and reports whether a row was deleted.
func (s *ArchivesService) Delete(ctx context.Context, userID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM archives WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Tags returns all distinct tags across the user's archives, sorted.
func (s *ArchivesService) Tags(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT unnest(tag) FROM archives WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		if t != "" {
			tags = append(tags, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(tags)
	return tags, nil
}

// RenameTag replaces oldTag with newTag across all of the user's archives and
// returns the number of archives touched.
func (s *ArchivesService) RenameTag(ctx context.Context, userID int64, oldTag, newTag string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE archives
		SET tag = array_replace(tag, $1, $2), updated_at = NOW()
		WHERE user_id = $3 AND $1 = ANY(tag)
	`, oldTag, newTag, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReplaceTags overwrites one archive's tag list. Returns (nil, nil) when the
// archive is not the user's.
func (s *ArchivesService) ReplaceTags(ctx context.Context, userID, id int64, tags []string) (*models.Archive, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE archives SET tag = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING `+archiveColumns, pq.Array(tags), id, userID)
	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArchive(row rowScanner) (*models.Archive, error) {
	var a models.Archive
	var eventsJSON []byte
	var tags pq.StringArray

	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Relationship, &eventsJSON,
		&tags, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(eventsJSON) > 0 {
		if err := json.Unmarshal(eventsJSON, &a.Events); err != nil {
			return nil, err
		}
	}
	if a.Events == nil {
		a.Events = []models.EventItem{}
	}
	a.Tag = []string(tags)
	if a.Tag == nil {
		a.Tag = []string{}
	}
	return &a, nil
}
