package database

import (
	"context"
	"time"

	"github.com/nfrund/storefront/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

var _ domain.ProfileRepository = (*ProfileStore)(nil)

type profileRecord struct {
	ID        *models.RecordID       `json:"id,omitempty"`
	Name      *string                `json:"name,omitempty"`
	Role      string                 `json:"role"`
	CreatedAt *models.CustomDateTime `json:"created_at,omitempty"`
}

func (r *profileRecord) toDomain() (*domain.Profile, error) {
	role, err := domain.ParseRole(r.Role)
	if err != nil {
		return nil, err
	}
	p := &domain.Profile{ID: recordKey(r.ID), Name: r.Name, Role: role}
	if r.CreatedAt != nil {
		p.CreatedAt = r.CreatedAt.Time
	}
	return p, nil
}

// ProfileStore implements domain.ProfileRepository on the `profiles` table.
// Records are keyed by the auth user id.
type ProfileStore struct {
	conn DBConnection
}

// NewProfileStore creates a profile store on a root connection.
func NewProfileStore(conn DBConnection) *ProfileStore {
	return &ProfileStore{conn: conn}
}

// FindByID implements domain.ProfileRepository.
func (s *ProfileStore) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, cancel := withTimeout(ctx, s.conn.GetDBQueryTimeout(), queryTimeoutKey)
	defer cancel()

	var rec *profileRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rec, err = QueryOne[profileRecord](ctx, db, `SELECT * FROM type::thing("profiles", $id)`, map[string]any{"id": id})
		return err
	})
	if err != nil {
		return nil, WrapError(err, "find profile")
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec.toDomain()
}

// Create implements domain.ProfileRepository.
func (s *ProfileStore) Create(ctx context.Context, profile *domain.Profile) error {
	if !profile.Role.Valid() {
		return domain.ErrInvalidRole
	}
	ctx, cancel := withTimeout(ctx, s.conn.GetDBExecuteTimeout(), executeTimeoutKey)
	defer cancel()

	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	data := map[string]any{
		"role":       profile.Role.String(),
		"created_at": models.CustomDateTime{Time: createdAt},
	}
	if profile.Name != nil {
		data["name"] = *profile.Name
	}

	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return Execute(ctx, db, `CREATE type::thing("profiles", $id) CONTENT $data`, map[string]any{
			"id":   profile.ID,
			"data": data,
		})
	})
	if isDuplicateError(err) {
		return domain.ErrUserAlreadyExists
	}
	return WrapError(err, "create profile")
}

// UpdateRole implements domain.ProfileRepository.
func (s *ProfileStore) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	ctx, cancel := withTimeout(ctx, s.conn.GetDBExecuteTimeout(), executeTimeoutKey)
	defer cancel()

	var rec *profileRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rec, err = QueryOne[profileRecord](ctx, db,
			`UPDATE type::thing("profiles", $id) SET role = $role RETURN AFTER`,
			map[string]any{"id": id, "role": role.String()})
		return err
	})
	if err != nil {
		return WrapError(err, "update profile role")
	}
	if rec == nil {
		return domain.ErrNotFound
	}
	return nil
}
