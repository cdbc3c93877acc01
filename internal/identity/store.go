package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"castsync/internal/database"
	"castsync/internal/logging"
	"castsync/internal/services"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var recordColumns = []string{
	"id", "local_person_id", "metadata_person_id", "national_id", "regional_person_id",
	"display_name", "regional_name", "created_at", "updated_at",
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execQueryer interface {
	queryer
	database.Execer
}

// Store reads and writes person identity records.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore wraps an open castsync database.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logging.NewComponentLogger(logger, "identity"),
		now:    time.Now,
	}
}

// FindByLocalID returns the record for a media server person id, or nil.
func (s *Store) FindByLocalID(ctx context.Context, id string) (*Record, error) {
	return findBy(ctx, s.db, FieldLocalID, id)
}

// FindByMetadataID returns the record for a TMDB person id, or nil.
func (s *Store) FindByMetadataID(ctx context.Context, id string) (*Record, error) {
	return findBy(ctx, s.db, FieldMetadataID, id)
}

// FindByNationalID returns the record for an IMDb person id, or nil.
func (s *Store) FindByNationalID(ctx context.Context, id string) (*Record, error) {
	return findBy(ctx, s.db, FieldNationalID, id)
}

// FindByRegionalID returns the record for a regional database person id, or nil.
func (s *Store) FindByRegionalID(ctx context.Context, id string) (*Record, error) {
	return findBy(ctx, s.db, FieldRegionalID, id)
}

// GetByID returns a record by its row id, or nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	query, args, err := psql.Select(recordColumns...).
		From("person_identities").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build identity query: %w", err)
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %d: %w", id, err)
	}
	return rec, nil
}

// Upsert merges partial into the stored record located by merge-key
// precedence, creating one when nothing matches.
func (s *Store) Upsert(ctx context.Context, partial Record) (*Record, error) {
	var out *Record
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		rec, err := s.upsert(ctx, tx, partial)
		out = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyBatch upserts every record in one transaction. Either all of them land
// or none do.
func (s *Store) ApplyBatch(ctx context.Context, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, partial := range batch {
			if _, err := s.upsert(ctx, tx, partial); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "identity", "apply batch", fmt.Sprintf("Failed to persist %d identity updates", len(batch)), err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, tx execQueryer, partial Record) (*Record, error) {
	partial = partial.trimmed()
	if !partial.HasIDs() {
		return nil, services.Wrap(services.ErrValidation, "identity", "upsert", "Identity record carries no person ids", nil)
	}

	existing, err := resolve(ctx, tx, partial)
	if err != nil {
		return nil, err
	}

	localID := partial.LocalID
	if localID == "" && existing != nil {
		localID = existing.LocalID
	}
	if localID != "" {
		for _, field := range externalKeys {
			value := partial.Get(field)
			if value == "" || (existing != nil && existing.Get(field) == value) {
				continue
			}
			owner, err := findBy(ctx, tx, field, value)
			if err != nil {
				return nil, err
			}
			if owner == nil || owner.LocalID == "" || owner.LocalID == localID {
				continue
			}
			if existing != nil && owner.ID == existing.ID {
				continue
			}
			if err := s.recordConflict(ctx, tx, field, value, owner, localID, partial.DisplayName); err != nil {
				return nil, err
			}
			partial.set(field, "")
		}
	}

	now := s.now().UTC()
	if existing == nil {
		if !partial.HasIDs() {
			return nil, nil
		}
		partial.CreatedAt = now
		partial.UpdatedAt = now
		id, err := insertRecord(ctx, tx, partial)
		if err != nil {
			return nil, err
		}
		partial.ID = id
		return &partial, nil
	}

	merged := mergeInto(*existing, partial)
	merged.UpdatedAt = now
	if err := updateRecord(ctx, tx, merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// resolve finds the stored record for partial by merge-key precedence. A
// record already bound to a different local id is never a merge target.
func resolve(ctx context.Context, q queryer, partial Record) (*Record, error) {
	for _, field := range mergeKeys {
		value := partial.Get(field)
		if value == "" {
			continue
		}
		rec, err := findBy(ctx, q, field, value)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		if partial.LocalID != "" && rec.LocalID != "" && rec.LocalID != partial.LocalID {
			continue
		}
		return rec, nil
	}
	return nil, nil
}

func (s *Store) recordConflict(ctx context.Context, tx database.Execer, field Field, value string, owner *Record, incomingLocal, displayName string) error {
	query, args, err := psql.Insert("identity_conflicts").
		Columns("field", "value", "existing_local_id", "incoming_local_id", "display_name", "created_at").
		Values(string(field), value, owner.LocalID, incomingLocal, database.NullableString(displayName), database.FormatTime(s.now())).
		ToSql()
	if err != nil {
		return fmt.Errorf("build conflict insert: %w", err)
	}
	if _, err := database.ExecWithRetry(ctx, tx, query, args...); err != nil {
		return fmt.Errorf("record identity conflict: %w", err)
	}
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "identity conflict; external id not merged",
		"identity_conflict",
		logging.String("field", string(field)),
		logging.String("value", value),
		logging.String("existing_local_id", owner.LocalID),
		logging.String("incoming_local_id", incomingLocal),
		logging.String("name", displayName),
		logging.String(logging.FieldErrorHint, "inspect with castsync identity conflicts"),
		logging.String(logging.FieldImpact, "the external id stays linked to the existing person"),
	)
	return nil
}

func insertRecord(ctx context.Context, tx database.Execer, rec Record) (int64, error) {
	query, args, err := psql.Insert("person_identities").
		Columns("local_person_id", "metadata_person_id", "national_id", "regional_person_id",
			"display_name", "regional_name", "created_at", "updated_at").
		Values(
			database.NullableString(rec.LocalID),
			database.NullableString(rec.MetadataID),
			database.NullableString(rec.NationalID),
			database.NullableString(rec.RegionalID),
			database.NullableString(rec.DisplayName),
			database.NullableString(rec.RegionalName),
			database.FormatTime(rec.CreatedAt),
			database.FormatTime(rec.UpdatedAt),
		).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build identity insert: %w", err)
	}
	res, err := database.ExecWithRetry(ctx, tx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert identity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func updateRecord(ctx context.Context, tx database.Execer, rec Record) error {
	query, args, err := psql.Update("person_identities").
		Set("local_person_id", database.NullableString(rec.LocalID)).
		Set("metadata_person_id", database.NullableString(rec.MetadataID)).
		Set("national_id", database.NullableString(rec.NationalID)).
		Set("regional_person_id", database.NullableString(rec.RegionalID)).
		Set("display_name", database.NullableString(rec.DisplayName)).
		Set("regional_name", database.NullableString(rec.RegionalName)).
		Set("updated_at", database.FormatTime(rec.UpdatedAt)).
		Where(sq.Eq{"id": rec.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build identity update: %w", err)
	}
	if _, err := database.ExecWithRetry(ctx, tx, query, args...); err != nil {
		return fmt.Errorf("update identity %d: %w", rec.ID, err)
	}
	return nil
}

// findBy returns the record owning value in field. Records linked to a local
// person win over orphan records carrying the same external id.
func findBy(ctx context.Context, q queryer, field Field, value string) (*Record, error) {
	if value == "" {
		return nil, nil
	}
	query, args, err := psql.Select(recordColumns...).
		From("person_identities").
		Where(sq.Eq{string(field): value}).
		OrderBy("local_person_id IS NULL", "updated_at DESC", "id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build identity query: %w", err)
	}
	rec, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find identity by %s: %w", field, err)
	}
	return rec, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec                                        Record
		localID, metadataID, nationalID, regionalID sql.NullString
		displayName, regionalName                  sql.NullString
		createdRaw, updatedRaw                     sql.NullString
	)
	if err := scanner.Scan(&rec.ID, &localID, &metadataID, &nationalID, &regionalID,
		&displayName, &regionalName, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	rec.LocalID = localID.String
	rec.MetadataID = metadataID.String
	rec.NationalID = nationalID.String
	rec.RegionalID = regionalID.String
	rec.DisplayName = displayName.String
	rec.RegionalName = regionalName.String
	if created, err := database.ParseTime(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return &rec, nil
}
