package directory

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/skindd/doclogs/internal/platform/apperr"
	"github.com/skindd/doclogs/internal/platform/db"
)

type profileRepoPG struct {
	q       db.Querier
	builder squirrel.StatementBuilderType
}

func NewProfileRepoPG(q db.Querier) Store {
	return &profileRepoPG{
		q:       q,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *profileRepoPG) filtered(city string, f Filter) squirrel.And {
	where := squirrel.And{squirrel.Expr("LOWER(city) = LOWER(?)", city)}
	if f.Specialty != "" {
		where = append(where, squirrel.Expr("LOWER(specialty) = LOWER(?)", f.Specialty))
	}
	if f.MinRating > 0 {
		where = append(where, squirrel.GtOrEq{"rating": f.MinRating})
	}
	return where
}

func (r *profileRepoPG) ByLocation(ctx context.Context, city string, f Filter, limit, offset int) ([]*DoctorProfile, int, error) {
	where := r.filtered(city, f)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From("doctor_profiles").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count profiles sql: %w", err)
	}
	var total int
	if err := r.q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	stmt, args, err := r.builder.
		Select("doctor_id", "name", "specialty", "contact", "image", "rating::float8", "city").
		From("doctor_profiles").
		Where(where).
		OrderBy("rating DESC", "doctor_id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list profiles sql: %w", err)
	}

	rows, err := r.q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	out := make([]*DoctorProfile, 0)
	for rows.Next() {
		var p DoctorProfile
		if err := rows.Scan(&p.DoctorID, &p.Name, &p.Specialty, &p.Contact, &p.Image, &p.Rating, &p.City); err != nil {
			return nil, 0, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, total, nil
}

func (r *profileRepoPG) Contact(ctx context.Context, doctorID string) (string, string, error) {
	stmt, args, err := r.builder.Select("name", "contact").
		From("doctor_profiles").
		Where(squirrel.Eq{"doctor_id": doctorID}).
		ToSql()
	if err != nil {
		return "", "", fmt.Errorf("build contact sql: %w", err)
	}

	var name, contact string
	if err := r.q.QueryRow(ctx, stmt, args...).Scan(&name, &contact); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrProfileNotFound
		}
		return "", "", fmt.Errorf("get contact: %w", err)
	}
	return name, contact, nil
}

func (r *profileRepoPG) Upsert(ctx context.Context, p *DoctorProfile) error {
	stmt, args, err := r.builder.Insert("doctor_profiles").
		Columns("doctor_id", "name", "specialty", "contact", "image", "rating", "city").
		Values(p.DoctorID, p.Name, p.Specialty, p.Contact, p.Image, p.Rating, p.City).
		Suffix(`ON CONFLICT (doctor_id) DO UPDATE SET
			name = EXCLUDED.name, specialty = EXCLUDED.specialty, contact = EXCLUDED.contact,
			image = EXCLUDED.image, rating = EXCLUDED.rating, city = EXCLUDED.city`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert profile sql: %w", err)
	}
	if _, err := r.q.Exec(ctx, stmt, args...); err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.New(apperr.KindNotFound, "doctor not found")
		}
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
