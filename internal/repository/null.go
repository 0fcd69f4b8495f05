package repository

import (
	"database/sql"
	"time"

	"github.com/moznion/go-optional"
)

// Conversion helpers between go-optional values and database/sql nullables.

func nullFloat(o optional.Option[float64]) sql.NullFloat64 {
	if o.IsNone() {
		return sql.NullFloat64{Float64: 0, Valid: false}
	}

	return sql.NullFloat64{Float64: o.Unwrap(), Valid: true}
}

func nullString(o optional.Option[string]) sql.NullString {
	if o.IsNone() {
		return sql.NullString{String: "", Valid: false}
	}

	return sql.NullString{String: o.Unwrap(), Valid: true}
}

func nullTime(o optional.Option[time.Time]) sql.NullTime {
	if o.IsNone() {
		return sql.NullTime{Time: time.Time{}, Valid: false}
	}

	return sql.NullTime{Time: o.Unwrap(), Valid: true}
}

func optFloat(n sql.NullFloat64) optional.Option[float64] {
	if !n.Valid {
		return optional.None[float64]()
	}

	return optional.Some(n.Float64)
}

func optString(n sql.NullString) optional.Option[string] {
	if !n.Valid {
		return optional.None[string]()
	}

	return optional.Some(n.String)
}

func optTime(n sql.NullTime) optional.Option[time.Time] {
	if !n.Valid {
		return optional.None[time.Time]()
	}

	return optional.Some(n.Time)
}
