package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// ErrNotFound is returned when a lookup matches no row in the requested view.
var ErrNotFound = gorm.ErrRecordNotFound

// Scope narrows a query, e.g. with a join or a subquery predicate.
type Scope = func(*gorm.DB) *gorm.DB

// Repository implements persistence for one model type T embedding models.BaseModel.
type Repository[T any] struct {
	db     *gorm.DB
	schema *schema.Schema
}

// NewRepository parses T's schema once; filters and sorts are validated against it.
func NewRepository[T any](db *gorm.DB) *Repository[T] {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		panic(fmt.Sprintf("repository: cannot parse schema of %T: %v", *new(T), err))
	}
	return &Repository[T]{db: db, schema: stmt.Schema}
}

// Table returns T's table name.
func (r *Repository[T]) Table() string {
	return r.schema.Table
}

// DB returns the connection for ctx, joining a transaction bound to it.
func (r *Repository[T]) DB(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *Repository[T]) model(ctx context.Context) *gorm.DB {
	return r.DB(ctx).Model(new(T))
}

// Column qualifies a column name with T's table.
func (r *Repository[T]) Column(name string) clause.Column {
	return clause.Column{Table: r.schema.Table, Name: name}
}

// ViewScope restricts rows by their soft-delete flag.
func (r *Repository[T]) ViewScope(mode models.ViewMode) Scope {
	return func(db *gorm.DB) *gorm.DB {
		switch mode {
		case models.ViewAll:
			return db
		case models.ViewDeleted:
			return db.Where(clause.Eq{Column: r.Column("is_deleted"), Value: true})
		default:
			return db.Where(clause.Eq{Column: r.Column("is_deleted"), Value: false})
		}
	}
}

// FilterScope applies a Filter. Invalid conditions are logged and skipped.
func (r *Repository[T]) FilterScope(f Filter) Scope {
	return func(db *gorm.DB) *gorm.DB {
		var and []clause.Expression
		for _, c := range f.And {
			if expr, ok := r.buildCondition(c); ok {
				and = append(and, expr)
			}
		}
		if len(and) > 0 {
			db = db.Where(clause.And(and...))
		}

		var or []clause.Expression
		for _, c := range f.Or {
			if expr, ok := r.buildCondition(c); ok {
				or = append(or, expr)
			}
		}
		if len(or) > 0 {
			db = db.Where(clause.Or(or...))
		}
		return db
	}
}

// SortScope orders by the given fields; unknown fields are skipped.
// With no usable field the default order is created_at DESC.
func (r *Repository[T]) SortScope(sorts []SortField) Scope {
	return func(db *gorm.DB) *gorm.DB {
		applied := false
		for _, s := range sorts {
			field := r.lookupField(s.Field)
			if field == nil {
				log.WithFields(log.Fields{"table": r.schema.Table, "field": s.Field}).Warn("Ignoring sort on unknown field")
				continue
			}
			db = db.Order(clause.OrderByColumn{Column: r.Column(field.DBName), Desc: s.Desc})
			applied = true
		}
		if !applied {
			db = db.Order(clause.OrderByColumn{Column: r.Column("created_at"), Desc: true})
		}
		return db
	}
}

// lookupField resolves a client-supplied name to a filterable column.
// Relations and fields hidden from JSON are not addressable.
func (r *Repository[T]) lookupField(name string) *schema.Field {
	field := r.schema.LookUpField(name)
	if field == nil || field.DBName == "" {
		return nil
	}
	if tag := field.Tag.Get("json"); tag == "-" {
		return nil
	}
	return field
}

func (r *Repository[T]) buildCondition(c Condition) (clause.Expression, bool) {
	logger := log.WithFields(log.Fields{"table": r.schema.Table, "filter": c.String()})

	field := r.lookupField(c.Field)
	if field == nil {
		logger.Warn("Ignoring filter on unknown field")
		return nil, false
	}
	if !c.Op.Valid() {
		logger.Warn("Ignoring filter with unknown operator")
		return nil, false
	}
	if isBlank(c.Value) {
		return nil, false
	}

	col := r.Column(field.DBName)

	switch c.Op {
	case OpIsNull:
		isNull, err := toBool(c.Value)
		if err != nil {
			logger.WithError(err).Warn("Ignoring is_null filter with non-boolean value")
			return nil, false
		}
		if isNull {
			return clause.Eq{Column: col, Value: nil}, true
		}
		return clause.Neq{Column: col, Value: nil}, true

	case OpLike:
		return clause.Like{Column: col, Value: "%" + fmt.Sprint(c.Value) + "%"}, true

	case OpILike:
		return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?)", Vars: []any{col, "%" + fmt.Sprint(c.Value) + "%"}}, true

	case OpIn, OpNotIn:
		values, err := coerceList(field, c.Value)
		if err != nil {
			logger.WithError(err).Warn("Ignoring filter with invalid value")
			return nil, false
		}
		if c.Op == OpIn {
			return clause.IN{Column: col, Values: values}, true
		}
		return clause.Not(clause.IN{Column: col, Values: values}), true
	}

	value, err := coerce(field, c.Value)
	if err != nil {
		logger.WithError(err).Warn("Ignoring filter with invalid value")
		return nil, false
	}

	switch c.Op {
	case OpNe:
		return clause.Neq{Column: col, Value: value}, true
	case OpLt:
		return clause.Lt{Column: col, Value: value}, true
	case OpLe:
		return clause.Lte{Column: col, Value: value}, true
	case OpGt:
		return clause.Gt{Column: col, Value: value}, true
	case OpGe:
		return clause.Gte{Column: col, Value: value}, true
	default:
		return clause.Eq{Column: col, Value: value}, true
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	default:
		return false, fmt.Errorf("cannot use %T as bool", v)
	}
}

// coerce converts string input to the Go type of the column so every
// dialect receives correctly typed parameters. Non-string values pass through.
func coerce(field *schema.Field, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	s = strings.TrimSpace(s)

	switch field.DataType {
	case schema.Bool:
		return strconv.ParseBool(s)
	case schema.Int, schema.Uint:
		return strconv.ParseInt(s, 10, 64)
	case schema.Float:
		return strconv.ParseFloat(s, 64)
	case schema.Time:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid time %q", s)
	}
	if strings.EqualFold(string(field.DataType), "uuid") {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q", s)
		}
		return id, nil
	}
	return s, nil
}

func coerceList(field *schema.Field, v any) ([]any, error) {
	var raw []any
	switch list := v.(type) {
	case string:
		for _, part := range strings.Split(list, ",") {
			if part = strings.TrimSpace(part); part != "" {
				raw = append(raw, part)
			}
		}
	case []string:
		for _, s := range list {
			raw = append(raw, s)
		}
	case []uuid.UUID:
		for _, id := range list {
			raw = append(raw, id)
		}
	case []any:
		raw = list
	default:
		raw = []any{v}
	}
	if len(raw) == 0 {
		return nil, errors.New("empty list")
	}

	out := make([]any, 0, len(raw))
	for _, item := range raw {
		value, err := coerce(field, item)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

// Query builds a statement over T with view mode, filter and extra scopes applied.
func (r *Repository[T]) Query(ctx context.Context, mode models.ViewMode, f Filter, scopes ...Scope) *gorm.DB {
	return r.model(ctx).
		Scopes(r.ViewScope(mode), r.FilterScope(f)).
		Scopes(scopes...)
}

// Create inserts entity without touching its associations.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return r.DB(ctx).Omit(clause.Associations).Create(entity).Error
}

// CreateBatch inserts entities in one statement.
func (r *Repository[T]) CreateBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	return r.DB(ctx).Omit(clause.Associations).Create(entities).Error
}

// Save writes every column of entity.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	return r.DB(ctx).Omit(clause.Associations).Save(entity).Error
}

// UpdateFields updates the given columns of one active row and returns rows affected.
func (r *Repository[T]) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	res := r.model(ctx).
		Where(clause.Eq{Column: r.Column("id"), Value: id}).
		Where(clause.Eq{Column: r.Column("is_deleted"), Value: false}).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// GetByID returns the row with id visible in mode, or ErrNotFound.
func (r *Repository[T]) GetByID(ctx context.Context, id uuid.UUID, mode models.ViewMode, scopes ...Scope) (*T, error) {
	var entity T
	err := r.Query(ctx, mode, Filter{}, scopes...).
		Where(clause.Eq{Column: r.Column("id"), Value: id}).
		First(&entity).Error
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// GetByIDs returns the rows among ids visible in mode, in no particular order.
func (r *Repository[T]) GetByIDs(ctx context.Context, ids []uuid.UUID, mode models.ViewMode, scopes ...Scope) ([]T, error) {
	items := []T{}
	if len(ids) == 0 {
		return items, nil
	}
	err := r.Query(ctx, mode, Filter{}, scopes...).
		Where(clause.IN{Column: r.Column("id"), Values: uuidValues(ids)}).
		Find(&items).Error
	return items, err
}

// FindOne returns the first row matching f, or ErrNotFound.
func (r *Repository[T]) FindOne(ctx context.Context, f Filter, mode models.ViewMode, scopes ...Scope) (*T, error) {
	var entity T
	if err := r.Query(ctx, mode, f, scopes...).Take(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindOneForUpdate is FindOne holding a row lock until the transaction ends.
// SQLite has no row locks; its single writer serializes instead.
func (r *Repository[T]) FindOneForUpdate(ctx context.Context, f Filter) (*T, error) {
	var entity T
	q := r.Query(ctx, models.ViewActive, f)
	if r.supportsRowLocks() {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	if err := q.Take(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// LockByID loads an active row with a row lock.
func (r *Repository[T]) LockByID(ctx context.Context, id uuid.UUID) (*T, error) {
	return r.FindOneForUpdate(ctx, Where("id", id))
}

func (r *Repository[T]) supportsRowLocks() bool {
	return r.db.Dialector.Name() != "sqlite"
}

// List returns every row matching f.
func (r *Repository[T]) List(ctx context.Context, f Filter, mode models.ViewMode, sorts []SortField, scopes ...Scope) ([]T, error) {
	items := []T{}
	err := r.Query(ctx, mode, f, scopes...).Scopes(r.SortScope(sorts)).Find(&items).Error
	return items, err
}

// Count counts rows matching f.
func (r *Repository[T]) Count(ctx context.Context, f Filter, mode models.ViewMode, scopes ...Scope) (int64, error) {
	var total int64
	err := r.Query(ctx, mode, f, scopes...).Count(&total).Error
	return total, err
}

// Exists reports whether any row matches f.
func (r *Repository[T]) Exists(ctx context.Context, f Filter, mode models.ViewMode, scopes ...Scope) (bool, error) {
	var ids []uuid.UUID
	err := r.Query(ctx, mode, f, scopes...).Limit(1).Pluck(r.schema.Table+".id", &ids).Error
	return len(ids) > 0, err
}

// FindPaged counts over the filtered statement, then fetches one page.
func (r *Repository[T]) FindPaged(ctx context.Context, q PageQuery) (*Page[T], error) {
	q = q.Normalize()

	base := r.Query(ctx, q.ViewMode, q.Filter, q.Scopes...).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count %s: %w", r.schema.Table, err)
	}

	page := NewPage[T](total, q.Page, q.PerPage)
	if total == 0 {
		return page, nil
	}

	fetch := base.Scopes(r.SortScope(q.Sort)).Offset(q.Offset()).Limit(q.PerPage)
	if q.Preload != nil {
		fetch = q.Preload(fetch)
	}
	if err := fetch.Find(&page.Items).Error; err != nil {
		return nil, fmt.Errorf("page %s: %w", r.schema.Table, err)
	}
	return page, nil
}

// SoftDelete marks one active row deleted.
func (r *Repository[T]) SoftDelete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (int64, error) {
	return r.SoftDeleteByIDs(ctx, []uuid.UUID{id}, actor)
}

// SoftDeleteByIDs marks active rows deleted and returns how many changed.
func (r *Repository[T]) SoftDeleteByIDs(ctx context.Context, ids []uuid.UUID, actor *uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	res := r.model(ctx).
		Where(clause.IN{Column: r.Column("id"), Values: uuidValues(ids)}).
		Where(clause.Eq{Column: r.Column("is_deleted"), Value: false}).
		UpdateColumns(map[string]any{
			"is_deleted": true,
			"deleted_at": now,
			"deleted_by": actor,
			"updated_at": now,
			"updated_by": actor,
		})
	return res.RowsAffected, res.Error
}

// RestoreByIDs clears the soft-delete flag of deleted rows.
func (r *Repository[T]) RestoreByIDs(ctx context.Context, ids []uuid.UUID, actor *uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.model(ctx).
		Where(clause.IN{Column: r.Column("id"), Values: uuidValues(ids)}).
		Where(clause.Eq{Column: r.Column("is_deleted"), Value: true}).
		UpdateColumns(map[string]any{
			"is_deleted": false,
			"deleted_at": nil,
			"deleted_by": nil,
			"updated_at": time.Now().UTC(),
			"updated_by": actor,
		})
	return res.RowsAffected, res.Error
}

// HardDeleteByIDs removes rows permanently, whatever their soft-delete state.
// Callers clear link rows first.
func (r *Repository[T]) HardDeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.DB(ctx).
		Where(clause.IN{Column: r.Column("id"), Values: uuidValues(ids)}).
		Delete(new(T))
	return res.RowsAffected, res.Error
}

// AreIDsValid reports whether every id refers to an active row.
func (r *Repository[T]) AreIDsValid(ctx context.Context, ids []uuid.UUID) (bool, error) {
	unique := UniqueIDs(ids)
	if len(unique) == 0 {
		return true, nil
	}
	var count int64
	err := r.Query(ctx, models.ViewActive, Filter{}).
		Where(clause.IN{Column: r.Column("id"), Values: uuidValues(unique)}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == int64(len(unique)), nil
}

// UniqueIDs drops duplicates and nil UUIDs, keeping first-seen order.
func UniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uuidValues(ids []uuid.UUID) []any {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return values
}
