package repository

import (
	"context"
	"fmt"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// linkTable maintains a two-column many-to-many table such as recipe_tags.
type linkTable struct {
	db       *gorm.DB
	name     string
	ownerCol string
	refCol   string
}

func (l linkTable) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, l.db)
}

// Replace makes refIDs the complete link set of owner.
func (l linkTable) Replace(ctx context.Context, owner uuid.UUID, refIDs []uuid.UUID) error {
	if err := l.conn(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", l.name, l.ownerCol), owner,
	).Error; err != nil {
		return fmt.Errorf("clear %s: %w", l.name, err)
	}
	return l.Add(ctx, owner, refIDs...)
}

// Add links owner to refIDs, skipping links that already exist.
func (l linkTable) Add(ctx context.Context, owner uuid.UUID, refIDs ...uuid.UUID) error {
	refIDs = UniqueIDs(refIDs)
	if len(refIDs) == 0 {
		return nil
	}

	var existing []uuid.UUID
	if err := l.conn(ctx).Table(l.name).
		Where(fmt.Sprintf("%s = ? AND %s IN ?", l.ownerCol, l.refCol), owner, uuidValues(refIDs)).
		Pluck(l.refCol, &existing).Error; err != nil {
		return fmt.Errorf("read %s: %w", l.name, err)
	}
	have := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	rows := make([]map[string]any, 0, len(refIDs))
	for _, ref := range refIDs {
		if _, ok := have[ref]; ok {
			continue
		}
		rows = append(rows, map[string]any{l.ownerCol: owner, l.refCol: ref})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := l.conn(ctx).Table(l.name).Create(rows).Error; err != nil {
		return fmt.Errorf("insert %s: %w", l.name, err)
	}
	return nil
}

// Remove unlinks owner from refIDs.
func (l linkTable) Remove(ctx context.Context, owner uuid.UUID, refIDs ...uuid.UUID) error {
	if len(refIDs) == 0 {
		return nil
	}
	return l.conn(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s IN ?", l.name, l.ownerCol, l.refCol),
		owner, uuidValues(refIDs),
	).Error
}

// RefIDs returns the references linked to owner.
func (l linkTable) RefIDs(ctx context.Context, owner uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := l.conn(ctx).Table(l.name).Where(fmt.Sprintf("%s = ?", l.ownerCol), owner).Pluck(l.refCol, &ids).Error
	return ids, err
}

// Reassign moves every link pointing at sources to target. Owners already
// linked to target keep a single link.
func (l linkTable) Reassign(ctx context.Context, sources []uuid.UUID, target uuid.UUID) (int64, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	db := l.conn(ctx)
	insert := db.Exec(fmt.Sprintf(
		"INSERT INTO %[1]s (%[2]s, %[3]s) SELECT DISTINCT %[2]s, ? FROM %[1]s WHERE %[3]s IN ? AND %[2]s NOT IN (SELECT %[2]s FROM %[1]s WHERE %[3]s = ?)",
		l.name, l.ownerCol, l.refCol,
	), target, uuidValues(sources), target)
	if insert.Error != nil {
		return 0, fmt.Errorf("reassign %s: %w", l.name, insert.Error)
	}
	if err := l.DeleteByRefs(ctx, sources); err != nil {
		return 0, err
	}
	return insert.RowsAffected, nil
}

// DeleteByRefs drops every link pointing at refIDs.
func (l linkTable) DeleteByRefs(ctx context.Context, refIDs []uuid.UUID) error {
	if len(refIDs) == 0 {
		return nil
	}
	if err := l.conn(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s IN ?", l.name, l.refCol), uuidValues(refIDs),
	).Error; err != nil {
		return fmt.Errorf("delete %s: %w", l.name, err)
	}
	return nil
}

// DeleteByOwners drops every link of the given owners.
func (l linkTable) DeleteByOwners(ctx context.Context, owners []uuid.UUID) error {
	if len(owners) == 0 {
		return nil
	}
	if err := l.conn(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s IN ?", l.name, l.ownerCol), uuidValues(owners),
	).Error; err != nil {
		return fmt.Errorf("delete %s: %w", l.name, err)
	}
	return nil
}

// usageByActiveRecipes counts, per referenced id, the distinct active recipes
// reaching it through table.col.
func usageByActiveRecipes(ctx context.Context, db *gorm.DB, table, col string, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID    uuid.UUID
		Count int64
	}
	err := database.Conn(ctx, db).
		Table(table).
		Select(fmt.Sprintf("%s.%s AS id, COUNT(DISTINCT recipes.id) AS count", table, col)).
		Joins(fmt.Sprintf("JOIN recipes ON recipes.id = %s.recipe_id AND recipes.is_deleted = ?", table), false).
		Where(fmt.Sprintf("%s.%s IN ?", table, col), uuidValues(ids)).
		Group(fmt.Sprintf("%s.%s", table, col)).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count usage in %s: %w", table, err)
	}
	for _, row := range rows {
		out[row.ID] = row.Count
	}
	return out, nil
}
