package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tooldir/internal/model"
	"github.com/xxxsen/tooldir/internal/pkg/dbutil"
)

type FeedbackRepo struct {
	db *sql.DB
}

func NewFeedbackRepo(db *sql.DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

func (r *FeedbackRepo) Create(ctx context.Context, item *model.Feedback) error {
	data := map[string]interface{}{
		"id":      item.ID,
		"email":   item.Email,
		"content": item.Content,
		"ctime":   item.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("feedback", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *FeedbackRepo) ListByEmail(ctx context.Context, email string) ([]*model.Feedback, error) {
	where := map[string]interface{}{"email": email, "_orderby": "ctime desc"}
	sqlStr, args, err := builder.BuildSelect("feedback", where, []string{"id", "email", "content", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]*model.Feedback, 0)
	for rows.Next() {
		var item model.Feedback
		if err := rows.Scan(&item.ID, &item.Email, &item.Content, &item.Ctime); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
