package requests

import (
	domain "github.com/postora/postora-server/internal/domain/upload"
)

// ListUploadsQuery holds the GET /v1/uploads query parameters.
type ListUploadsQuery struct {
	Limit    int    `form:"limit" validate:"gte=0"`
	Offset   int    `form:"offset" validate:"gte=0"`
	Category string `form:"category" validate:"omitempty,max=32"`
	UserID   string `form:"user_id" validate:"omitempty,max=255"`
}

// ToDomain converts the query to a list filter. Category must already be parsed.
func (q *ListUploadsQuery) ToDomain(category domain.Category) domain.ListFilter {
	filter := domain.ListFilter{
		Limit:    q.Limit,
		Offset:   q.Offset,
		Category: category,
	}
	if q.UserID != "" {
		userID := q.UserID
		filter.UserID = &userID
	}
	return filter
}
