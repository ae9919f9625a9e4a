package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/andrewabdallah/taskmanager/internal/dto"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

func parsePaging(c *gin.Context) (page, size int, err error) {
	page = 1
	size = defaultPageSize
	if v := c.Query("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, errors.New("page must be a positive integer")
		}
	}
	if v := c.Query("size"); v != "" {
		size, err = strconv.Atoi(v)
		if err != nil || size < 1 {
			return 0, 0, errors.New("size must be a positive integer")
		}
		if size > maxPageSize {
			size = maxPageSize
		}
	}
	return page, size, nil
}

// paginate slices items into the requested page. A page past the end of a
// non-empty result set is reported as missing; page 1 of an empty set is valid.
func paginate(items []dto.TaskResponse, page, size int) (dto.ListTasksResponse, bool) {
	total := len(items)
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		return dto.ListTasksResponse{}, false
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []dto.TaskResponse{}
	}
	return dto.ListTasksResponse{
		Paging: dto.Paging{
			Page:          page,
			Size:          size,
			TotalPages:    totalPages,
			TotalElements: total,
		},
		Items: pageItems,
	}, true
}

// paginateDisabled wraps a full result set in a single-page envelope.
func paginateDisabled(items []dto.TaskResponse) dto.ListTasksResponse {
	if items == nil {
		items = []dto.TaskResponse{}
	}
	return dto.ListTasksResponse{
		Paging: dto.Paging{
			Page:          1,
			Size:          len(items),
			TotalPages:    1,
			TotalElements: len(items),
		},
		Items: items,
	}
}
