package ftzapi

import (
	"context"
	"fmt"
	"net/url"
	"time"

	perr "overtid/internal/platform/errors"
)

const pageSize = 100

// Employees lists the non-deleted employees from the core API
func (c *Client) Employees(ctx context.Context) ([]Employee, error) {
	var out []Employee
	if err := c.getJSON(ctx, c.opts.CoreBaseURL+"/Employee/search?ShowDeleted=false", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TimeRegistrations fetches every completed registration for the employee in
// the UTC window, paging until the accumulated count reaches totalCount or a
// short page arrives
func (c *Client) TimeRegistrations(ctx context.Context, employeeID int, fromUTC, toUTC time.Time) ([]TimeRegistration, error) {
	if c.opts.TimeBaseURL == "" {
		return nil, perr.Internalf("time api url not configured")
	}

	var all []TimeRegistration
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("EmployeeIds", fmt.Sprint(employeeID))
		q.Set("SortOrder", "Descending")
		q.Set("ShowOnlyCompleted", "true")
		q.Set("StartTimeUtc", fromUTC.UTC().Format("2006-01-02T15:04:05Z"))
		q.Set("EndTimeUtc", toUTC.UTC().Format("2006-01-02T15:04:05Z"))
		q.Set("PageNumber", fmt.Sprint(page))
		q.Set("PageSize", fmt.Sprint(pageSize))

		var resp searchResponse
		if err := c.getJSON(ctx, c.opts.TimeBaseURL+"/timeRegistration/search?"+q.Encode(), &resp); err != nil {
			return nil, err
		}

		all = append(all, resp.Results...)
		c.log.Debug().
			Int("page", page).
			Int("got", len(resp.Results)).
			Int("total", resp.TotalCount).
			Msg("time registration page fetched")

		if len(all) >= resp.TotalCount || len(resp.Results) < pageSize {
			return all, nil
		}
	}
}
