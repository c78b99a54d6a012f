package v1

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/query"
)

// dayLayout - формат параметров from/to
const dayLayout = "2006-01-02"

// parseFilter читает критерии выборки из строки запроса:
// q, status, sort, category, from, to, lat, lon, radius, mine.
func parseFilter(c *gin.Context) (query.Filter, bool, error) {
	var f query.Filter
	var err error

	f.Text = c.Query("q")
	f.Category = c.Query("category")
	if f.Bucket, err = query.ParseBucket(c.Query("status")); err != nil {
		return f, false, err
	}
	if f.Sort, err = query.ParseSort(c.Query("sort")); err != nil {
		return f, false, err
	}

	if from, to := c.Query("from"), c.Query("to"); from != "" || to != "" {
		f.Range, err = parseRange(from, to)
		if err != nil {
			return f, false, err
		}
	}

	if lat, lon, radius := c.Query("lat"), c.Query("lon"), c.Query("radius"); lat != "" || lon != "" || radius != "" {
		f.Near, err = parseNear(lat, lon, radius)
		if err != nil {
			return f, false, err
		}
	}

	mine := false
	if raw := c.Query("mine"); raw != "" {
		if mine, err = strconv.ParseBool(raw); err != nil {
			return f, false, fmt.Errorf("%w: mine must be a boolean", models.ErrInvalidInput)
		}
	}

	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return f, false, err
	}
	return f, mine, nil
}

// parseRange разбирает даты вида 2006-01-02; to включает весь день
func parseRange(from, to string) (*query.DateRange, error) {
	r := &query.DateRange{From: math.MinInt64, To: math.MaxInt64}
	if from != "" {
		day, err := time.ParseInLocation(dayLayout, from, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: from must be YYYY-MM-DD", models.ErrInvalidInput)
		}
		r.From = day.UnixMilli()
	}
	if to != "" {
		day, err := time.ParseInLocation(dayLayout, to, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: to must be YYYY-MM-DD", models.ErrInvalidInput)
		}
		r.To = day.AddDate(0, 0, 1).UnixMilli() - 1
	}
	return r, nil
}

func parseNear(lat, lon, radius string) (*query.GeoRadius, error) {
	if lat == "" || lon == "" || radius == "" {
		return nil, fmt.Errorf("%w: lat, lon and radius go together", models.ErrInvalidInput)
	}
	center, err := models.ParseLocation(lat + "," + lon)
	if err != nil {
		return nil, err
	}
	meters, err := strconv.ParseFloat(radius, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: radius must be a number", models.ErrInvalidInput)
	}
	return &query.GeoRadius{Center: center, RadiusMeters: meters}, nil
}

// parseGroup читает group: пусто или none - без группировки, day - по дням
func parseGroup(c *gin.Context) (bool, error) {
	switch c.Query("group") {
	case "", "none":
		return false, nil
	case "day":
		return true, nil
	}
	return false, fmt.Errorf("%w: group must be day or none", models.ErrInvalidInput)
}

// applyPatch переносит измененные поля на копию фильтра
func applyPatch(f query.Filter, p LiveFilterPatch) (query.Filter, error) {
	var err error
	if p.Q != nil {
		f.Text = *p.Q
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Status != nil {
		if f.Bucket, err = query.ParseBucket(*p.Status); err != nil {
			return f, err
		}
	}
	if p.Sort != nil {
		if f.Sort, err = query.ParseSort(*p.Sort); err != nil {
			return f, err
		}
	}

	switch {
	case p.ClearRange:
		f.Range = nil
	case p.From != nil || p.To != nil:
		if f.Range, err = parseRange(models.StringValue(p.From), models.StringValue(p.To)); err != nil {
			return f, err
		}
	}

	switch {
	case p.ClearNear:
		f.Near = nil
	case p.Near != nil:
		f.Near = &query.GeoRadius{
			Center:       models.Location{Lat: *p.Near.Latitude, Lon: *p.Near.Longitude},
			RadiusMeters: p.Near.RadiusMeters,
		}
	}

	f = f.Normalize()
	return f, f.Validate()
}
