package controller

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/microcosm-cc/appstore/models"
)

// HistoryController is a web controller
type HistoryController struct {
	registry *models.Registry
}

// HistoryHandler is a web handler
func HistoryHandler(reg *models.Registry) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		c := models.MakeContext(r, w)
		ctl := HistoryController{registry: reg}

		switch c.GetHTTPMethod() {
		case "OPTIONS":
			c.RespondWithOptions([]string{"OPTIONS", "GET", "HEAD"})
		case "GET":
			ctl.ReadMany(c)
		case "HEAD":
			ctl.ReadMany(c)
		default:
			c.RespondWithStatus(http.StatusMethodNotAllowed)
		}
	}
}

// ReadMany handles GET: history records in chronological order.
// ?after=V returns records with a version strictly greater than V,
// ?since=V returns records with a version greater than or equal to V, and
// ?store=name restricts the records to one store.
func (ctl *HistoryController) ReadMany(c *models.Context) {
	var q models.HistoryQueryType

	query := c.Request.URL.Query()

	for param, dst := range map[string]*int64{
		"after": &q.After,
		"since": &q.Since,
	} {
		raw := query.Get(param)
		if raw == "" {
			continue
		}

		version, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.RespondWithErrorMessage(
				fmt.Sprintf("the supplied %s ('%s') is not a number", param, raw),
				http.StatusBadRequest,
			)
			return
		}
		*dst = version
	}

	q.StoreName = query.Get("store")

	records, status, err := ctl.registry.History.Query(q)
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.RespondWithData(records)
}
