package controller

import (
	"net/http"

	"github.com/microcosm-cc/appstore/models"
)

// StoresController is a web controller
type StoresController struct {
	registry *models.Registry
}

// StoresHandler is a web handler
func StoresHandler(reg *models.Registry) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		c := models.MakeContext(r, w)
		ctl := StoresController{registry: reg}

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

// ReadMany handles GET: the aggregate snapshot of every store plus the
// global current version
func (ctl *StoresController) ReadMany(c *models.Context) {
	data, status, err := ctl.registry.FullSnapshot()
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.RespondWithData(data)
}
