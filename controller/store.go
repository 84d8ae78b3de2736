package controller

import (
	"net/http"

	"github.com/microcosm-cc/appstore/models"
)

// StoreController is a web controller
type StoreController struct {
	registry *models.Registry
}

// StoreHandler is a web handler
func StoreHandler(reg *models.Registry) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		c := models.MakeContext(r, w)
		ctl := StoreController{registry: reg}

		switch c.GetHTTPMethod() {
		case "OPTIONS":
			c.RespondWithOptions([]string{"OPTIONS", "GET", "HEAD", "POST"})
		case "GET":
			ctl.ReadMany(c)
		case "HEAD":
			ctl.ReadMany(c)
		case "POST":
			ctl.Create(c)
		default:
			c.RespondWithStatus(http.StatusMethodNotAllowed)
		}
	}
}

// ReadMany handles GET: one store's full list plus its most relevant
// version (the history ledger's latest for this store, falling back to the
// global current version)
func (ctl *StoreController) ReadMany(c *models.Context) {
	name := c.GetStoreName()

	s, status, err := ctl.registry.Lookup(name)
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	list, status, err := s.Data()
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.RespondWithData(map[string]interface{}{
		name:      list,
		"version": ctl.registry.StoreVersion(name),
	})
}

// Create handles POST
func (ctl *StoreController) Create(c *models.Context) {
	s, status, err := ctl.registry.Lookup(c.GetStoreName())
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	payload, status, err := c.GetBody()
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	rep, status, err := s.Create(payload)
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.Respond(rep, http.StatusCreated, nil)
}
