package controller

import (
	"net/http"

	"github.com/microcosm-cc/appstore/models"
)

// StoreItemController is a web controller
type StoreItemController struct {
	registry *models.Registry
}

// StoreItemHandler is a web handler
func StoreItemHandler(reg *models.Registry) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		c := models.MakeContext(r, w)
		ctl := StoreItemController{registry: reg}

		switch c.GetHTTPMethod() {
		case "OPTIONS":
			c.RespondWithOptions([]string{"OPTIONS", "GET", "HEAD", "PUT", "DELETE"})
		case "GET":
			ctl.Read(c)
		case "HEAD":
			ctl.Read(c)
		case "PUT":
			ctl.Update(c)
		case "DELETE":
			ctl.Delete(c)
		default:
			c.RespondWithStatus(http.StatusMethodNotAllowed)
		}
	}
}

func (ctl *StoreItemController) storeAndID(c *models.Context) (*models.Store, int64, bool) {
	s, status, err := ctl.registry.Lookup(c.GetStoreName())
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return nil, 0, false
	}

	itemID, status, err := c.GetItemID()
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return nil, 0, false
	}

	return s, itemID, true
}

// Read handles GET
func (ctl *StoreItemController) Read(c *models.Context) {
	s, itemID, ok := ctl.storeAndID(c)
	if !ok {
		return
	}

	rep, status, err := s.GetOne(itemID)
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.RespondWithData(rep)
}

// Update handles PUT
func (ctl *StoreItemController) Update(c *models.Context) {
	s, itemID, ok := ctl.storeAndID(c)
	if !ok {
		return
	}

	payload, status, err := c.GetBody()
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	rep, status, err := s.Update(itemID, payload)
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.RespondWithData(rep)
}

// Delete handles DELETE
func (ctl *StoreItemController) Delete(c *models.Context) {
	s, itemID, ok := ctl.storeAndID(c)
	if !ok {
		return
	}

	status, err := s.Delete(itemID)
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.RespondWithOK()
}
