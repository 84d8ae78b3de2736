package server

import (
	"net/http"

	"github.com/microcosm-cc/appstore/controller"
	"github.com/microcosm-cc/appstore/models"
)

type route struct {
	path    string
	handler func(http.ResponseWriter, *http.Request)
}

// routes returns every handler in registration order (most specific paths
// first)
func routes(reg *models.Registry) []route {
	return []route{
		{"/api/v1/store", controller.StoresHandler(reg)},
		{"/api/v1/store/history", controller.HistoryHandler(reg)},
		{"/api/v1/store/{name:[a-z]+(?:_[a-z]+)*}", controller.StoreHandler(reg)},
		{"/api/v1/store/{name:[a-z]+(?:_[a-z]+)*}/{id:[0-9]+}", controller.StoreItemHandler(reg)},
	}
}
