package server

import (
	"fmt"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/robfig/cron"

	"github.com/microcosm-cc/appstore/models"
)

// StartServer owns the http process and cron jobs
func StartServer(port int64, reg *models.Registry) {

	// Set up the cron jobs
	c := cron.New()
	for schedule, job := range jobs(reg) {
		c.AddFunc(schedule, job)
	}
	c.Start()

	r := mux.NewRouter()

	// The history route must be registered before the {name} route or mux
	// will treat "history" as a store name
	for _, route := range routes(reg) {
		r.HandleFunc(route.path, route.handler)
	}

	http.Handle("/", r)

	// Start the HTTP server
	glog.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), nil))
}
