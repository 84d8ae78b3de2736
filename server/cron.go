package server

import (
	"github.com/golang/glog"

	"github.com/microcosm-cc/appstore/models"
)

// Field name   | Mandatory? | Allowed values  | Allowed special characters
// ----------   | ---------- | --------------  | --------------------------
// Seconds      | Yes        | 0-59            | * / , -
// Minutes      | Yes        | 0-59            | * / , -
// Hours        | Yes        | 0-23            | * / , -
// Day of month | Yes        | 1-31            | * / , - ?
// Month        | Yes        | 1-12 or JAN-DEC | * / , -
// Day of week  | Yes        | 0-6 or SUN-SAT  | * / , - ?

func jobs(reg *models.Registry) map[string]func() {
	if reg.NoCache {
		// Nothing to keep warm when the cache mirror is disabled
		return map[string]func(){}
	}

	return map[string]func(){
		//SS MI HH  DOM MON DOW
		"  0  0     3    *   *   *": func() { // Every day at 3am
			version, _, err := reg.ReloadAll()
			if err != nil {
				glog.Errorf("scheduled store reload failed: %+v", err)
				return
			}
			if glog.V(2) {
				glog.Infof("store reloaded at version %d", version)
			}
		},
	}
}
