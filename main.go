package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	// Expose profiling info at /debug/pprof/
	_ "net/http/pprof"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"github.com/microcosm-cc/appstore/cache"
	conf "github.com/microcosm-cc/appstore/config"
	h "github.com/microcosm-cc/appstore/helpers"
	"github.com/microcosm-cc/appstore/models"
	"github.com/microcosm-cc/appstore/pubsub"
	"github.com/microcosm-cc/appstore/queue"
	"github.com/microcosm-cc/appstore/server"
)

var reloadStore = flag.Bool(
	"reloadstore",
	false,
	"reload every store's cache snapshot and exit",
)

const rebuildWorkers = 2

func main() {

	// Go as fast as we can
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Parse flags, also used to init glog
	flag.Parse()

	// 100 megabytes max before rolling the log files
	glog.MaxSize = 1024 * 1024 * 100

	// Catch closing signal and flush logs
	sigc := make(chan os.Signal, 1)
	signal.Notify(
		sigc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	go func() {
		<-sigc
		glog.Flush()
		os.Exit(1)
	}()

	noCache := conf.ConfigBool[conf.NoCache]

	// We read the config file (by importing it) and it's our responsibility
	// to set up the database connection, cache and queue before we start the
	// server
	if glog.V(2) {
		glog.Infof(
			"Initialising DB connection on %s:%d for database %s",
			conf.ConfigStrings[conf.DatabaseHost],
			conf.ConfigInt64s[conf.DatabasePort],
			conf.ConfigStrings[conf.DatabaseName],
		)
	}
	h.InitDBConnection(h.DBConfig{
		Host:     conf.ConfigStrings[conf.DatabaseHost],
		Port:     conf.ConfigInt64s[conf.DatabasePort],
		Database: conf.ConfigStrings[conf.DatabaseName],
		Username: conf.ConfigStrings[conf.DatabaseUsername],
		Password: conf.ConfigStrings[conf.DatabasePassword],
	})

	if noCache {
		// Deterministic testing mode: every read recomputes from the
		// database, rebuilds are never scheduled, the snapshot mirror and
		// version stamp live in process memory
		glog.Warning("nocache is set, the cache mirror is disabled")
		cache.InitCacheBackend(cache.NewMemoryBackend())
	} else {
		if glog.V(2) {
			glog.Infof(
				"Initialising cache connection to %s:%d",
				conf.ConfigStrings[conf.MemcachedHost],
				conf.ConfigInt64s[conf.MemcachedPort],
			)
		}
		cache.InitCacheBackend(cache.NewMemcacheBackend(
			conf.ConfigStrings[conf.MemcachedHost],
			conf.ConfigInt64s[conf.MemcachedPort],
		))

		pubsub.InitPubSub(
			conf.ConfigStrings[conf.RedisHost],
			conf.ConfigInt64s[conf.RedisPort],
		)
	}

	reg := models.NewRegistry(
		models.NewVersionCounter(),
		models.NewPgHistoryStore(),
		nil,
		noCache,
	)
	reg.Register(models.NewItemStore())
	reg.Register(models.NewCategoryStore())

	if !noCache {
		rdb := redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf(
				"%s:%d",
				conf.ConfigStrings[conf.RedisHost],
				conf.ConfigInt64s[conf.RedisPort],
			),
		})

		q := queue.NewRedisQueue(rdb, queue.DefaultKey, reg.RunRebuild, rebuildWorkers)
		defer q.Close()
		reg.Scheduler = q

		// Other instances of this binary consume the same job list
		reg.Locks = queue.NewRedisLocker(rdb)
	}

	if *reloadStore {
		if noCache {
			glog.Warning("store not reloaded as nocache is set")
			glog.Flush()
			return
		}

		version, _, err := reg.ReloadAll()
		if err != nil {
			glog.Flush()
			glog.Fatal(err)
		}

		fmt.Printf("store reloaded at version %d\n", version)
		glog.Flush()
		return
	}

	if glog.V(2) {
		glog.Infof(
			"Starting server on port %d",
			conf.ConfigInt64s[conf.ListenPort],
		)
	}
	server.StartServer(conf.ConfigInt64s[conf.ListenPort], reg)
}
