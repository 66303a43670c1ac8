package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/HughODwyer90/hugh.casa/report"
	"github.com/HughODwyer90/hugh.casa/retry"
)

const (
	runsEndpoint = "/report/v1/runs"
)

var (
	port    int
	tlsCert string
	tlsKey  string
)

type ReportServer struct {
	Store    *report.Store
	Metrics  *report.Metrics
	Registry *prometheus.Registry
	Server   *http.Server
}

func newReportServer(store *report.Store) *ReportServer {
	reg := prometheus.NewRegistry()
	return &ReportServer{
		Store:    store,
		Metrics:  report.NewMetrics(reg),
		Registry: reg,
	}
}

// record keeps a finished run for the report endpoints and counts it.
func (rs *ReportServer) record(l *report.Log) {
	rs.Metrics.Observe(l)
	if err := rs.Store.Put(l); err != nil {
		glog.Warningf("unable to store report %s: %s", l.ID, err)
	}
}

type runList struct {
	Runs []report.Summary `json:"runs"`
}

func (rs *ReportServer) listHandler(ctx *gin.Context) {
	out := runList{Runs: []report.Summary{}}
	for _, l := range rs.Store.List() {
		s := l.Summary()
		s.Entries = nil
		out.Runs = append(out.Runs, s)
	}
	ctx.JSON(http.StatusOK, out)
}

func (rs *ReportServer) runHandler(ctx *gin.Context) {
	l, ok := rs.Store.Get(ctx.Param("id"))
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}
	if ctx.Query("format") == "text" {
		ctx.Header("Content-Type", "text/plain; charset=utf-8")
		ctx.Status(http.StatusOK)
		l.WriteTo(ctx.Writer)
		return
	}
	ctx.JSON(http.StatusOK, l.Summary())
}

func newRouter(rs *ReportServer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET(runsEndpoint, rs.listHandler)
	router.GET(runsEndpoint+"/:id", rs.runHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(rs.Registry, promhttp.HandlerOpts{})))
	return router
}

// backupLoop runs a backup every interval until ctx is done.
func backupLoop(ctx context.Context, e *env, rs *ReportServer, every time.Duration) {
	for {
		job, err := e.backupJob()
		if err != nil {
			glog.Warningf("unable to set up backup: %s", err)
		} else {
			log := report.New("backup")
			if err := job.Run(ctx, log); err != nil {
				glog.Warningf("backup %s finished with errors: %s", log.ID, err)
			}
			log.Finish()
			rs.record(log)
		}
		if err := retry.Wait(ctx, every); err != nil {
			return
		}
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run backups periodically and serve their reports over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		store, err := report.NewStore(e.conf.ReportTTL.Std())
		if err != nil {
			return err
		}
		defer store.Close()

		gin.SetMode(gin.ReleaseMode)
		srv := newReportServer(store)
		srv.Server = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(srv),
		}

		ctx := cmd.Context()
		go backupLoop(ctx, e, srv, e.conf.BackupEvery.Std())
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Server.Shutdown(shutdown)
		}()

		if tlsCert != "" && tlsKey != "" {
			err = srv.Server.ListenAndServeTLS(tlsCert, tlsKey)
		} else {
			err = srv.Server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func registerServeFlags(flags *pflag.FlagSet) {
	flags.IntVar(&port, "port", 8080, "Listening port for webserver.")
	flags.StringVar(&tlsCert, "tlsCert", "", "Path to TLS Certificate. If this and -tlsKey is specified, service runs as TLS server.")
	flags.StringVar(&tlsKey, "tlsKey", "", "Path to TLS Key. If this and -tlsCert is specified, service runs as TLS server.")
}

func init() {
	registerServeFlags(serveCmd.Flags())
}
