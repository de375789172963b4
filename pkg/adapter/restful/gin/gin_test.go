// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package gin_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/momeni/migrun/pkg/adapter/metrics"
	"github.com/momeni/migrun/pkg/adapter/restful/gin"
	"github.com/momeni/migrun/pkg/adapter/restful/gin/routes"
	"github.com/momeni/migrun/pkg/adapter/restful/gin/unitsrs"
	"github.com/momeni/migrun/pkg/core/expr"
	"github.com/momeni/migrun/pkg/core/mask"
	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/props"
	"github.com/momeni/migrun/pkg/core/repo"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

type dataSource struct{}

func (dataSource) Validate(context.Context) error { return nil }

func (dataSource) Probe(context.Context) (string, error) {
	return "jdbc:postgresql://db:5432/orders", nil
}

func (dataSource) Close() error { return nil }

// engine fails its runs after the first one when fail is set and
// blocks them on gate when it is not nil.
type engine struct {
	mu    sync.Mutex
	runs  int
	fail  bool
	gate  chan struct{}
	entry chan struct{}
}

func (e *engine) Migrate(context.Context) (*model.MigrationOutcome, error) {
	e.mu.Lock()
	e.runs++
	first, fail, gate := e.runs == 1, e.fail, e.gate
	e.mu.Unlock()
	if !first && gate != nil {
		e.entry <- struct{}{}
		<-gate
	}
	if !first && fail {
		return nil, errors.New("syntax error at or near SELEC")
	}
	return &model.MigrationOutcome{
		Success: true, Count: 1, DatabaseLabel: "orders",
		TargetVersionLabel: "3",
	}, nil
}

type loader struct{ e *engine }

func (l loader) Load(
	context.Context, repo.DataSource, model.ResolvedConfiguration, model.Vendor,
) (repo.Engine, error) {
	return l.e, nil
}

type GinTestSuite struct {
	suite.Suite

	Ctx      context.Context
	Registry *migrationuc.Registry
	Metrics  *prometheus.Registry
	Gin      *gin.Engine
	Engine   *engine
}

func TestGinTestSuite(t *testing.T) {
	gin.SetMode(gin.Test)
	suite.Run(t, &GinTestSuite{Ctx: context.Background()})
}

func (gts *GinTestSuite) SetupTest() {
	gts.Registry = migrationuc.NewRegistry()
	gts.Metrics = prometheus.NewRegistry()
	gts.Engine = &engine{}
	gts.Gin = gin.New(gin.Logger(nil), gin.Recovery())
	routes.Register(gts.Gin, gts.Registry, gts.Metrics)

	c, err := migrationuc.New("orders",
		func(context.Context) (repo.DataSource, error) {
			return dataSource{}, nil
		},
		gts.Registry,
		&model.ResolutionResult{
			Target: "jdbc:postgresql://db:5432/orders",
			Properties: model.ResolvedConfiguration{
				props.KeyURL:      "jdbc:postgresql://db:5432/orders",
				props.KeyUser:     "app",
				props.KeyPassword: "s3cret",
			},
			Origin: model.TargetPerUnit,
		},
		loader{e: gts.Engine},
		migrationuc.WithProcess(expr.NewProcess(nil, nil)),
		migrationuc.WithObserver(metrics.New(gts.Metrics)),
		migrationuc.WithProbeRetry(1, time.Millisecond),
	)
	gts.Require().NoError(err)
	gts.Require().NoError(c.Start(gts.Ctx))
}

func (gts *GinTestSuite) serve(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	gts.Gin.ServeHTTP(w, req)
	return w
}

func (gts *GinTestSuite) TestListUnits() {
	w := gts.serve(http.MethodGet, routes.BasePath+"/units")
	gts.Require().Equal(http.StatusOK, w.Code)
	var body struct {
		Units []unitsrs.UnitSummary `json:"units"`
	}
	gts.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	gts.Equal([]unitsrs.UnitSummary{
		{Name: "orders", State: "running"},
	}, body.Units)
}

func (gts *GinTestSuite) TestListUnitsByState() {
	w := gts.serve(http.MethodGet, routes.BasePath+"/units?state=failed")
	gts.Require().Equal(http.StatusOK, w.Code)
	gts.JSONEq(`{"units":[]}`, w.Body.String())

	w = gts.serve(http.MethodGet, routes.BasePath+"/units?state=sleeping")
	gts.Require().Equal(http.StatusBadRequest, w.Code)
	var errs map[string][]string
	gts.Require().NoError(json.Unmarshal(w.Body.Bytes(), &errs))
	gts.Contains(errs, "State")
}

func (gts *GinTestSuite) TestFetchUnitMasksSecrets() {
	w := gts.serve(http.MethodGet, routes.BasePath+"/units/orders")
	gts.Require().Equal(http.StatusOK, w.Code)
	gts.NotContains(w.Body.String(), "s3cret")
	var d unitsrs.UnitDetail
	gts.Require().NoError(json.Unmarshal(w.Body.Bytes(), &d))
	gts.Equal("running", d.State)
	gts.Equal(string(model.VendorPostgreSQL), d.Vendor)
	gts.Equal(mask.Placeholder, d.Configuration[props.KeyPassword])
	gts.Equal("app", d.Configuration[props.KeyUser])
	gts.Require().NotNil(d.Outcome)
	gts.True(d.Outcome.Success)
	gts.Equal("3", d.Outcome.TargetVersionLabel)
	gts.Empty(d.Error)
}

func (gts *GinTestSuite) TestUnknownUnit() {
	w := gts.serve(http.MethodGet, routes.BasePath+"/units/billing")
	gts.Equal(http.StatusNotFound, w.Code)
	w = gts.serve(http.MethodPost, routes.BasePath+"/units/billing/migrate")
	gts.Equal(http.StatusNotFound, w.Code)
}

func (gts *GinTestSuite) TestMigrate() {
	w := gts.serve(http.MethodPost, routes.BasePath+"/units/orders/migrate")
	gts.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var o model.MigrationOutcome
	gts.Require().NoError(json.Unmarshal(w.Body.Bytes(), &o))
	gts.True(o.Success)
	gts.Equal(1, o.Count)
	gts.Equal(2, gts.Engine.runs)
}

func (gts *GinTestSuite) TestMigrateFailure() {
	gts.Engine.fail = true
	w := gts.serve(http.MethodPost, routes.BasePath+"/units/orders/migrate")
	gts.Equal(http.StatusInternalServerError, w.Code)
	var body map[string]string
	gts.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	gts.Equal("migration execution failed", body["kind"])
	gts.Equal("orders", body["unit"])
	gts.Contains(body["detail"], "SELEC")

	w = gts.serve(http.MethodGet, routes.BasePath+"/units/orders")
	gts.Contains(w.Body.String(), `"state":"running"`)
}

func (gts *GinTestSuite) TestOverlappingMigrate() {
	gts.Engine.gate = make(chan struct{})
	gts.Engine.entry = make(chan struct{})
	done := make(chan int)
	go func() {
		w := gts.serve(http.MethodPost, routes.BasePath+"/units/orders/migrate")
		done <- w.Code
	}()
	<-gts.Engine.entry
	w := gts.serve(http.MethodPost, routes.BasePath+"/units/orders/migrate")
	gts.Equal(http.StatusConflict, w.Code)
	close(gts.Engine.gate)
	gts.Equal(http.StatusOK, <-done)
}

func (gts *GinTestSuite) TestMetrics() {
	w := gts.serve(http.MethodGet, "/metrics")
	gts.Require().Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	gts.True(strings.Contains(body,
		`migrun_runs_total{result="success",unit="orders"} 1`,
	), body)
	gts.Contains(body, `migrun_unit_state{state="running",unit="orders"} 1`)
}
