package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	productsHarvested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relist_products_harvested_total",
		Help: "Origin products upserted from upstream search results.",
	})

	productsMaterialized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relist_products_materialized_total",
		Help: "Materialization attempts by outcome.",
	}, []string{"result"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relist_registrations_total",
		Help: "Marketplace registration attempts by outcome.",
	}, []string{"result"})

	reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relist_reconciliations_total",
		Help: "Marketplace status reconciliations by resulting status.",
	}, []string{"status"})
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)
