package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promptVersionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prompt_versions_created_total",
		Help: "Total number of prompt versions created.",
	})
	promptVersionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prompt_version_conflicts_total",
		Help: "Total number of version uniqueness conflicts hit while creating prompts.",
	})
	promptValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompt_validation_failures_total",
		Help: "Total number of rejected prompt submissions, by rule.",
	}, []string{"rule"})
	promptDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompt_deletes_total",
		Help: "Total number of delete operations that removed at least one prompt version.",
	}, []string{"scope"})
	promptCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompt_cache_lookups_total",
		Help: "Latest-prompt cache lookups, by result.",
	}, []string{"result"})
)
