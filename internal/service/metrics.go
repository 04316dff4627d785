package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons an image leaves the store.
const (
	removeReasonReplaced = "replaced"
	removeReasonOrphaned = "orphaned"
	removeReasonRollback = "rollback"
	removeReasonDeleted  = "deleted"
)

var (
	// ImagesStored counts uploaded images moved into the image store.
	ImagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_images_stored_total",
			Help: "Total number of product images written to the image store",
		},
	)

	// ImagesRemoved counts images deleted from the image store.
	ImagesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_images_removed_total",
			Help: "Total number of product images removed from the image store",
		},
		[]string{"reason"},
	)
)
