// Package logsy implements the task/object lifecycle and artifact-ingestion
// engine of the logsy telemetry service.
//
// External workers report structured results ("objects") grouped under
// tasks; the service tracks task status, persists artifacts under a storage
// root, triggers external tiling for raster artifacts, and announces every
// committed mutation on an event bus.
//
// The Service is assembled from injected collaborators:
//
//	svc, err := logsy.New(
//	    logsy.WithRepository(repo),
//	    logsy.WithBlobStore(store),
//	    logsy.WithTiler(tiler),
//	    logsy.WithEventBus(bus),
//	)
//
// Repositories, blob stores, the tiler and the bus are interfaces with
// concrete implementations in the subpackages repo/, storage/, tiling/ and
// events/.
package logsy
