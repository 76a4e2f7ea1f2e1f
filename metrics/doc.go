// Package metrics exports rfvox transport activity to Prometheus.
//
//	reg := metrics.NewRegistry()
//	obs := metrics.NewObserver(reg)
//	orch, _ := transport.New(cfg, r, engine, codec, in, out, transport.WithObserver(obs))
//	http.Handle("/metrics", metrics.Handler(reg))
package metrics
