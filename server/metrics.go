// Copyright (c) 2024 Nate Bag

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var tradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trenchtools",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of executed swaps",
	},
	[]string{"side", "venue"},
)

var volumeTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "trenchtools",
		Subsystem: "trading",
		Name:      "volume_sol_total",
		Help:      "Total traded volume in SOL",
	},
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// watchTrades folds the trade record stream into the prometheus counters.
func (s *Server) watchTrades(ctx context.Context) {
	receiver, ch, err := s.ledger.Subscribe(0)
	if err != nil {
		slog.Error("could not subscribe to the trade record stream", "err", err)
		return
	}
	defer receiver.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			tradesTotal.WithLabelValues(rec.Side, rec.Venue).Inc()
			volume, _ := rec.SolAmount.Float64()
			volumeTotal.Add(volume)
		}
	}
}
