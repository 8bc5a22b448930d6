package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/markermap/markermap/internal/config"
	"github.com/markermap/markermap/pkg/core"
	"github.com/rs/zerolog"
)

const (
	measurementPass     = "marker_view_pass"
	measurementCategory = "marker_view_category"
)

// Reporter writes filter pass statistics to InfluxDB.
type Reporter struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPIBlocking
	Logger  zerolog.Logger
	Timeout time.Duration
}

// NewReporter creates a reporter for the configured org and bucket.
func NewReporter(cfg config.InfluxConfig, log zerolog.Logger) *Reporter {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())),
	)
	return &Reporter{
		Client:  client,
		Writer:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		Logger:  log,
		Timeout: cfg.Timeout,
	}
}

// Report writes one summary point and one point per category.
func (r *Reporter) Report(ctx context.Context, s core.PassStats) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	points := PassPoints(s)
	if err := r.Writer.WritePoint(ctx, points...); err != nil {
		r.Logger.Error().Err(err).Msg("Error sending filter stats to InfluxDB")
		return fmt.Errorf("error writing filter stats: %w", err)
	}
	r.Logger.Trace().Int("points", len(points)).Msg("Filter stats written")
	return nil
}

// Close releases the client.
func (r *Reporter) Close() {
	r.Client.Close()
}

// PassPoints converts pass statistics to line protocol points.
func PassPoints(s core.PassStats) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(s.PerCategory)+1)

	points = append(points, influxdb2.NewPoint(
		measurementPass,
		map[string]string{"selection": s.Selection},
		map[string]any{
			"total":     s.Total,
			"visible":   s.Visible,
			"threshold": s.Threshold,
		},
		s.At,
	))

	for category, visible := range s.PerCategory {
		points = append(points, influxdb2.NewPoint(
			measurementCategory,
			map[string]string{"selection": s.Selection, "hardware": category},
			map[string]any{"visible": visible},
			s.At,
		))
	}

	return points
}
