// Package metrics exposes directory gauges to Prometheus. Counts are read
// live from the store and index at scrape time rather than maintained as
// mutable state, so a scrape always reflects the current documents.
package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/channelfinder/channelfinder-server/internal/search"
	"github.com/channelfinder/channelfinder-server/internal/store"
)

var (
	channelCountDesc = prometheus.NewDesc(
		"cf_total_channel_count",
		"Total number of channels in the directory.",
		nil, nil)
	tagCountDesc = prometheus.NewDesc(
		"cf_tag_count",
		"Total number of tags in the directory.",
		nil, nil)
	propertyCountDesc = prometheus.NewDesc(
		"cf_property_count",
		"Total number of properties in the directory.",
		nil, nil)
	tagOnChannelsDesc = prometheus.NewDesc(
		"cf_tag_on_channels_count",
		"Number of channels carrying the tag.",
		[]string{"tag"}, nil)
)

// Collector reads directory counts at scrape time.
type Collector struct {
	store  *store.Store
	index  *search.ChannelIndex
	logger *slog.Logger
}

// NewCollector returns a collector over the given store and index.
func NewCollector(s *store.Store, index *search.ChannelIndex, logger *slog.Logger) *Collector {
	return &Collector{store: s, index: index, logger: logger}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- channelCountDesc
	ch <- tagCountDesc
	ch <- propertyCountDesc
	ch <- tagOnChannelsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()

	if count, err := c.index.DocCount(); err == nil {
		ch <- prometheus.MustNewConstMetric(channelCountDesc, prometheus.GaugeValue, float64(count))
	} else {
		c.logger.Error("channel count scrape failed", "error", err)
	}

	if count, err := c.store.Tags.Count(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(tagCountDesc, prometheus.GaugeValue, float64(count))
	} else {
		c.logger.Error("tag count scrape failed", "error", err)
	}

	if count, err := c.store.Properties.Count(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(propertyCountDesc, prometheus.GaugeValue, float64(count))
	} else {
		c.logger.Error("property count scrape failed", "error", err)
	}

	c.collectPerTag(ctx, ch)
}

// collectPerTag emits one membership gauge per tag currently on record.
func (c *Collector) collectPerTag(ctx context.Context, ch chan<- prometheus.Metric) {
	tags, err := c.store.Tags.All(ctx)
	if err != nil {
		c.logger.Error("tag listing scrape failed", "error", err)
		return
	}
	for _, tag := range tags {
		count, err := c.index.Count(ctx, search.TagTermQuery(tag.Name))
		if err != nil {
			c.logger.Error("tag membership scrape failed", "tag", tag.Name, "error", err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(tagOnChannelsDesc, prometheus.GaugeValue,
			float64(count), tag.Name)
	}
}
